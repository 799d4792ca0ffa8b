package stats

import "strings"

var languageNames = map[string]string{
	"ar": "Arabic",
	"bg": "Bulgarian",
	"bn": "Bengali",
	"ca": "Catalan",
	"cs": "Czech",
	"da": "Danish",
	"de": "German",
	"el": "Greek",
	"en": "English",
	"es": "Spanish",
	"et": "Estonian",
	"fa": "Persian",
	"fi": "Finnish",
	"fr": "French",
	"he": "Hebrew",
	"hi": "Hindi",
	"hr": "Croatian",
	"hu": "Hungarian",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"lt": "Lithuanian",
	"lv": "Latvian",
	"ms": "Malay",
	"nb": "Norwegian Bokmål",
	"nl": "Dutch",
	"no": "Norwegian",
	"pl": "Polish",
	"pt": "Portuguese",
	"ro": "Romanian",
	"ru": "Russian",
	"sk": "Slovak",
	"sl": "Slovenian",
	"sr": "Serbian",
	"sv": "Swedish",
	"sw": "Swahili",
	"ta": "Tamil",
	"th": "Thai",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"ur": "Urdu",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

var countryNames = map[string]string{
	"AE": "United Arab Emirates",
	"AR": "Argentina",
	"AT": "Austria",
	"AU": "Australia",
	"BE": "Belgium",
	"BG": "Bulgaria",
	"BR": "Brazil",
	"CA": "Canada",
	"CH": "Switzerland",
	"CL": "Chile",
	"CN": "China",
	"CO": "Colombia",
	"CZ": "Czechia",
	"DE": "Germany",
	"DK": "Denmark",
	"EG": "Egypt",
	"ES": "Spain",
	"FI": "Finland",
	"FR": "France",
	"GB": "United Kingdom",
	"GR": "Greece",
	"HK": "Hong Kong",
	"HU": "Hungary",
	"ID": "Indonesia",
	"IE": "Ireland",
	"IL": "Israel",
	"IN": "India",
	"IR": "Iran",
	"IT": "Italy",
	"JP": "Japan",
	"KR": "South Korea",
	"MX": "Mexico",
	"MY": "Malaysia",
	"NG": "Nigeria",
	"NL": "Netherlands",
	"NO": "Norway",
	"NZ": "New Zealand",
	"PH": "Philippines",
	"PK": "Pakistan",
	"PL": "Poland",
	"PT": "Portugal",
	"RO": "Romania",
	"RU": "Russia",
	"SA": "Saudi Arabia",
	"SE": "Sweden",
	"SG": "Singapore",
	"TH": "Thailand",
	"TR": "Turkey",
	"TW": "Taiwan",
	"UA": "Ukraine",
	"US": "United States",
	"VN": "Vietnam",
	"ZA": "South Africa",
}

// defaultRegions picks the country shown for a bare language tag such as
// "de".
var defaultRegions = map[string]string{
	"ar": "SA",
	"de": "DE",
	"en": "GB",
	"es": "ES",
	"fr": "FR",
	"hi": "IN",
	"it": "IT",
	"ja": "JP",
	"ko": "KR",
	"pt": "PT",
	"ru": "RU",
	"zh": "CN",
}

// LocaleNames splits a tag like "en-US" and returns display names for its
// language and country parts. Unknown languages come back as the raw code;
// unknown countries as the upper-cased raw code.
func LocaleNames(tag string) (language, country string) {
	parts := strings.Split(strings.TrimSpace(tag), "-")
	langCode := strings.ToLower(parts[0])
	language = langCode
	if name, ok := languageNames[langCode]; ok {
		language = name
	}

	regionCode := ""
	if len(parts) > 1 {
		regionCode = strings.ToUpper(parts[len(parts)-1])
	} else {
		regionCode = defaultRegions[langCode]
	}
	if regionCode == "" {
		return language, ""
	}
	if name, ok := countryNames[regionCode]; ok {
		return language, name
	}
	return language, regionCode
}
