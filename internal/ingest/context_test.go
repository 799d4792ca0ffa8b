package ingest

import "testing"

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		ua   string
		want Client
	}{
		{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			Client{Browser: "Chrome", OS: "Windows", DeviceType: "desktop"},
		},
		{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0",
			Client{Browser: "Edge", OS: "Windows", DeviceType: "desktop"},
		},
		{
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			Client{Browser: "Safari", OS: "iOS", DeviceType: "mobile"},
		},
		{
			"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			Client{Browser: "Safari", OS: "iOS", DeviceType: "tablet"},
		},
		{
			"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			Client{Browser: "Firefox", OS: "Linux", DeviceType: "desktop"},
		},
		{
			"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36",
			Client{Browser: "Chrome", OS: "Android", DeviceType: "mobile"},
		},
		{
			"Googlebot/2.1 (+http://www.google.com/bot.html)",
			Client{Browser: "Other", OS: "Other", DeviceType: "bot"},
		},
		{"", Client{}},
	}
	for _, tc := range tests {
		if got := ParseUserAgent(tc.ua); got != tc.want {
			t.Fatalf("ParseUserAgent(%q) = %#v, want %#v", tc.ua, got, tc.want)
		}
	}
}

func TestParseUTM(t *testing.T) {
	got := ParseUTM("https://example.com/landing?utm_source=newsletter&utm_medium=email&utm_campaign=spring&utm_term=go&utm_content=hero")
	want := UTM{Source: "newsletter", Medium: "email", Campaign: "spring", Term: "go", Content: "hero"}
	if got != want {
		t.Fatalf("ParseUTM() = %#v, want %#v", got, want)
	}
	if got := ParseUTM("://bad"); got != (UTM{}) {
		t.Fatalf("expected empty UTM for bad url, got %#v", got)
	}
}
