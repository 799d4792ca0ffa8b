package ingest

import (
	"net/url"
	"strings"
)

type Client struct {
	Browser    string
	OS         string
	DeviceType string
}

// ParseUserAgent does coarse substring classification. Order matters: Edge
// and Opera also advertise Chrome, Chrome also advertises Safari.
func ParseUserAgent(userAgent string) Client {
	ua := strings.ToLower(userAgent)
	if strings.TrimSpace(ua) == "" {
		return Client{}
	}

	c := Client{Browser: "Other", OS: "Other", DeviceType: "desktop"}
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		c.DeviceType = "tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		c.DeviceType = "mobile"
	}
	if strings.Contains(ua, "bot") || strings.Contains(ua, "spider") || strings.Contains(ua, "crawl") {
		c.DeviceType = "bot"
	}

	switch {
	case strings.Contains(ua, "edg"):
		c.Browser = "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		c.Browser = "Opera"
	case strings.Contains(ua, "firefox") || strings.Contains(ua, "fxios"):
		c.Browser = "Firefox"
	case strings.Contains(ua, "chrome") || strings.Contains(ua, "crios"):
		c.Browser = "Chrome"
	case strings.Contains(ua, "safari"):
		c.Browser = "Safari"
	}

	switch {
	case strings.Contains(ua, "windows"):
		c.OS = "Windows"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		c.OS = "iOS"
	case strings.Contains(ua, "android"):
		c.OS = "Android"
	case strings.Contains(ua, "macintosh") || strings.Contains(ua, "mac os"):
		c.OS = "macOS"
	case strings.Contains(ua, "cros "):
		c.OS = "ChromeOS"
	case strings.Contains(ua, "linux"):
		c.OS = "Linux"
	}
	return c
}

type UTM struct {
	Source   string
	Medium   string
	Campaign string
	Term     string
	Content  string
}

// ParseUTM reads utm_* parameters from a page URL. Unparseable URLs yield
// an empty UTM.
func ParseUTM(pageURL string) UTM {
	u, err := url.Parse(pageURL)
	if err != nil {
		return UTM{}
	}
	q := u.Query()
	return UTM{
		Source:   strings.TrimSpace(q.Get("utm_source")),
		Medium:   strings.TrimSpace(q.Get("utm_medium")),
		Campaign: strings.TrimSpace(q.Get("utm_campaign")),
		Term:     strings.TrimSpace(q.Get("utm_term")),
		Content:  strings.TrimSpace(q.Get("utm_content")),
	}
}
