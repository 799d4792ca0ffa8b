package domain

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var labelPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Normalize reduces a site address to the bare host used as the sites.domain
// key. It accepts full URLs ("https://www.Example.com:8080/path?q") as well as
// plain hosts, strips scheme, leading "www.", port, path and query, lower-cases
// and converts internationalized names to ASCII.
func Normalize(value string) (string, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return "", fmt.Errorf("domain is required")
	}

	host := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid domain %q: %w", raw, err)
		}
		host = u.Host
	} else {
		if i := strings.IndexAny(host, "/?#"); i >= 0 {
			host = host[:i]
		}
	}
	if i := strings.LastIndex(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", fmt.Errorf("domain is required")
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid domain %q: %w", raw, err)
	}
	if len(ascii) > 253 {
		return "", fmt.Errorf("domain exceeds maximum length of 253 characters")
	}
	for _, label := range strings.Split(ascii, ".") {
		if label == "" {
			return "", fmt.Errorf("domain contains an empty label")
		}
		if !labelPattern.MatchString(label) {
			return "", fmt.Errorf("invalid domain label %q", label)
		}
	}
	return ascii, nil
}
