package names

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	MaxSiteIDLength   = 64
	MaxSiteNameLength = 128
)

var siteIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// ValidateSiteID checks the opaque site identifiers accepted on every
// ingestion and stats route. Generated ids are lower-case ULIDs; hand-picked
// ids such as "demo" are also valid.
func ValidateSiteID(id string) error {
	if id == "" {
		return fmt.Errorf("site id is required")
	}
	if len(id) > MaxSiteIDLength {
		return fmt.Errorf("site id must be at most %d characters", MaxSiteIDLength)
	}
	if !siteIDPattern.MatchString(id) {
		return fmt.Errorf("site id must match %q", siteIDPattern.String())
	}
	return nil
}

func ValidateSiteName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("site name is required")
	}
	if len(trimmed) > MaxSiteNameLength {
		return fmt.Errorf("site name must be at most %d characters", MaxSiteNameLength)
	}
	if strings.ContainsAny(trimmed, "\x00\r\n") {
		return fmt.Errorf("site name must not contain control characters")
	}
	return nil
}
