package stats

import (
	"net/url"
	"sort"
	"strings"

	"github.com/benedict2310/slimlytics/internal/db"
)

const (
	SourceEmail         = "Email"
	SourceSearchEngines = "Search Engines"
	SourceSocialMedia   = "Social Media"
	SourceDirect        = "Direct"
	SourceReferralSites = "Referral Sites"
)

// sourcePriority is both the classification order and the tie-break order
// when two categories have the same count.
var sourcePriority = []string{
	SourceEmail,
	SourceSearchEngines,
	SourceSocialMedia,
	SourceDirect,
	SourceReferralSites,
}

var (
	emailMarkers  = []string{"mail.", "outlook.", "gmail.", "/mail", "webmail", "email"}
	searchMarkers = []string{"google", "bing", "yahoo", "duckduckgo", "baidu", "yandex", "ask.com", "aol"}
	socialMarkers = []string{
		"facebook", "twitter", "linkedin", "instagram", "youtube", "reddit", "pinterest", "tumblr",
		"snapchat", "tiktok", "whatsapp", "telegram", "discord", "slack", "medium", "quora",
	}
)

// ClassifyTrafficSource buckets a referrer into one traffic category. Checks
// run in priority order, so a webmail host on a search engine's domain is
// Email, not Search Engines.
func ClassifyTrafficSource(referrer string) string {
	ref := strings.ToLower(strings.TrimSpace(referrer))
	if ref == "" || ref == "direct" {
		return SourceDirect
	}
	switch {
	case containsAny(ref, emailMarkers):
		return SourceEmail
	case containsAny(ref, searchMarkers):
		return SourceSearchEngines
	case containsAny(ref, socialMarkers):
		return SourceSocialMedia
	default:
		return SourceReferralSites
	}
}

// TrafficSources turns per-referrer session counts into category shares.
// Categories with no sessions are omitted.
func TrafficSources(counts []db.ReferrerCountRow) []TrafficSource {
	totals := map[string]int64{}
	var all int64
	for _, row := range counts {
		totals[ClassifyTrafficSource(row.Referrer)] += row.Count
		all += row.Count
	}

	out := []TrafficSource{}
	for _, source := range sourcePriority {
		n := totals[source]
		if n == 0 {
			continue
		}
		out = append(out, TrafficSource{
			Source:     source,
			Count:      n,
			Percentage: percentage(n, all),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// ExtractSearchQuery returns the search terms carried by a referrer whose
// host belongs to a known search engine. ok is false for other referrers and
// for empty queries.
func ExtractSearchQuery(referrer string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(referrer))
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Host)
	if !containsAny(host, searchMarkers) {
		return "", false
	}
	params := u.Query()
	for _, key := range searchParams(host) {
		if q := strings.TrimSpace(params.Get(key)); q != "" {
			return q, true
		}
	}
	return "", false
}

func searchParams(host string) []string {
	switch {
	case strings.Contains(host, "baidu"):
		return []string{"wd", "word"}
	case strings.Contains(host, "yandex"):
		return []string{"text", "query"}
	case strings.Contains(host, "yahoo"):
		return []string{"p", "q"}
	default:
		return []string{"q", "query"}
	}
}

// SearchQueries aggregates extracted queries across referrer counts and
// returns the top limit, ties broken alphabetically.
func SearchQueries(counts []db.ReferrerCountRow, limit int) []SearchQuery {
	totals := map[string]int64{}
	for _, row := range counts {
		if q, ok := ExtractSearchQuery(row.Referrer); ok {
			totals[q] += row.Count
		}
	}
	out := make([]SearchQuery, 0, len(totals))
	for q, n := range totals {
		out = append(out, SearchQuery{Query: q, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Query < out[j].Query
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
