package scraper

import (
	"net"
	"net/url"
	"strings"
	"time"

	"jobmate/aggregator-service/internal/model"
)

// DateKeys are the metadata keys inspected, in order, for a posting date.
var DateKeys = []string{"date", "publication_date", "published", "created"}

// FilterTimeWindow keeps links posted within the last hours before now.
// Links without a date key, or whose date cannot be parsed, are kept.
func FilterTimeWindow(links []model.JobLink, hours int, now time.Time) []model.JobLink {
	if hours <= 0 {
		return links
	}
	cutoff := now.Add(-time.Duration(hours) * time.Hour)
	out := make([]model.JobLink, 0, len(links))
	for _, l := range links {
		posted, ok := postedAt(l.Meta)
		if !ok || !posted.Before(cutoff) {
			out = append(out, l)
		}
	}
	return out
}

// postedAt returns the first parsable posting date. ok is false when no date
// key is present or the first present key does not parse.
func postedAt(meta map[string]any) (time.Time, bool) {
	for _, k := range DateKeys {
		t, present, err := model.TimestampFromMeta(meta[k])
		if !present {
			continue
		}
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// FilterDomains drops links whose host matches an exclude entry, then, when
// include is non-empty, keeps only hosts matching an include entry. A host
// matches a dotted entry when it equals it or is one of its subdomains; a
// bare label such as "linkedin" matches any host containing it.
func FilterDomains(links []model.JobLink, include, exclude []string) []model.JobLink {
	inc := normalizeDomains(include)
	exc := normalizeDomains(exclude)
	if len(inc) == 0 && len(exc) == 0 {
		return links
	}
	out := make([]model.JobLink, 0, len(links))
	for _, l := range links {
		host := linkHost(l.URL)
		if matchesAny(host, exc) {
			continue
		}
		if len(inc) > 0 && !matchesAny(host, inc) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func normalizeDomains(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

func linkHost(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	host := u.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(strings.ToLower(host), ".")
}

func matchesAny(host string, domains []string) bool {
	if host == "" {
		return false
	}
	for _, d := range domains {
		if !strings.Contains(d, ".") {
			if strings.Contains(host, d) {
				return true
			}
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
