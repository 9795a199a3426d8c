// Package normalize turns a collected link plus parsed content into the
// canonical JobRecord.
package normalize

import (
	"net/url"
	"strings"
	"time"

	"jobmate/aggregator-service/internal/model"
	"jobmate/aggregator-service/internal/parser"
)

// Normalizer stamps records with Now. A nil Now means time.Now.
type Normalizer struct {
	Now func() time.Time
}

// Record builds the JobRecord for link. It never fails: unknown title,
// company, location, remote flag and employment type become "Unknown".
func (n Normalizer) Record(link model.JobLink, p parser.Parsed) model.JobRecord {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	ts := now().UTC()

	canonical := CanonicalURL(link.URL)
	title := orUnknown(p.Title)
	company := orUnknown(p.Company)

	rec := model.JobRecord{
		JobID:        model.CreateID(canonical, company, title),
		SourceDomain: link.SourceDomain,
		SourceName:   link.SourceName,
		JobURL:       link.URL,
		CanonicalURL: canonical,
		ApplyURL:     p.ApplyURL,

		Title:           title,
		Company:         company,
		LocationText:    orUnknown(p.LocationText),
		RemoteFlag:      orUnknown(p.RemoteFlag),
		EmploymentType:  orUnknown(p.EmploymentType),
		PostedDate:      p.PostedDate,
		DescriptionRaw:  parser.Truncate(p.DescriptionRaw, model.MaxDescriptionLen),
		SalaryText:      p.SalaryText,
		SkillsExtracted: append([]string{}, p.Skills...),

		CollectedAt: ts,
		FirstSeen:   ts,
		LastSeen:    ts,

		FetchStatus: model.FetchSuccess,

		MergedFrom:      []string{},
		FitGrade:        "D",
		MissingMustHave: []string{},
		Flags:           []string{},

		UserStatus: model.DefaultUserStatus,
	}
	if reason := strings.TrimSpace(p.FailureReason); reason != "" {
		rec.FetchStatus = model.FetchFailed
		rec.FailureReason = reason
	}
	return rec
}

// Records normalizes links paired with their parsed content.
func (n Normalizer) Records(links []model.JobLink, parsed []parser.Parsed) []model.JobRecord {
	out := make([]model.JobRecord, 0, len(links))
	for i, l := range links {
		var p parser.Parsed
		if i < len(parsed) {
			p = parsed[i]
		}
		out = append(out, n.Record(l, p))
	}
	return out
}

// CanonicalURL lower-cases scheme and host, drops the fragment and utm_*
// tracking parameters, sorts the remaining query and trims a trailing
// slash. Unparsable input is returned trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			if strings.HasPrefix(strings.ToLower(k), "utm_") {
				q.Del(k)
			}
		}
		u.RawQuery = q.Encode()
	}
	u.ForceQuery = false

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return model.Unknown
	}
	return s
}
