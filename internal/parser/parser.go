// Package parser extracts best-effort posting content from source payloads
// and posting pages. Nothing here returns an error for bad input: missing or
// malformed data yields empty fields.
package parser

import (
	"html"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"jobmate/aggregator-service/internal/model"
)

// Parsed is the content a normalizer needs. Empty strings mean unknown.
type Parsed struct {
	Title          string
	Company        string
	LocationText   string
	RemoteFlag     string
	EmploymentType string
	PostedDate     string // RFC 3339 when parsable, raw otherwise
	DescriptionRaw string
	ApplyURL       string
	SalaryText     string
	Skills         []string
	ATSType        string
	FailureReason  string
}

// Merge fills p's empty fields from other. p wins wherever it has a value.
func (p Parsed) Merge(other Parsed) Parsed {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&p.Title, other.Title)
	fill(&p.Company, other.Company)
	fill(&p.LocationText, other.LocationText)
	fill(&p.RemoteFlag, other.RemoteFlag)
	fill(&p.EmploymentType, other.EmploymentType)
	fill(&p.PostedDate, other.PostedDate)
	fill(&p.DescriptionRaw, other.DescriptionRaw)
	fill(&p.ApplyURL, other.ApplyURL)
	fill(&p.SalaryText, other.SalaryText)
	fill(&p.ATSType, other.ATSType)
	fill(&p.FailureReason, other.FailureReason)
	if len(p.Skills) == 0 && len(other.Skills) > 0 {
		p.Skills = append([]string(nil), other.Skills...)
	}
	return p
}

// ATS types reported by DetectATS.
const (
	ATSGreenhouse = "greenhouse"
	ATSLever      = "lever"
	ATSAshby      = "ashby"
	ATSWorkable   = "workable"
	ATSWorkday    = "workday"
	ATSUnknown    = "unknown"
)

var atsSignatures = []string{ATSGreenhouse, ATSLever, ATSAshby, ATSWorkable, ATSWorkday}

// DetectATS guesses the applicant tracking system from page text. The first
// signature found, in a fixed priority order, wins.
func DetectATS(text string) string {
	lower := strings.ToLower(text)
	for _, sig := range atsSignatures {
		if strings.Contains(lower, sig) {
			return sig
		}
	}
	return ATSUnknown
}

var (
	mdConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	strictPolicy = bluemonday.StrictPolicy()
)

// CleanDescription turns an HTML fragment into Markdown, falling back to
// tag-stripped plain text when conversion fails. Plain text passes through
// with whitespace collapsed. The result is capped at model.MaxDescriptionLen.
func CleanDescription(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !looksLikeHTML(s) {
		return Truncate(collapseSpace(s), model.MaxDescriptionLen)
	}
	md, err := mdConverter.ConvertString(s)
	if err != nil || strings.TrimSpace(md) == "" {
		md = collapseSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
	}
	return Truncate(strings.TrimSpace(md), model.MaxDescriptionLen)
}

// Truncate caps s at n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func looksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeDate renders a parsable timestamp as RFC 3339 and keeps anything
// else verbatim.
func normalizeDate(v any) string {
	t, present, err := model.TimestampFromMeta(v)
	if !present {
		return ""
	}
	if err != nil {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
