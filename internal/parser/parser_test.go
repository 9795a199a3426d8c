package parser_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"jobmate/aggregator-service/internal/model"
	"jobmate/aggregator-service/internal/parser"
)

// ── ParseHTML ──────────────────────────────────────────────────────────────

func TestParseHTML_JobPostingObject(t *testing.T) {
	page := `<html><head><title>Careers</title>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"JobPosting",
 "title":"Senior Network Engineer","datePosted":"2026-10-14T09:30:00Z",
 "hiringOrganization":{"@type":"Organization","name":"Acme Corp"},
 "jobLocation":{"@type":"Place","address":{"addressLocality":"Austin","addressRegion":"TX","addressCountry":"US"}},
 "employmentType":["FULL_TIME","CONTRACTOR"],
 "baseSalary":{"currency":"USD","value":{"minValue":120000,"maxValue":150000,"unitText":"YEAR"}},
 "url":"https://acme.example/jobs/42",
 "description":"<p>Own our <strong>BGP</strong> edge.</p>"}</script>
</head><body><h1>Ignored heading</h1><p>Powered by Greenhouse</p></body></html>`

	p := parser.ParseHTML([]byte(page))
	if p.Title != "Senior Network Engineer" || p.Company != "Acme Corp" {
		t.Errorf("title/company = %q/%q", p.Title, p.Company)
	}
	if p.LocationText != "Austin, TX, US" {
		t.Errorf("location = %q", p.LocationText)
	}
	if p.PostedDate != "2026-10-14T09:30:00Z" || p.ApplyURL != "https://acme.example/jobs/42" {
		t.Errorf("posted/apply = %q/%q", p.PostedDate, p.ApplyURL)
	}
	if p.EmploymentType != "FULL_TIME, CONTRACTOR" || p.SalaryText != "USD 120000-150000/YEAR" {
		t.Errorf("type/salary = %q/%q", p.EmploymentType, p.SalaryText)
	}
	if !strings.Contains(p.DescriptionRaw, "**BGP**") || strings.Contains(p.DescriptionRaw, "<p>") {
		t.Errorf("description = %q, want markdown", p.DescriptionRaw)
	}
	if p.ATSType != parser.ATSGreenhouse {
		t.Errorf("ATSType = %q", p.ATSType)
	}
}

func TestParseHTML_ListAndGraph(t *testing.T) {
	list := `<script type="application/ld+json">[{"@type":"Organization","name":"x"},
{"@type":"JobPosting","title":"From List","hiringOrganization":"Initech","jobLocationType":"TELECOMMUTE"}]</script>`
	p := parser.ParseHTML([]byte(list))
	if p.Title != "From List" || p.Company != "Initech" || p.RemoteFlag != "Remote" || p.LocationText != "Remote" {
		t.Errorf("list posting = %+v", p)
	}

	graph := `<script type="application/ld+json">{"@context":"https://schema.org","@graph":[
{"@type":"WebPage"},{"@type":["JobPosting"],"title":"From Graph"}]}</script>`
	if got := parser.ParseHTML([]byte(graph)).Title; got != "From Graph" {
		t.Errorf("graph title = %q", got)
	}
}

func TestParseHTML_FallsBackToText(t *testing.T) {
	page := `<html><head><title>Job board</title><style>.x{color:red}</style>
<script type="application/ld+json">{ not json</script>
<script>var tracking = 1;</script></head>
<body><h1>Network  Engineer</h1><p>Apply via jobs.lever.co today.</p></body></html>`

	p := parser.ParseHTML([]byte(page))
	if p.Title != "Network Engineer" {
		t.Errorf("title = %q", p.Title)
	}
	if strings.Contains(p.DescriptionRaw, "tracking") || strings.Contains(p.DescriptionRaw, "color:red") {
		t.Errorf("description leaked script/style: %q", p.DescriptionRaw)
	}
	if !strings.Contains(p.DescriptionRaw, "Apply via jobs.lever.co today.") {
		t.Errorf("description = %q", p.DescriptionRaw)
	}
	if p.ATSType != parser.ATSLever {
		t.Errorf("ATSType = %q", p.ATSType)
	}
	if p.Company != "" {
		t.Errorf("company = %q, want empty", p.Company)
	}
}

func TestParseHTML_CapsDescription(t *testing.T) {
	body := "<p>" + strings.Repeat("é", model.MaxDescriptionLen+500) + "</p>"
	p := parser.ParseHTML([]byte(body))
	if n := utf8.RuneCountInString(p.DescriptionRaw); n != model.MaxDescriptionLen {
		t.Errorf("description has %d runes, want %d", n, model.MaxDescriptionLen)
	}
}

func TestDetectATS(t *testing.T) {
	cases := map[string]string{
		"Apply on Greenhouse":            parser.ATSGreenhouse,
		"jobs.lever.co/acme":             parser.ATSLever,
		"Powered by Ashby":               parser.ATSAshby,
		"apply.workable.com":             parser.ATSWorkable,
		"myworkdayjobs.com":              parser.ATSWorkday,
		"greenhouse and lever both here": parser.ATSGreenhouse,
		"plain careers page":             parser.ATSUnknown,
	}
	for in, want := range cases {
		if got := parser.DetectATS(in); got != want {
			t.Errorf("DetectATS(%q) = %q, want %q", in, got, want)
		}
	}
}

// ── FromMeta ───────────────────────────────────────────────────────────────

func TestFromMeta_RemoteOKPayload(t *testing.T) {
	p := parser.FromMeta(map[string]any{
		"position":    "Site Reliability Engineer",
		"company":     "Globex",
		"location":    "Worldwide",
		"date":        "2026-10-15T08:00:00+00:00",
		"description": "<ul><li>Kubernetes</li></ul>",
		"tags":        []any{"SRE", "k8s", "sre"},
		"salary_min":  float64(0),
		"salary_max":  float64(150000),
	})
	if p.Title != "Site Reliability Engineer" || p.Company != "Globex" {
		t.Errorf("title/company = %q/%q", p.Title, p.Company)
	}
	if p.RemoteFlag != "Remote" || p.PostedDate != "2026-10-15T08:00:00Z" {
		t.Errorf("remote/posted = %q/%q", p.RemoteFlag, p.PostedDate)
	}
	if p.SalaryText != "150000" {
		t.Errorf("salary = %q", p.SalaryText)
	}
	if strings.Join(p.Skills, ",") != "sre,k8s" {
		t.Errorf("skills = %v", p.Skills)
	}
	if !strings.Contains(p.DescriptionRaw, "Kubernetes") || strings.Contains(p.DescriptionRaw, "<li>") {
		t.Errorf("description = %q", p.DescriptionRaw)
	}
}

func TestFromMeta_ArbeitnowAndGreenhouse(t *testing.T) {
	arb := parser.FromMeta(map[string]any{
		"title": "Backend Dev", "company_name": "Initech", "location": "Berlin",
		"remote": false, "created_at": float64(1791970200), "job_types": []any{"full time"},
	})
	if arb.RemoteFlag != "Onsite" || arb.PostedDate != "2026-10-14T09:30:00Z" || arb.EmploymentType != "full time" {
		t.Errorf("arbeitnow = %+v", arb)
	}

	gh := parser.FromMeta(map[string]any{
		"title":    "NetEng",
		"board":    "acme",
		"location": map[string]any{"name": "Remote - US"},
		"content":  "&lt;p&gt;Routing &amp;amp; switching&lt;/p&gt;",
	})
	if gh.Company != "acme" || gh.LocationText != "Remote - US" || gh.RemoteFlag != "Remote" {
		t.Errorf("greenhouse = %+v", gh)
	}
	if !strings.Contains(gh.DescriptionRaw, "switching") || strings.Contains(gh.DescriptionRaw, "&lt;") {
		t.Errorf("greenhouse description = %q", gh.DescriptionRaw)
	}
}

func TestFromMeta_UnparsableDateKeptRaw(t *testing.T) {
	p := parser.FromMeta(map[string]any{"published": "yesterday-ish"})
	if p.PostedDate != "yesterday-ish" {
		t.Errorf("PostedDate = %q", p.PostedDate)
	}
	if got := parser.FromMeta(nil); got.Title != "" || got.PostedDate != "" {
		t.Errorf("FromMeta(nil) = %+v", got)
	}
}

// ── Merge / CleanDescription ───────────────────────────────────────────────

func TestMerge_ReceiverWins(t *testing.T) {
	meta := parser.Parsed{Title: "From API", Skills: []string{"go"}}
	page := parser.Parsed{Title: "From Page", Company: "Acme", Skills: []string{"rust"}, ATSType: "lever"}

	got := meta.Merge(page)
	if got.Title != "From API" || got.Company != "Acme" || got.ATSType != "lever" {
		t.Errorf("merged = %+v", got)
	}
	if len(got.Skills) != 1 || got.Skills[0] != "go" {
		t.Errorf("skills = %v", got.Skills)
	}
}

func TestCleanDescription(t *testing.T) {
	if got := parser.CleanDescription("  plain\n\ttext  here "); got != "plain text here" {
		t.Errorf("plain = %q", got)
	}
	if got := parser.CleanDescription(""); got != "" {
		t.Errorf("empty = %q", got)
	}
	got := parser.CleanDescription("<h2>Role</h2><p>Build <em>networks</em>.</p>")
	if !strings.Contains(got, "Role") || !strings.Contains(got, "networks") || strings.Contains(got, "<") {
		t.Errorf("html = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := parser.Truncate("héllo", 2); got != "hé" {
		t.Errorf("Truncate = %q", got)
	}
	if got := parser.Truncate("abc", 10); got != "abc" {
		t.Errorf("Truncate = %q", got)
	}
}
