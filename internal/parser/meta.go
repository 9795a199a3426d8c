package parser

import (
	"html"
	"strings"
)

// Payload keys, in lookup order. The lists cover the JSON APIs, the ATS
// board APIs and the feed adapters.
var (
	titleKeys    = []string{"title", "position", "text"}
	companyKeys  = []string{"company", "company_name", "companyName", "board"}
	locationKeys = []string{"location", "candidate_required_location", "city"}
	postedKeys   = []string{"date", "publication_date", "published", "created", "created_at", "createdAt", "updated_at"}
	descKeys     = []string{"description", "content", "descriptionPlain"}
	applyKeys    = []string{"apply_url", "applyUrl"}
	typeKeys     = []string{"job_type", "job_types", "employment_type", "contract_time", "contract_type"}
)

// FromMeta extracts what a source payload says about a posting.
func FromMeta(meta map[string]any) Parsed {
	if len(meta) == 0 {
		return Parsed{}
	}
	var out Parsed

	out.Title = firstString(meta, titleKeys)
	out.Company = firstString(meta, companyKeys)
	out.LocationText = metaLocation(meta)
	for _, k := range postedKeys {
		if d := normalizeDate(meta[k]); d != "" {
			out.PostedDate = d
			break
		}
	}
	for _, k := range descKeys {
		if s := str(meta[k]); s != "" {
			// Greenhouse ships entity-escaped HTML in "content".
			if k == "content" {
				s = html.UnescapeString(s)
			}
			out.DescriptionRaw = CleanDescription(s)
			break
		}
	}
	out.ApplyURL = firstString(meta, applyKeys)
	out.EmploymentType = metaEmploymentType(meta)
	out.SalaryText = metaSalary(meta)
	out.Skills = metaTags(meta)
	out.RemoteFlag = metaRemote(meta, out.LocationText)
	return out
}

func firstString(meta map[string]any, keys []string) string {
	for _, k := range keys {
		if s := str(meta[k]); s != "" {
			return s
		}
	}
	return ""
}

func metaLocation(meta map[string]any) string {
	for _, k := range locationKeys {
		switch v := meta[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case map[string]any:
			if s := str(v["name"]); s != "" {
				return s
			}
		}
	}
	if cats, ok := meta["categories"].(map[string]any); ok {
		return str(cats["location"])
	}
	return ""
}

func metaEmploymentType(meta map[string]any) string {
	for _, k := range typeKeys {
		if s := joinAny(meta[k]); s != "" {
			return s
		}
	}
	if cats, ok := meta["categories"].(map[string]any); ok {
		return str(cats["commitment"])
	}
	return ""
}

func metaSalary(meta map[string]any) string {
	if s := scalar(meta["salary"]); s != "" {
		return s
	}
	lo, hi := scalar(meta["salary_min"]), scalar(meta["salary_max"])
	if lo == "0" {
		lo = ""
	}
	if hi == "0" {
		hi = ""
	}
	return strings.Trim(lo+"-"+hi, "-")
}

func metaTags(meta map[string]any) []string {
	raw, ok := meta["tags"].([]any)
	if !ok {
		return nil
	}
	seen := make(map[string]bool, len(raw))
	var tags []string
	for _, t := range raw {
		s := strings.ToLower(str(t))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		tags = append(tags, s)
	}
	return tags
}

// metaRemote reads an explicit remote flag first, then falls back to the
// location text. Unknown stays empty so the normalizer can default it.
func metaRemote(meta map[string]any, location string) string {
	switch v := meta["remote"].(type) {
	case bool:
		if v {
			return "Remote"
		}
		return "Onsite"
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "remote":
			return "Remote"
		case "false", "no", "onsite", "on-site":
			return "Onsite"
		}
	}
	if cats, ok := meta["categories"].(map[string]any); ok {
		if strings.EqualFold(str(cats["workplaceType"]), "remote") {
			return "Remote"
		}
	}
	if w := str(meta["workplaceType"]); w != "" {
		if strings.EqualFold(w, "remote") {
			return "Remote"
		}
		if strings.EqualFold(w, "onsite") || strings.EqualFold(w, "on-site") {
			return "Onsite"
		}
		if strings.EqualFold(w, "hybrid") {
			return "Hybrid"
		}
	}
	lower := strings.ToLower(location)
	switch {
	case strings.Contains(lower, "remote"), strings.Contains(lower, "anywhere"), strings.Contains(lower, "worldwide"):
		return "Remote"
	case strings.Contains(lower, "hybrid"):
		return "Hybrid"
	}
	return ""
}
