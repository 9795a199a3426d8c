package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"jobmate/aggregator-service/internal/model"
)

// ParseHTML reads a posting page. A schema.org JobPosting in an
// application/ld+json block (object, list or @graph) supplies the fields;
// otherwise the title comes from the first <h1> or <title> and the
// description is the visible page text. ATSType is always set.
func ParseHTML(body []byte) Parsed {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		// html.Parse only fails on reader errors; keep the raw text.
		text := collapseSpace(string(body))
		return Parsed{
			DescriptionRaw: Truncate(text, model.MaxDescriptionLen),
			ATSType:        DetectATS(text),
		}
	}

	text := visibleText(doc)
	out := Parsed{ATSType: DetectATS(text)}

	for _, block := range ldJSONBlocks(doc) {
		if posting, ok := findJobPosting(block); ok {
			out = out.Merge(fromJobPosting(posting))
			break
		}
	}

	if out.Title == "" {
		out.Title = firstText(doc, atom.H1)
	}
	if out.Title == "" {
		out.Title = firstText(doc, atom.Title)
	}
	if out.DescriptionRaw == "" {
		out.DescriptionRaw = Truncate(text, model.MaxDescriptionLen)
	}
	return out
}

func ldJSONBlocks(doc *html.Node) []any {
	var blocks []any
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Script && attr(n, "type") == "application/ld+json" {
			var raw strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					raw.WriteString(c.Data)
				}
			}
			var v any
			if err := json.Unmarshal([]byte(raw.String()), &v); err == nil {
				blocks = append(blocks, v)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return blocks
}

// findJobPosting searches an ld+json value for the first JobPosting object.
func findJobPosting(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			if p, ok := findJobPosting(item); ok {
				return p, true
			}
		}
	case map[string]any:
		if isType(x["@type"], "JobPosting") {
			return x, true
		}
		if g, ok := x["@graph"]; ok {
			return findJobPosting(g)
		}
	}
	return nil, false
}

func isType(v any, want string) bool {
	switch t := v.(type) {
	case string:
		return t == want
	case []any:
		for _, s := range t {
			if s == want {
				return true
			}
		}
	}
	return false
}

func fromJobPosting(p map[string]any) Parsed {
	out := Parsed{
		Title:          str(p["title"]),
		PostedDate:     normalizeDate(p["datePosted"]),
		ApplyURL:       str(p["url"]),
		EmploymentType: joinAny(p["employmentType"]),
		DescriptionRaw: CleanDescription(str(p["description"])),
		SalaryText:     salaryFromLD(p["baseSalary"]),
	}
	switch org := p["hiringOrganization"].(type) {
	case map[string]any:
		out.Company = str(org["name"])
	case string:
		out.Company = strings.TrimSpace(org)
	}
	out.LocationText = locationFromLD(p["jobLocation"])
	if strings.EqualFold(str(p["jobLocationType"]), "TELECOMMUTE") {
		out.RemoteFlag = "Remote"
		if out.LocationText == "" {
			out.LocationText = "Remote"
		}
	}
	return out
}

func locationFromLD(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case []any:
		var parts []string
		for _, item := range x {
			if s := locationFromLD(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		addr, ok := x["address"].(map[string]any)
		if !ok {
			if s, ok := x["address"].(string); ok {
				return strings.TrimSpace(s)
			}
			return str(x["name"])
		}
		var parts []string
		for _, k := range []string{"addressLocality", "addressRegion", "addressCountry"} {
			switch c := addr[k].(type) {
			case string:
				if c = strings.TrimSpace(c); c != "" {
					parts = append(parts, c)
				}
			case map[string]any:
				if n := str(c["name"]); n != "" {
					parts = append(parts, n)
				}
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func salaryFromLD(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	currency := str(m["currency"])
	val, ok := m["value"].(map[string]any)
	if !ok {
		return strings.TrimSpace(currency + " " + scalar(m["value"]))
	}
	amount := scalar(val["value"])
	if lo, hi := scalar(val["minValue"]), scalar(val["maxValue"]); lo != "" || hi != "" {
		amount = strings.Trim(lo+"-"+hi, "-")
	}
	if amount == "" {
		return ""
	}
	s := strings.TrimSpace(currency + " " + amount)
	if unit := str(val["unitText"]); unit != "" {
		s += "/" + unit
	}
	return s
}

// visibleText is the page text outside script, style and noscript.
func visibleText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return collapseSpace(sb.String())
}

func firstText(n *html.Node, a atom.Atom) string {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return visibleText(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := firstText(c, a); t != "" {
			return t
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(strings.ToLower(a.Val))
		}
	}
	return ""
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return fmt.Sprintf("%.0f", x)
	case json.Number:
		return x.String()
	}
	return ""
}

func joinAny(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case []any:
		var parts []string
		for _, item := range x {
			if s := str(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}
