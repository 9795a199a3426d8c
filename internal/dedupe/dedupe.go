// Package dedupe merges records that point at the same canonical URL.
package dedupe

import (
	"sort"
	"strings"

	"jobmate/aggregator-service/internal/model"
)

// Dedupe groups records by exact CanonicalURL. The first record seen for a
// URL survives; every later one refreshes its LastSeen, adds its source names
// and is recorded in MergedFrom. Output keeps first-seen order.
//
// The input slice and the records in it are left untouched, so running
// Dedupe on its own output is a no-op.
func Dedupe(records []model.JobRecord) []model.JobRecord {
	index := make(map[string]int, len(records))
	out := make([]model.JobRecord, 0, len(records))
	for _, r := range records {
		i, seen := index[r.CanonicalURL]
		if !seen {
			index[r.CanonicalURL] = len(out)
			out = append(out, clone(r))
			continue
		}
		out[i] = absorb(out[i], r)
	}
	return out
}

// absorb folds incoming into survivor. survivor is owned by the caller.
func absorb(survivor, incoming model.JobRecord) model.JobRecord {
	if incoming.LastSeen.After(survivor.LastSeen) {
		survivor.LastSeen = incoming.LastSeen
	}
	survivor.SourceName = MergeSourceNames(survivor.SourceName, incoming.SourceName)
	survivor.MergedFrom = append(survivor.MergedFrom, incoming.JobID)
	return survivor
}

// MergeSourceNames returns the sorted union of the comma-separated names in
// a and b, joined by commas. Blank names are dropped.
func MergeSourceNames(a, b string) string {
	set := make(map[string]struct{})
	for _, part := range strings.Split(a+","+b, ",") {
		if part = strings.TrimSpace(part); part != "" {
			set[part] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func clone(r model.JobRecord) model.JobRecord {
	r.MergedFrom = append(make([]string, 0, len(r.MergedFrom)), r.MergedFrom...)
	r.SkillsExtracted = append([]string(nil), r.SkillsExtracted...)
	r.MissingMustHave = append([]string(nil), r.MissingMustHave...)
	r.Flags = append([]string(nil), r.Flags...)
	return r
}
