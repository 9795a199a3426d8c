// Package storage holds the persistence sinks. Both keep one row per job_id,
// the sources each job was seen on and the history of runs.
//
// An upsert replaces everything the pipeline computes but never touches the
// columns a person owns once the row exists: user_status, user_notes and
// possible_duplicate. first_seen and collected_at keep their original values.
package storage

import (
	"errors"
	"strings"
)

// ErrNotFound is returned by Get for an unknown job_id.
var ErrNotFound = errors.New("job not found")

// sourceNames splits a merged SourceName into its parts.
func sourceNames(joined string) []string {
	var out []string
	for _, n := range strings.Split(joined, ",") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
