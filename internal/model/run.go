package model

import "time"

// Run modes.
const (
	ModeSearch    = "search"
	ModeEmployers = "employers"
)

// SourceError is one adapter call that produced nothing.
type SourceError struct {
	Source string `json:"source"`
	Domain string `json:"domain"`
	Reason string `json:"reason"`
}

// RunSummary describes one pipeline run. Counts:
//
//	Found      links returned by the adapters, before filtering
//	Collected  links that survived filtering and were normalized
//	Failed     records whose page fetch failed
//	Merged     records absorbed by deduplication
//	Filtered   records dropped by the profile's exclude keywords
//	Exported   records handed to the export sink successfully
//	SinkErrors failed store, export or run-record writes
type RunSummary struct {
	RunID      string    `json:"runId"`
	Profile    string    `json:"profile"`
	Mode       string    `json:"mode"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	Found      int `json:"found"`
	Collected  int `json:"collected"`
	Failed     int `json:"failed"`
	Merged     int `json:"merged"`
	Filtered   int `json:"filtered"`
	Exported   int `json:"exported"`
	SinkErrors int `json:"sinkErrors"`

	SourceErrors []SourceError `json:"sourceErrors"`
}
