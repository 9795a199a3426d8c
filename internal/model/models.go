// Package model defines shared data structures for the aggregator service.
package model

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// Fetch outcomes stored in JobRecord.FetchStatus.
const (
	FetchSuccess = "success"
	FetchFailed  = "failed"
)

// Placeholder used for unknown titles, companies and locations.
const Unknown = "Unknown"

// MaxDescriptionLen caps JobRecord.DescriptionRaw, in characters.
const MaxDescriptionLen = 20000

// DefaultUserStatus is the status a record gets before a human touches it.
const DefaultUserStatus = "New"

// SearchProfile holds the request parameters for one run. Build it with
// NewSearchProfile; the value is treated as read-only afterwards.
type SearchProfile struct {
	Name            string   `yaml:"name" json:"name" validate:"required"`
	TargetTitles    []string `yaml:"target_titles" json:"targetTitles" validate:"dive,required"`
	AdjacentTitles  []string `yaml:"adjacent_titles" json:"adjacentTitles" validate:"dive,required"`
	LocationMode    string   `yaml:"location_mode" json:"locationMode"`
	City            string   `yaml:"city" json:"city,omitempty"`
	RadiusKm        *int     `yaml:"radius_km" json:"radiusKm,omitempty" validate:"omitempty,gte=0"`
	ExperienceRange string   `yaml:"experience_range" json:"experienceRange,omitempty" validate:"omitempty,exprange"`
	MustHave        []string `yaml:"must_have_keywords" json:"mustHave"`
	NiceToHave      []string `yaml:"nice_to_have_keywords" json:"niceToHave"`
	Exclude         []string `yaml:"exclude_keywords" json:"exclude"`
	TimeWindowHours int      `yaml:"time_window_hours" json:"timeWindowHours" validate:"gte=1"`
}

// JobLink is what a source adapter emits: a posting URL plus whatever the
// source told us about it. Two links with different URLs may be the same job.
type JobLink struct {
	URL          string         `json:"url"`
	SourceName   string         `json:"sourceName"`
	SourceDomain string         `json:"sourceDomain"`
	Meta         map[string]any `json:"meta,omitempty"`
}

// JobRecord is the canonical, normalised posting. JobID is the upsert key
// for the persistence and export sinks.
type JobRecord struct {
	JobID string `json:"jobId"`

	SourceDomain string `json:"sourceDomain"`
	SourceName   string `json:"sourceName"` // comma-joined after merges
	JobURL       string `json:"jobUrl"`
	CanonicalURL string `json:"canonicalUrl"`
	ApplyURL     string `json:"applyUrl,omitempty"`

	Title           string   `json:"title"`
	Company         string   `json:"company"`
	LocationText    string   `json:"locationText"`
	RemoteFlag      string   `json:"remoteFlag"`
	EmploymentType  string   `json:"employmentType"`
	PostedDate      string   `json:"postedDate,omitempty"`
	DescriptionRaw  string   `json:"descriptionRaw"`
	SalaryText      string   `json:"salaryText,omitempty"`
	SkillsExtracted []string `json:"skillsExtracted"`

	CollectedAt time.Time `json:"collectedAt"`
	FirstSeen   time.Time `json:"firstSeen"`
	LastSeen    time.Time `json:"lastSeen"`

	FetchStatus   string `json:"fetchStatus"`
	FailureReason string `json:"failureReason,omitempty"`

	RepostCount int      `json:"repostCount"`
	MergedFrom  []string `json:"mergedFrom"`

	// Written by the scoring engine only.
	FitScore        int      `json:"fitScore"`
	FitGrade        string   `json:"fitGrade"`
	FitNotes        string   `json:"fitNotes"`
	MissingMustHave []string `json:"missingMustHave"`
	Flags           []string `json:"flags"`

	// Owned by the user once set; sinks never overwrite them.
	UserStatus        string `json:"userStatus"`
	UserNotes         string `json:"userNotes"`
	PossibleDuplicate bool   `json:"possibleDuplicate"`
}

// CreateID derives the stable record id from (url, company, title): the
// first 16 hex characters of SHA-1 over "url|company|title".
func CreateID(url, company, title string) string {
	sum := sha1.Sum([]byte(url + "|" + company + "|" + title))
	return hex.EncodeToString(sum[:])[:16]
}
