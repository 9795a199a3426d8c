// Package scoring rates a JobRecord against a SearchProfile.
package scoring

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jobmate/aggregator-service/internal/model"
)

// Point values of the additive signals.
const (
	mustHaveMax       = 40
	niceToHavePer     = 4
	niceToHaveMax     = 20
	titleMatch        = 20
	titleMiss         = 5
	locationMatch     = 10
	locationMiss      = 5
	freshInWindow     = 10
	freshOutOfWindow  = 2
	freshUnparsable   = 3
	experiencePenalty = 10
	maxScore          = 100
)

var yearsRe = regexp.MustCompile(`(\d+)\+?\s+years`)

// Engine scores records. The zero value is not usable; build with NewEngine.
type Engine struct {
	synonyms Synonyms
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithSynonyms replaces the keyword synonym table.
func WithSynonyms(s Synonyms) Option {
	return func(e *Engine) { e.synonyms = s }
}

// WithClock sets the clock freshness is measured against.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an engine with the default synonyms and time.Now.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{synonyms: DefaultSynonyms(), now: time.Now}
	for _, o := range opts {
		o(e)
	}
	if e.synonyms == nil {
		e.synonyms = Synonyms{}
	}
	return e
}

// Score returns rec with the scoring fields filled in. Only FitScore,
// FitGrade, FitNotes, MissingMustHave and Flags change.
func (e *Engine) Score(rec model.JobRecord, p model.SearchProfile) model.JobRecord {
	text := Fold(rec.Title + " " + rec.DescriptionRaw)

	must := e.normalizeAll(p.MustHave)
	missing := []string{}
	for _, kw := range must {
		if !strings.Contains(text, kw) {
			missing = append(missing, kw)
		}
	}
	matched := len(must) - len(missing)
	mustScore := matched * mustHaveMax / max(len(must), 1)

	nice := 0
	for _, kw := range e.normalizeAll(p.NiceToHave) {
		if strings.Contains(text, kw) {
			nice++
		}
	}
	niceScore := min(niceToHaveMax, nice*niceToHavePer)

	titleScore := titleMiss
	title := Fold(rec.Title)
	for _, t := range append(append([]string{}, p.TargetTitles...), p.AdjacentTitles...) {
		if t = Fold(t); t != "" && strings.Contains(title, t) {
			titleScore = titleMatch
			break
		}
	}

	locationScore := locationMiss
	if p.WantsRemote() && strings.Contains(Fold(rec.LocationText), "remote") {
		locationScore = locationMatch
	}

	freshness := e.freshness(rec.PostedDate, p.TimeWindowHours)

	score := min(maxScore, mustScore+niceScore+titleScore+locationScore+freshness)

	flags, capped := DetectFlags(text)
	if capped {
		score = min(score, CapScore)
	}

	if hi, ok := p.MaxExperience(); ok {
		if m := yearsRe.FindStringSubmatch(text); m != nil {
			if years, err := strconv.Atoi(m[1]); err == nil && years > hi {
				score -= experiencePenalty
			}
		}
	}
	score = max(0, score)

	rec.FitScore = score
	rec.FitGrade = Grade(score)
	rec.MissingMustHave = missing
	rec.Flags = flags
	rec.FitNotes = Notes(matched, len(must), flags, freshness)
	return rec
}

// ScoreAll scores each record independently.
func (e *Engine) ScoreAll(recs []model.JobRecord, p model.SearchProfile) []model.JobRecord {
	out := make([]model.JobRecord, len(recs))
	for i, r := range recs {
		out[i] = e.Score(r, p)
	}
	return out
}

// freshness: 10 inside the window, 2 outside, 3 when the date does not
// parse, 0 when there is no date.
func (e *Engine) freshness(posted string, windowHours int) int {
	if strings.TrimSpace(posted) == "" {
		return 0
	}
	t, err := model.ParseTimestamp(posted)
	if err != nil {
		return freshUnparsable
	}
	if windowHours <= 0 {
		windowHours = model.DefaultTimeWindowHours
	}
	cutoff := e.now().Add(-time.Duration(windowHours) * time.Hour)
	if t.Before(cutoff) {
		return freshOutOfWindow
	}
	return freshInWindow
}

func (e *Engine) normalizeAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if n := e.synonyms.Normalize(k); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Grade maps a score to A (>=85), B (>=70), C (>=55) or D.
func Grade(score int) string {
	switch {
	case score >= 85:
		return "A"
	case score >= 70:
		return "B"
	case score >= 55:
		return "C"
	default:
		return "D"
	}
}

// Notes renders the FitNotes string:
// "must_match=<n>/<total>; flags=<a,b|none>; freshness=<points>".
func Notes(matched, total int, flags []string, freshness int) string {
	f := strings.Join(flags, ",")
	if f == "" {
		f = "none"
	}
	return fmt.Sprintf("must_match=%d/%d; flags=%s; freshness=%d", matched, total, f, freshness)
}
