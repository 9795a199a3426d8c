package scoring

import (
	"sort"
	"strings"

	"jobmate/aggregator-service/internal/model"
)

// Flag tags reported in JobRecord.Flags.
const (
	FlagClearance      = "clearance"
	FlagUSCitizenOnly  = "us_citizen_only"
	FlagNoSponsorship  = "no_sponsorship"
	FlagOnsiteRequired = "onsite_required"
	FlagContract       = "contract"
)

// CapScore is the ceiling applied when a capping flag is present.
const CapScore = 40

// FlagRule maps phrases to a tag. Caps marks flags that hold the score at
// CapScore whatever the other signals say.
type FlagRule struct {
	Tag     string
	Phrases []string
	Caps    bool
}

// DefaultFlagRules is the fixed red-flag phrase table.
var DefaultFlagRules = []FlagRule{
	{Tag: FlagClearance, Phrases: []string{"clearance", "ts/sci", "top secret"}, Caps: true},
	{Tag: FlagUSCitizenOnly, Phrases: []string{"us citizen", "u.s. citizen"}, Caps: true},
	{Tag: FlagNoSponsorship, Phrases: []string{"no sponsorship", "visa not supported"}, Caps: true},
	{Tag: FlagOnsiteRequired, Phrases: []string{"onsite", "on-site"}},
	{Tag: FlagContract, Phrases: []string{"contract", "c2c"}},
}

// DetectFlags returns the sorted set of tags whose phrases occur in text,
// and whether any of them caps the score.
func DetectFlags(text string) (flags []string, capped bool) {
	folded := Fold(text)
	flags = []string{}
	for _, rule := range DefaultFlagRules {
		for _, phrase := range rule.Phrases {
			if strings.Contains(folded, phrase) {
				flags = append(flags, rule.Tag)
				capped = capped || rule.Caps
				break
			}
		}
	}
	sort.Strings(flags)
	return flags, capped
}

// ContainsExcluded reports whether any of the profile's exclude keywords
// appears in the record's title, company or description. Matching is
// case-insensitive; blank keywords are ignored.
func ContainsExcluded(rec model.JobRecord, p model.SearchProfile) bool {
	if len(p.Exclude) == 0 {
		return false
	}
	combined := Fold(rec.Title + " " + rec.Company + " " + rec.DescriptionRaw)
	for _, kw := range p.Exclude {
		kw = Fold(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(combined, kw) {
			return true
		}
	}
	return false
}
