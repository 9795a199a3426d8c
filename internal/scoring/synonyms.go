package scoring

// Synonyms maps a folded keyword spelling to its canonical form.
type Synonyms map[string]string

// DefaultSynonyms returns a fresh copy of the built-in table.
func DefaultSynonyms() Synonyms {
	return Synonyms{
		"tcp ip":              "tcp/ip",
		"tcpip":               "tcp/ip",
		"active directory":    "ad",
		"routing & switching": "routing switching",
		"panos":               "palo alto",
		"paloalto":            "palo alto",
	}
}

// Normalize folds keyword and maps it through the table.
func (s Synonyms) Normalize(keyword string) string {
	k := Fold(keyword)
	if canon, ok := s[k]; ok {
		return canon
	}
	return k
}
