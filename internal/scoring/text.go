package scoring

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Transformer chains are stateful, so each Fold call borrows its own.
var foldPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			cases.Fold(),
			runes.Remove(runes.In(unicode.Cf)), // zero-width joiners, BOMs
			width.Fold,
		)
	},
}

// Fold is the matching form of s: NFKC, case folded, format characters
// removed, full-width forms narrowed, whitespace collapsed.
func Fold(s string) string {
	if s == "" {
		return ""
	}
	tr := foldPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, strings.ToValidUTF8(s, ""))
	tr.Reset()
	foldPool.Put(tr)
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(out), " ")
}
