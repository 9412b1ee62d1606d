// names.go: folder and client name normalization for path segments
package mapping

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// digraphs maps Serbian letters that decompose into two ASCII letters rather
// than a single base letter. NFD stripping alone leaves these untouched.
var digraphs = strings.NewReplacer(
	"đ", "dj",
	"Đ", "Dj",
)

var diacriticFolder = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeName folds diacritics out of a name so it can be used as a
// repository path segment: "Đorđe Šarić" -> "Djordje Saric". Interior
// whitespace is collapsed and the result is trimmed.
func NormalizeName(name string) string {
	name = digraphs.Replace(name)
	if folded, _, err := transform.String(diacriticFolder, name); err == nil {
		name = folded
	}
	return strings.Join(strings.Fields(name), " ")
}

// SanitizePathSegment normalizes a name and replaces characters that are not
// valid inside a repository folder name.
func SanitizePathSegment(name string) string {
	name = NormalizeName(name)
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
