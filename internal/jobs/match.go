package jobs

import (
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Candidate is a catalog video considered for correlation.
type Candidate struct {
	ID    string
	Title string
}

// Slugify lowercases s, strips accents, and joins alphanumeric runs with
// single dashes.
func Slugify(s string) string {
	s = strings.ToLower(removeAccents(s))
	var b strings.Builder
	dash := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// MatchTitle picks the candidate whose title best matches title. An exact
// slug match wins; otherwise the candidate whose slug contains or is
// contained in the title's slug, ties broken by Jaro-Winkler similarity.
// Returns "" when nothing qualifies.
func MatchTitle(title string, candidates []Candidate) string {
	want := Slugify(title)
	if want == "" {
		return ""
	}

	slugs := make([]string, len(candidates))
	for i, c := range candidates {
		slugs[i] = Slugify(c.Title)
		if slugs[i] == want {
			return c.ID
		}
	}

	bestID, bestScore := "", float32(-1)
	for i, c := range candidates {
		s := slugs[i]
		if s == "" || !(strings.Contains(s, want) || strings.Contains(want, s)) {
			continue
		}
		if score := edlib.JaroWinklerSimilarity(want, s); score > bestScore {
			bestID, bestScore = c.ID, score
		}
	}
	return bestID
}
