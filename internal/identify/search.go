package identify

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"checkin/internal/checkin/models"
)

// MatchKind is how a candidate matched the fragment; lower ranks first.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchPrefix
	MatchSubstring
	matchNone
)

func (m MatchKind) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchPrefix:
		return "prefix"
	case MatchSubstring:
		return "substring"
	}
	return "none"
}

// Candidate is one registrant offered for manual selection.
type Candidate struct {
	Registrant *models.Registrant
	Match      MatchKind
}

var (
	collatorMu sync.Mutex
	collator   = collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)
)

func compareNames(a, b string) int {
	collatorMu.Lock()
	defer collatorMu.Unlock()
	return collator.CompareString(a, b)
}

// Fold lowercases s, strips diacritics and transliterates letters that have
// no decomposition (ł, ø, ß) so "LUKASZ" matches "Łukasz".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToLower(unidecode.Unidecode(stripped))), " ")
}

// Search ranks registrants by exact, prefix and substring match on display
// name or identity fragment. Ties are broken by collated name, then id.
func Search(fragment string, snapshot []*models.Registrant, minLen, limit int) []Candidate {
	q := Fold(fragment)
	if utf8.RuneCountInString(q) < minLen || limit <= 0 {
		return nil
	}

	var out []Candidate
	for _, r := range snapshot {
		if r == nil {
			continue
		}
		if m := match(q, r); m != matchNone {
			out = append(out, Candidate{Registrant: r, Match: m})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Match != out[j].Match {
			return out[i].Match < out[j].Match
		}
		if c := compareNames(out[i].Registrant.DisplayName, out[j].Registrant.DisplayName); c != 0 {
			return c < 0
		}
		return out[i].Registrant.ID < out[j].Registrant.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func match(q string, r *models.Registrant) MatchKind {
	name := Fold(r.DisplayName)
	fragment := Fold(r.NationalIDFragment)

	switch {
	case q == name || (fragment != "" && q == fragment):
		return MatchExact
	case strings.HasPrefix(name, q) || (fragment != "" && strings.HasPrefix(fragment, q)):
		return MatchPrefix
	}
	for _, word := range strings.Fields(name) {
		if strings.HasPrefix(word, q) {
			return MatchPrefix
		}
	}
	if strings.Contains(name, q) || strings.Contains(fragment, q) {
		return MatchSubstring
	}
	return matchNone
}
