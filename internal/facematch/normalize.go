package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/photo-library/internal/database"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a name for comparison (lowercase, no diacritics, spaces for dashes).
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// PersonSearchText is the normalized text a people search query is matched against.
func PersonSearchText(p *database.Person) string {
	parts := []string{p.FirstName}
	if p.MiddleNames != nil {
		parts = append(parts, strings.Trim(*p.MiddleNames, "'\""))
	}
	parts = append(parts, p.Surname)
	if p.DisplayName != nil {
		parts = append(parts, *p.DisplayName)
	}
	return NormalizePersonName(strings.Join(parts, " "))
}

// MatchPeople returns the people whose names contain every word of query,
// ignoring case and diacritics. An empty query matches everyone.
func MatchPeople(people []database.Person, query string) []database.Person {
	words := strings.Fields(NormalizePersonName(query))
	if len(words) == 0 {
		return people
	}

	var out []database.Person
	for i := range people {
		text := PersonSearchText(&people[i])
		matched := true
		for _, w := range words {
			if !strings.Contains(text, w) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, people[i])
		}
	}
	return out
}
