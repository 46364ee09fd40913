// Package title normalizes user-entered task titles and person names.
package title

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize renders s in sentence case. Words written entirely in capitals
// (two or more letters, such as "HVAC" or "TV") are kept as typed; every other
// word is lowercased and the first letter of the result is capitalized. A
// title of two or more words typed entirely in capitals is lowercased as a
// whole. Runs of whitespace collapse to one space.
func Normalize(s string) string {
	lower := cases.Lower(language.English)
	words := strings.Fields(s)
	shouting := isShouting(words)
	for i, w := range words {
		if shouting || !isAcronym(w) {
			words[i] = lower.String(w)
		}
	}
	out := strings.Join(words, " ")
	r, size := utf8.DecodeRuneInString(out)
	if r == utf8.RuneError {
		return out
	}
	return string(unicode.ToUpper(r)) + out[size:]
}

// Name capitalizes each part of a person's name: "mary ann" becomes "Mary Ann".
func Name(s string) string {
	return cases.Title(language.English).String(strings.Join(strings.Fields(s), " "))
}

func isShouting(words []string) bool {
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		if !isAcronym(w) && hasLower(w) {
			return false
		}
	}
	return true
}

func hasLower(w string) bool {
	for _, r := range w {
		if unicode.IsLower(r) {
			return true
		}
	}
	return false
}

func isAcronym(w string) bool {
	letters := 0
	for _, r := range w {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2
}
