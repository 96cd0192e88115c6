// Package strcase splits identifiers into their component words.
package strcase

import (
	"unicode"
	"unicode/utf8"
)

// Split splits an identifier into runs of letters, digits and separators.
// Case transitions start a new run, with trailing upper-case runs split so
// that "HTTPServer" becomes "HTTP", "Server". Separators such as "_" are
// returned as runs of their own.
func Split(src string) []string {
	if !utf8.ValidString(src) {
		return []string{src}
	}
	var runes [][]rune
	lastClass := 0
	for _, r := range src {
		var class int
		switch {
		case unicode.IsLower(r):
			class = 1
		case unicode.IsUpper(r):
			class = 2
		case unicode.IsDigit(r):
			class = 3
		default:
			class = 4
		}
		if class == lastClass {
			runes[len(runes)-1] = append(runes[len(runes)-1], r)
		} else {
			runes = append(runes, []rune{r})
		}
		lastClass = class
	}
	// An upper-case run followed by a lower-case run donates its last rune
	// to the lower-case run: "PDFL", "oader" becomes "PDF", "Loader".
	for i := 0; i < len(runes)-1; i++ {
		if unicode.IsUpper(runes[i][0]) && unicode.IsLower(runes[i+1][0]) {
			runes[i+1] = append([]rune{runes[i][len(runes[i])-1]}, runes[i+1]...)
			runes[i] = runes[i][:len(runes[i])-1]
		}
	}
	entries := make([]string, 0, len(runes))
	for _, run := range runes {
		if len(run) > 0 {
			entries = append(entries, string(run))
		}
	}
	return entries
}
