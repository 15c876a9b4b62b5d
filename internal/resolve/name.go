// Package resolve derives a searchable identity (first/last name, city,
// state, ZIP) from a lead without calling any provider.
package resolve

import (
	"strings"
	"unicode"
)

// suffixes are trailing name tokens that are never a last name. Keys are
// lower-case with dots removed.
var suffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true, "v": true,
	"phd": true, "md": true, "dds": true, "dvm": true, "esq": true,
	"cpa": true, "mba": true, "jd": true, "rn": true, "np": true, "pa": true,
	"cfp": true, "clu": true, "chfc": true, "pmp": true, "ret": true,
}

// SplitName splits a full name into first and last name. The first token is
// the first name. The last name is the right-most later token that is not an
// initial, a suffix or credential, or a short all-caps token in an otherwise
// mixed-case name. When every candidate is excluded, the token before the
// last one is used. Case is preserved.
func SplitName(full string) (first, last string) {
	tokens := strings.Fields(full)
	switch len(tokens) {
	case 0:
		return "", ""
	case 1:
		return trimPunct(tokens[0]), ""
	}

	first = trimPunct(tokens[0])
	mixedCase := hasLower(full)

	for i := len(tokens) - 1; i >= 1; i-- {
		tok := trimPunct(tokens[i])
		if isLastName(tok, mixedCase) {
			return first, tok
		}
	}

	if len(tokens) == 2 {
		return first, trimPunct(tokens[1])
	}
	return first, trimPunct(tokens[len(tokens)-2])
}

func isLastName(tok string, mixedCase bool) bool {
	letters := 0
	upper := true
	for _, r := range tok {
		if unicode.IsLetter(r) {
			letters++
			if !unicode.IsUpper(r) {
				upper = false
			}
		}
	}
	if letters <= 1 {
		return false
	}
	if suffixes[strings.ToLower(strings.ReplaceAll(tok, ".", ""))] {
		return false
	}
	if mixedCase && upper && letters <= 4 {
		return false
	}
	return true
}

func trimPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

func hasLower(s string) bool {
	for _, r := range s {
		if unicode.IsLower(r) {
			return true
		}
	}
	return false
}
