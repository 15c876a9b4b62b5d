package enrich

import "strings"

// Digits strips everything but ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone returns the 10-digit NANP form of s, or "" when s is not a
// US number. A leading country code 1 is dropped.
func NormalizePhone(s string) string {
	d := Digits(s)
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return ""
	}
	return d
}

// E164 formats a 10-digit phone as +1XXXXXXXXXX.
func E164(phone string) string {
	if n := NormalizePhone(phone); n != "" {
		return "+1" + n
	}
	return ""
}
