package geo

import (
	"regexp"
	"strings"
)

// Place is a parsed free-text location.
type Place struct {
	City  string
	State string
	Zip   string
}

var (
	zipPattern   = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\b`)
	areaSuffixes = []string{" metropolitan area", " metro area", " metroplex", " area"}
	countries    = map[string]bool{
		"united states":            true,
		"united states of america": true,
		"usa":                      true,
		"us":                       true,
		"u.s.":                     true,
	}
)

// ParseLocation splits strings like "Austin, Texas, United States",
// "Austin, TX 78701" or "Greater Houston Area" into city, state code and ZIP.
func ParseLocation(loc string) Place {
	var p Place
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return p
	}

	if m := zipPattern.FindStringSubmatch(loc); m != nil {
		p.Zip = m[1]
		loc = strings.TrimSpace(zipPattern.ReplaceAllString(loc, ""))
	}

	var parts []string
	for _, part := range strings.Split(loc, ",") {
		part = strings.TrimSpace(part)
		if part == "" || countries[strings.ToLower(part)] {
			continue
		}
		parts = append(parts, part)
	}

	switch len(parts) {
	case 0:
	case 1:
		if code := StateCode(parts[0]); code != "" {
			p.State = code
		} else {
			p.City = trimArea(parts[0])
		}
	default:
		p.City = trimArea(parts[0])
		p.State = StateCode(parts[1])
	}
	return p
}

func trimArea(s string) string {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "greater ") {
		s = s[len("greater "):]
		lower = lower[len("greater "):]
	}
	for _, suf := range areaSuffixes {
		if strings.HasSuffix(lower, suf) {
			s = s[:len(s)-len(suf)]
			break
		}
	}
	return strings.TrimSpace(s)
}
