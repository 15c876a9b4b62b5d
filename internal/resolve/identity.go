package resolve

import (
	"strings"

	"github.com/sells-group/lead-enricher/internal/geo"
	"github.com/sells-group/lead-enricher/internal/model"
)

// Identity is the resolved search key for a lead.
type Identity struct {
	FirstName string
	LastName  string
	City      string
	State     string
	ZipCode   string
}

// HasName reports whether both first and last name are known.
func (id Identity) HasName() bool {
	return id.FirstName != "" && id.LastName != ""
}

// FullName joins first and last name.
func (id Identity) FullName() string {
	return strings.TrimSpace(id.FirstName + " " + id.LastName)
}

// CityStateZip formats the location as "City, ST ZIP", omitting what is
// unknown.
func (id Identity) CityStateZip() string {
	var b strings.Builder
	b.WriteString(id.City)
	if id.State != "" {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(id.State)
	}
	if id.ZipCode != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(id.ZipCode)
	}
	return b.String()
}

// Resolve builds an Identity from lead. Explicit first/last fields win over
// splitting Name; explicit city/state win over parsing Location; the lead's
// ZIP wins over the local index. Missing data yields empty strings.
func Resolve(lead model.Lead, zips *geo.ZipIndex) Identity {
	var id Identity

	id.FirstName = strings.TrimSpace(lead.FirstName)
	id.LastName = strings.TrimSpace(lead.LastName)
	if id.FirstName == "" || id.LastName == "" {
		first, last := SplitName(lead.Name)
		if id.FirstName == "" {
			id.FirstName = first
		}
		if id.LastName == "" {
			id.LastName = last
		}
	}

	place := geo.ParseLocation(lead.Location)
	id.City = strings.TrimSpace(lead.City)
	if id.City == "" {
		id.City = place.City
	}
	id.State = geo.StateCode(lead.State)
	if id.State == "" {
		id.State = strings.TrimSpace(lead.State)
	}
	if id.State == "" {
		id.State = place.State
	}

	id.ZipCode = zip5(lead.ZipCode)
	if id.ZipCode == "" {
		id.ZipCode = place.Zip
	}
	if id.ZipCode == "" {
		id.ZipCode = zips.Lookup(id.City, id.State)
	}
	return id
}

// zip5 returns the first five digits of a ZIP or ZIP+4, or "".
func zip5(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 5 {
		return ""
	}
	for _, r := range s[:5] {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return s[:5]
}
