package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Lead is a candidate contact record as received from upstream ingestion.
// It is resolved once from the raw record and never mutated by the pipeline.
type Lead struct {
	Name        string         `json:"name,omitempty"`
	FirstName   string         `json:"firstName,omitempty"`
	LastName    string         `json:"lastName,omitempty"`
	City        string         `json:"city,omitempty"`
	State       string         `json:"state,omitempty"`
	Location    string         `json:"location,omitempty"`
	ZipCode     string         `json:"zipCode,omitempty"`
	Phone       string         `json:"phone,omitempty"`
	Email       string         `json:"email,omitempty"`
	Age         string         `json:"age,omitempty"`
	LinkedInURL string         `json:"linkedinUrl,omitempty"`
	Title       string         `json:"title,omitempty"`
	Company     string         `json:"company,omitempty"`
	Raw         map[string]any `json:"raw,omitempty"`
}

// Field aliases, checked in priority order. The first non-empty match wins.
var (
	nameAliases      = []string{"name", "Name", "fullName", "full_name", "FullName", "fullname"}
	firstNameAliases = []string{"firstName", "first_name", "FirstName", "First Name", "firstname", "first"}
	lastNameAliases  = []string{"lastName", "last_name", "LastName", "Last Name", "lastname", "last"}
	cityAliases      = []string{"city", "City", "locality"}
	stateAliases     = []string{"state", "State", "region", "stateCode", "state_code"}
	locationAliases  = []string{"location", "Location", "geoLocationName", "locationName"}
	zipAliases       = []string{"zipCode", "zip", "Zip", "ZIP", "zip_code", "postalCode", "postal_code", "ZipCode"}
	phoneAliases     = []string{"phone", "Phone", "phoneNumber", "phone_number", "PhoneNumber", "mobile", "Mobile", "mobilePhone", "cell"}
	emailAliases     = []string{"email", "Email", "emailAddress", "email_address", "EmailAddress"}
	ageAliases       = []string{"age", "Age"}
	linkedInAliases  = []string{"linkedinUrl", "linkedInUrl", "linkedin_url", "profileUrl", "profile_url", "navigationUrl", "url"}
	titleAliases     = []string{"title", "Title", "headline", "jobTitle", "job_title"}
	companyAliases   = []string{"company", "Company", "companyName", "company_name", "currentCompany"}
)

// LeadFromRecord resolves a raw record into a Lead using the alias lists above.
func LeadFromRecord(rec map[string]any) Lead {
	l := Lead{
		Name:        firstField(rec, nameAliases),
		FirstName:   firstField(rec, firstNameAliases),
		LastName:    firstField(rec, lastNameAliases),
		City:        firstField(rec, cityAliases),
		State:       firstField(rec, stateAliases),
		Location:    firstField(rec, locationAliases),
		ZipCode:     firstField(rec, zipAliases),
		Phone:       firstField(rec, phoneAliases),
		Email:       firstField(rec, emailAliases),
		Age:         firstField(rec, ageAliases),
		LinkedInURL: firstField(rec, linkedInAliases),
		Title:       firstField(rec, titleAliases),
		Company:     firstField(rec, companyAliases),
		Raw:         rec,
	}
	if l.Name == "" && (l.FirstName != "" || l.LastName != "") {
		l.Name = strings.TrimSpace(l.FirstName + " " + l.LastName)
	}
	return l
}

// HasIdentity reports whether the lead carries enough identity information to
// attempt at least one enrichment stage: a name plus a location or a phone.
func (l Lead) HasIdentity() bool {
	hasName := l.Name != "" || (l.FirstName != "" && l.LastName != "")
	hasLocation := l.City != "" || l.State != "" || l.Location != "" || l.ZipCode != ""
	return hasName && (hasLocation || l.Phone != "")
}

func firstField(rec map[string]any, aliases []string) string {
	for _, key := range aliases {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		if s := stringify(v); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool, map[string]any, []any:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
