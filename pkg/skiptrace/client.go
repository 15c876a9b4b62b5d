// Package skiptrace provides a client for a RapidAPI-hosted people search
// (skip-tracing) API: name search, reverse phone lookup and age lookup.
package skiptrace

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/lead-enricher/pkg/apiclient"
)

// Service is the name used for rate limiting, breakers and errors.
const Service = "skiptrace"

// Client defines the skip-tracing operations.
type Client interface {
	// SearchByName finds the best person match for a name and a
	// "City, ST ZIP" style location.
	SearchByName(ctx context.Context, name, cityStateZip string) (*Person, error)
	// SearchByPhone performs a reverse lookup on a 10-digit phone.
	SearchByPhone(ctx context.Context, phone string) (*Person, error)
	// LookupAge returns age and date of birth for a name and location.
	LookupAge(ctx context.Context, name, cityStateZip string) (*AgeRecord, error)
}

// Person is the first match of a search. Fields are empty when the provider
// had no match. Raw always holds the provider body.
type Person struct {
	Name     string          `json:"name"`
	Phone    string          `json:"phone"`
	Email    string          `json:"email"`
	Age      string          `json:"age"`
	DOB      string          `json:"dob"`
	Location string          `json:"location"`
	Raw      json.RawMessage `json:"raw,omitempty"`

	// Cached is set by caching decorators when no paid call was made.
	Cached bool `json:"-"`
}

// Found reports whether the search matched anyone.
func (p *Person) Found() bool {
	return p != nil && (p.Name != "" || p.Phone != "" || p.Email != "")
}

// AgeRecord is the result of an age lookup.
type AgeRecord struct {
	Age string          `json:"age"`
	DOB string          `json:"dob"`
	Raw json.RawMessage `json:"raw,omitempty"`

	Cached bool `json:"-"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHost sets the X-RapidAPI-Host header value.
func WithHost(host string) Option {
	return func(c *httpClient) {
		c.host = host
	}
}

type httpClient struct {
	apiKey  string
	host    string
	baseURL string
	api     *apiclient.Client
}

// NewClient creates a skip-tracing client that sends every call through api.
func NewClient(apiKey string, api *apiclient.Client, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		host:    "skip-tracing-working-api.p.rapidapi.com",
		baseURL: "https://skip-tracing-working-api.p.rapidapi.com",
		api:     api,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) SearchByName(ctx context.Context, name, cityStateZip string) (*Person, error) {
	body, err := c.get(ctx, "/search/byname", url.Values{
		"name":         {name},
		"citystatezip": {cityStateZip},
		"page":         {"1"},
	})
	if err != nil {
		return nil, eris.Wrap(err, "skiptrace: search by name")
	}
	return parsePerson(body), nil
}

func (c *httpClient) SearchByPhone(ctx context.Context, phone string) (*Person, error) {
	body, err := c.get(ctx, "/search/byphone", url.Values{
		"phoneno": {phone},
		"page":    {"1"},
	})
	if err != nil {
		return nil, eris.Wrap(err, "skiptrace: search by phone")
	}
	return parsePerson(body), nil
}

func (c *httpClient) LookupAge(ctx context.Context, name, cityStateZip string) (*AgeRecord, error) {
	body, err := c.get(ctx, "/search/age", url.Values{
		"name":         {name},
		"citystatezip": {cityStateZip},
	})
	if err != nil {
		return nil, eris.Wrap(err, "skiptrace: lookup age")
	}
	p := parsePerson(body)
	return &AgeRecord{Age: p.Age, DOB: p.DOB, Raw: p.Raw}, nil
}

// get returns the body of a 2xx response. A 404 is an empty match, not an
// error.
func (c *httpClient) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	resp, err := c.api.Do(ctx, apiclient.Request{
		Service: Service,
		Method:  http.MethodGet,
		URL:     c.baseURL + path,
		Query:   q,
		Header: http.Header{
			"X-Rapidapi-Key":  {c.apiKey},
			"X-Rapidapi-Host": {c.host},
			"Accept":          {"application/json"},
		},
	})
	if err != nil {
		var se *apiclient.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return se.Body, nil
		}
		return nil, err
	}
	return resp.Body, nil
}

// Result paths, checked in order. The provider has shipped several response
// layouts; the first person found under any of them is used.
var (
	peoplePaths = []string{"PeopleDetails", "people", "data", "results"}
	namePaths   = []string{"Name", "name", "fullName"}
	phonePaths  = []string{"Telephone", "phone", "Phone", "phones.0.number", "phones.0", "Phone Numbers.0"}
	emailPaths  = []string{"Email", "email", "emails.0.address", "emails.0", "Email Addresses.0"}
	agePaths    = []string{"Age", "age"}
	dobPaths    = []string{"DOB", "dob", "Born", "birthDate"}
	locPaths    = []string{"Lives in", "location", "address.full", "Address"}
)

func parsePerson(body []byte) *Person {
	p := &Person{}
	if len(body) > 0 && gjson.ValidBytes(body) {
		p.Raw = json.RawMessage(body)
	}
	root := gjson.ParseBytes(body)

	person := root
	for _, path := range peoplePaths {
		r := root.Get(path)
		if r.IsArray() {
			if first := r.Get("0"); first.Exists() {
				person = first
				break
			}
		} else if r.IsObject() {
			person = r
			break
		}
	}

	p.Name = firstString(person, namePaths)
	p.Phone = firstString(person, phonePaths)
	p.Email = firstString(person, emailPaths)
	p.Age = firstString(person, agePaths)
	p.DOB = firstString(person, dobPaths)
	p.Location = firstString(person, locPaths)
	return p
}

func firstString(r gjson.Result, paths []string) string {
	for _, path := range paths {
		v := r.Get(path)
		if !v.Exists() || v.IsObject() || v.IsArray() {
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return ""
}
