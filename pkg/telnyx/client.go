// Package telnyx provides a client for the Telnyx number lookup API.
package telnyx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/pkg/apiclient"
)

// Service is the name used for rate limiting, breakers and errors.
const Service = "telnyx"

// Client defines the Telnyx number lookup operations.
type Client interface {
	// Lookup returns carrier and line-type data for an E.164 number.
	Lookup(ctx context.Context, e164 string) (*Lookup, error)
}

// Lookup is the subset of a number lookup the pipeline decides on.
type Lookup struct {
	PhoneNumber string          `json:"phone_number"`
	CarrierName string          `json:"carrier_name"`
	CarrierType string          `json:"carrier_type"`
	LineType    string          `json:"line_type"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// LineTypeOrCarrierType prefers the portability line type, which reflects
// ports, over the carrier's original type.
func (l *Lookup) LineTypeOrCarrierType() string {
	if l.LineType != "" {
		return l.LineType
	}
	return l.CarrierType
}

type lookupResponse struct {
	Data struct {
		PhoneNumber string `json:"phone_number"`
		Carrier     struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"carrier"`
		Portability struct {
			LineType string `json:"line_type"`
		} `json:"portability"`
	} `json:"data"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	api     *apiclient.Client
}

// NewClient creates a Telnyx client that sends every call through api.
func NewClient(apiKey string, api *apiclient.Client, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.telnyx.com",
		api:     api,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Lookup(ctx context.Context, e164 string) (*Lookup, error) {
	if !strings.HasPrefix(e164, "+") {
		return nil, eris.Errorf("telnyx: number %q is not E.164", e164)
	}

	resp, err := c.api.Do(ctx, apiclient.Request{
		Service: Service,
		Method:  http.MethodGet,
		URL:     c.baseURL + "/v2/number_lookup/" + url.PathEscape(e164),
		Query:   url.Values{"type": {"carrier"}},
		Header: http.Header{
			"Authorization": {"Bearer " + c.apiKey},
			"Accept":        {"application/json"},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "telnyx: lookup")
	}

	var lr lookupResponse
	if err := json.Unmarshal(resp.Body, &lr); err != nil {
		return nil, eris.Wrap(err, "telnyx: decode lookup")
	}

	return &Lookup{
		PhoneNumber: lr.Data.PhoneNumber,
		CarrierName: lr.Data.Carrier.Name,
		CarrierType: lr.Data.Carrier.Type,
		LineType:    lr.Data.Portability.LineType,
		Raw:         json.RawMessage(resp.Body),
	}, nil
}
