// Package dnc provides a client for a Do-Not-Call status API.
package dnc

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
const Service = "dnc"

// Client defines the DNC operations.
type Client interface {
	// Check returns the DNC status of a 10-digit phone, authorized by a
	// bearer token.
	Check(ctx context.Context, phone, token string) (*Status, error)
}

// Status is the provider's answer for one phone.
type Status struct {
	IsDoNotCall   bool          `json:"isDoNotCall"`
	ContactStatus ContactStatus `json:"contactStatus"`
}

// ContactStatus says whether the agent may contact the number.
type ContactStatus struct {
	CanContact bool   `json:"canContact"`
	Reason     string `json:"reason,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithAgentNumber sets the agent number sent with each check.
func WithAgentNumber(n string) Option {
	return func(c *httpClient) {
		c.agentNumber = n
	}
}

type httpClient struct {
	baseURL     string
	agentNumber string
	api         *apiclient.Client
}

// NewClient creates a DNC client rooted at baseURL.
func NewClient(baseURL string, api *apiclient.Client, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		api:     api,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Check(ctx context.Context, phone, token string) (*Status, error) {
	q := url.Values{"phone": {phone}}
	if c.agentNumber != "" {
		q.Set("agentNumber", c.agentNumber)
	}

	resp, err := c.api.Do(ctx, apiclient.Request{
		Service: Service,
		Method:  http.MethodGet,
		URL:     c.baseURL + "/dnc/check",
		Query:   q,
		Header: http.Header{
			"Authorization": {"Bearer " + token},
			"Accept":        {"application/json"},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "dnc: check")
	}

	var st Status
	if err := json.Unmarshal(resp.Body, &st); err != nil {
		return nil, eris.Wrap(err, "dnc: decode check")
	}
	return &st, nil
}
