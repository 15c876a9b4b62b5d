package token

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/lead-enricher/pkg/apiclient"
)

// CognitoRefresher exchanges a refresh token for an ID token using the
// Cognito REFRESH_TOKEN_AUTH flow.
type CognitoRefresher struct {
	api          *apiclient.Client
	endpoint     string
	clientID     string
	refreshToken string
}

// NewCognitoRefresher returns a refresher for the user pool in region. A
// non-empty endpoint overrides the regional URL.
func NewCognitoRefresher(api *apiclient.Client, region, endpoint, clientID, refreshToken string) *CognitoRefresher {
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/", region)
	}
	return &CognitoRefresher{
		api:          api,
		endpoint:     endpoint,
		clientID:     clientID,
		refreshToken: refreshToken,
	}
}

type initiateAuthRequest struct {
	AuthFlow       string            `json:"AuthFlow"`
	ClientID       string            `json:"ClientId"`
	AuthParameters map[string]string `json:"AuthParameters"`
}

// Refresh returns the ID token, or the access token when no ID token is
// issued.
func (r *CognitoRefresher) Refresh(ctx context.Context) (string, error) {
	if r.refreshToken == "" || r.clientID == "" {
		return "", ErrNoToken
	}

	body, err := json.Marshal(initiateAuthRequest{
		AuthFlow:       "REFRESH_TOKEN_AUTH",
		ClientID:       r.clientID,
		AuthParameters: map[string]string{"REFRESH_TOKEN": r.refreshToken},
	})
	if err != nil {
		return "", eris.Wrap(err, "token: marshal auth request")
	}

	resp, err := r.api.Do(ctx, apiclient.Request{
		Service: "cognito",
		Method:  http.MethodPost,
		URL:     r.endpoint,
		Body:    body,
		Header: http.Header{
			"Content-Type": {"application/x-amz-json-1.1"},
			"X-Amz-Target": {"AWSCognitoIdentityProviderService.InitiateAuth"},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "token: initiate auth")
	}

	result := gjson.GetBytes(resp.Body, "AuthenticationResult")
	if tok := result.Get("IdToken").String(); tok != "" {
		return tok, nil
	}
	if tok := result.Get("AccessToken").String(); tok != "" {
		return tok, nil
	}
	return "", eris.New("token: auth response has no token")
}
