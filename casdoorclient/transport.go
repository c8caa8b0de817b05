package casdoorclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Transport is an http.RoundTripper that adds a Casdoor access token to
// every outgoing request.
type Transport struct {
	// Base is the underlying transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// TokenManager provides the access tokens.
	TokenManager *TokenManager
}

// NewTransport wraps base with tm. A nil base means http.DefaultTransport.
func NewTransport(tm *TokenManager, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, TokenManager: tm}
}

// RoundTrip implements http.RoundTripper. The original request is not modified.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.TokenManager == nil {
		return nil, errors.New("casdoorclient: TokenManager is nil")
	}

	token, err := t.TokenManager.Token(req.Context())
	if err != nil {
		return nil, fmt.Errorf("casdoorclient: failed to get token: %w", err)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

// NewHTTPClient returns an http.Client whose requests carry tokens from tm.
func NewHTTPClient(tm *TokenManager, base http.RoundTripper) *http.Client {
	return &http.Client{Transport: NewTransport(tm, base)}
}
