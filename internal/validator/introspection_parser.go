package validator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// IntrospectionParser resolves tokens through Casdoor's RFC 7662 endpoint
// instead of verifying signatures locally. It suits deployments that need
// revocation to take effect before token expiry.
type IntrospectionParser struct {
	introspectionURL string
	clientID         string
	clientSecret     string
	httpClient       *http.Client
	logger           Logger
}

// NewIntrospectionParser creates a parser that calls the introspection endpoint.
//
// Parameters:
//   - introspectionURL: Casdoor introspection endpoint ({endpoint}/api/login/oauth/introspect)
//   - clientID: Application client ID used for HTTP basic authentication
//   - clientSecret: Application client secret used for HTTP basic authentication
//   - httpClient: HTTP client for introspection requests (optional, uses http.DefaultClient if nil)
//   - logger: Optional logger for debugging (can be nil)
func NewIntrospectionParser(introspectionURL, clientID, clientSecret string, httpClient *http.Client, logger Logger) (*IntrospectionParser, error) {
	if introspectionURL == "" {
		return nil, errors.New("validator: introspection URL is required")
	}
	if clientID == "" {
		return nil, errors.New("validator: introspection client ID is required")
	}
	if clientSecret == "" {
		return nil, errors.New("validator: introspection client secret is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &IntrospectionParser{
		introspectionURL: introspectionURL,
		clientID:         clientID,
		clientSecret:     clientSecret,
		httpClient:       httpClient,
		logger:           logger,
	}, nil
}

// ParseJWTToken introspects the token and builds a user record from the response.
func (p *IntrospectionParser) ParseJWTToken(ctx context.Context, tokenString string) (*User, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(tokenString) == "" {
		return nil, authError("token is empty", nil)
	}

	response, err := p.introspect(ctx, tokenString)
	if err != nil {
		return nil, err
	}

	user, err := userFromIntrospection(response)
	if err != nil {
		return nil, err
	}

	if p.logger != nil {
		p.logger.Printf("validator: introspected token for user %s", user.Name)
	}

	return user, nil
}

func (p *IntrospectionParser) introspect(ctx context.Context, tokenString string) (map[string]any, error) {
	values := url.Values{}
	values.Set("token", tokenString)
	values.Set("token_type_hint", "access_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.introspectionURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("validator: failed to create introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(p.clientID, p.clientSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("validator: introspection request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("validator: failed to read introspection response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("validator: introspection endpoint returned status %d", resp.StatusCode)
	}

	var response map[string]any
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("validator: invalid introspection response: %w", err)
	}

	if active, ok := response["active"].(bool); !ok || !active {
		return nil, authError("token is inactive", nil)
	}

	return response, nil
}

func userFromIntrospection(response map[string]any) (*User, error) {
	if expRaw, ok := response["exp"]; ok {
		expiry, err := parseUnixTime(expRaw)
		if err != nil {
			return nil, authError("invalid expiry claim", err)
		}
		if !expiry.After(time.Now()) {
			return nil, authError("token has expired", nil)
		}
	}

	// Casdoor reports the account as "owner/name" in username for user tokens.
	owner, name := "", claimString(response, "username")
	if i := strings.Index(name, "/"); i >= 0 {
		owner, name = name[:i], name[i+1:]
	}

	return &User{
		Owner: owner,
		Name:  name,
		ID:    claimString(response, "sub"),
	}, nil
}

func claimString(claims map[string]any, key string) string {
	value, ok := claims[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func parseUnixTime(raw any) (time.Time, error) {
	switch value := raw.(type) {
	case float64:
		return time.Unix(int64(value), 0), nil
	case json.Number:
		number, err := value.Int64()
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(number, 0), nil
	case string:
		number, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(number, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unexpected type %T", raw)
	}
}
