// Package usageapi reads rate-limit utilization from the Claude OAuth usage
// endpoint.
package usageapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/neilberkman/ccdash/internal/core/models"
)

const (
	// DefaultBaseURL is the Anthropic API root
	DefaultBaseURL = "https://api.anthropic.com/"

	// DefaultTokenBaseURL hosts the OAuth token endpoint
	DefaultTokenBaseURL = "https://console.anthropic.com/"

	// OAuthClientID is the public client the Claude Code CLI logs in with
	OAuthClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"

	usagePath  = "api/oauth/usage"
	tokenPath  = "v1/oauth/token"
	oauthBeta  = "oauth-2025-04-20"
	betaHeader = "anthropic-beta"
)

// ErrNoToken is returned when FetchUsage is called without a token
var ErrNoToken = errors.New("no OAuth token")

// AuthError means the token was rejected. Callers should try to recover a
// fresh credential instead of showing the error.
type AuthError struct {
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Client fetches usage with an OAuth bearer token
type Client struct {
	api       *anthropic.Client
	tokenBase string
}

// New creates a usage client. Extra options (a base URL in tests, an HTTP
// client) are applied after the defaults.
func New(opts ...option.RequestOption) *Client {
	base := []option.RequestOption{
		option.WithBaseURL(DefaultBaseURL),
		// a failed fetch waits for the next refresh cycle
		option.WithMaxRetries(0),
		// OAuth tokens go in Authorization; never send an API key from the env
		option.WithHeaderDel("X-Api-Key"),
	}
	client := anthropic.NewClient(append(base, opts...)...)
	return &Client{api: &client, tokenBase: DefaultTokenBaseURL}
}

// WithTokenBaseURL points token refreshes at another host
func (c *Client) WithTokenBaseURL(u string) *Client {
	c.tokenBase = u
	return c
}

// FetchUsage returns the current utilization of every rate-limit window
func (c *Client) FetchUsage(ctx context.Context, token string) (*models.UsageResponse, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	var out models.UsageResponse
	err := c.api.Get(ctx, usagePath, nil, &out,
		option.WithAuthToken(token),
		option.WithHeader(betaHeader, oauthBeta),
	)
	if err != nil {
		return nil, classify(err)
	}
	return &out, nil
}

// ExchangeRefreshToken trades a refresh token for a new access token
func (c *Client) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*models.OAuthTokens, error) {
	if refreshToken == "" {
		return nil, errors.New("no refresh token")
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {OAuthClientID},
	}

	var out models.OAuthTokens
	err := c.api.Post(ctx, tokenPath, nil, &out,
		option.WithBaseURL(c.tokenBase),
		option.WithHeaderDel("Authorization"),
		option.WithRequestBody("application/x-www-form-urlencoded", []byte(form.Encode())),
	)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("token refresh failed with status %d: %w", apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	if out.AccessToken == "" {
		return nil, errors.New("token refresh returned no access token")
	}
	return &out, nil
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return &AuthError{StatusCode: apiErr.StatusCode, Err: err}
		}
		return fmt.Errorf("usage request failed with status %d: %w", apiErr.StatusCode, err)
	}
	if matchesAuthPattern(err.Error()) {
		return &AuthError{Err: err}
	}
	return fmt.Errorf("usage request failed: %w", err)
}

var authPatterns = []string{
	"401",
	"token_expired",
	"authentication_error",
	"invalid_grant",
	"OAuth token has expired",
}

func matchesAuthPattern(msg string) bool {
	for _, p := range authPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsAuthError reports whether err means the token was rejected
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	return matchesAuthPattern(err.Error())
}
