package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/neilberkman/ccdash/internal/core/models"
)

// DefaultRefreshCommand makes the CLI touch its session, which renews an
// expired access token and rewrites the credentials file.
var DefaultRefreshCommand = []string{"claude", "-p", "/status"}

const refreshTimeout = 60 * time.Second

// ErrNoNewToken means the refresh command ran but the stored token did not change
var ErrNoNewToken = errors.New("CLI refresh did not produce a new token")

// CLIRefresher asks the Claude Code CLI to renew its own token
type CLIRefresher struct {
	Command  []string
	Detector *Detector
	Timeout  time.Duration
}

// NewCLIRefresher builds a refresher from a command line. An empty command
// uses DefaultRefreshCommand.
func NewCLIRefresher(command string, d *Detector) *CLIRefresher {
	args := strings.Fields(command)
	if len(args) == 0 {
		args = DefaultRefreshCommand
	}
	return &CLIRefresher{Command: args, Detector: d, Timeout: refreshTimeout}
}

// Refresh runs the command and returns the token the CLI stored afterwards.
// A token equal to current counts as failure.
func (r *CLIRefresher) Refresh(ctx context.Context, current, wslDistro string) (string, error) {
	if len(r.Command) == 0 {
		return "", errors.New("no refresh command configured")
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = refreshTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := r.Detector.Run(runCtx, r.Command[0], r.Command[1:]...); err != nil {
		return "", fmt.Errorf("failed to run %s: %w", strings.Join(r.Command, " "), err)
	}

	tok, ok := r.Detector.ReadCredentialsFile()
	if !ok || tok == current {
		return "", ErrNoNewToken
	}
	return tok, nil
}

// ErrNoRefreshToken means the stored login has no refresh token to trade in
var ErrNoRefreshToken = errors.New("no refresh token in stored credentials")

// TokenExchanger trades a refresh token for new tokens
type TokenExchanger interface {
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (*models.OAuthTokens, error)
}

// OAuthRefresher renews the access token with the stored refresh token and
// writes the new tokens back where the CLI will find them
type OAuthRefresher struct {
	Detector  *Detector
	Exchanger TokenExchanger
	Now       func() time.Time
}

// NewOAuthRefresher creates an OAuthRefresher
func NewOAuthRefresher(d *Detector, x TokenExchanger) *OAuthRefresher {
	return &OAuthRefresher{Detector: d, Exchanger: x, Now: time.Now}
}

// Refresh runs the refresh grant and returns the new access token
func (r *OAuthRefresher) Refresh(ctx context.Context, current, wslDistro string) (string, error) {
	creds, err := r.Detector.ReadFullCredentials(ctx, wslDistro)
	if err != nil {
		return "", err
	}
	if creds.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	tokens, err := r.Exchanger.ExchangeRefreshToken(ctx, creds.RefreshToken)
	if err != nil {
		return "", err
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	content, err := SaveTokens(creds.SourcePath, tokens, now())
	if err != nil {
		return "", fmt.Errorf("failed to save refreshed credentials: %w", err)
	}
	if err := r.Detector.UpdateKeyring(ctx, content); err != nil {
		r.Detector.logger().Debug("failed to update keyring", "error", err)
	}
	return tokens.AccessToken, nil
}

// SaveTokens writes refreshed tokens into a credentials file, keeping every
// other field, and returns the written JSON
func SaveTokens(path string, tokens *models.OAuthTokens, now time.Time) ([]byte, error) {
	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var existing map[string]any
		if err := dec.Decode(&existing); err == nil && existing != nil {
			doc = existing
		}
	}

	oauth, ok := doc["claudeAiOauth"].(map[string]any)
	if !ok {
		oauth = map[string]any{}
		doc["claudeAiOauth"] = oauth
	}
	oauth["accessToken"] = tokens.AccessToken
	if tokens.RefreshToken != "" {
		oauth["refreshToken"] = tokens.RefreshToken
	}
	if tokens.ExpiresIn > 0 {
		oauth["expiresAt"] = now.UnixMilli() + tokens.ExpiresIn*1000
	}

	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return nil, err
	}
	return content, nil
}
