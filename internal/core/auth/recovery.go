// Package auth recovers from a rejected OAuth token before giving up on the
// connection.
package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/neilberkman/ccdash/internal/core/connection"
	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/internal/core/usageapi"
)

// ErrReauthRequired means every recovery attempt failed and the user has to
// log in again through the CLI
var ErrReauthRequired = errors.New("your Claude login has expired; run `claude` to log in again")

// Fetcher fetches usage with a token
type Fetcher interface {
	FetchUsage(ctx context.Context, token string) (*models.UsageResponse, error)
}

// Detector finds the token the CLI currently has on disk
type Detector interface {
	DetectOAuthToken(ctx context.Context, wslDistro string) (string, error)
}

// Refresher mints a new token, either through the OAuth refresh grant or by
// asking the CLI to renew its own
type Refresher interface {
	Refresh(ctx context.Context, current, wslDistro string) (string, error)
}

// Connection is the persisted credential being recovered
type Connection interface {
	Current() connection.Credential
	SetToken(ctx context.Context, token string) error
	Demote(ctx context.Context) error
}

// Recovery runs the recovery sequence: re-detect, then each refresher in
// order, then demote
type Recovery struct {
	conn       Connection
	fetcher    Fetcher
	detector   Detector
	refreshers []Refresher
	logger     *slog.Logger
}

// NewRecovery creates a Recovery. Nil refreshers are skipped.
func NewRecovery(conn Connection, fetcher Fetcher, detector Detector, refreshers ...Refresher) *Recovery {
	r := &Recovery{
		conn:     conn,
		fetcher:  fetcher,
		detector: detector,
		logger:   slog.Default(),
	}
	for _, ref := range refreshers {
		if ref != nil {
			r.refreshers = append(r.refreshers, ref)
		}
	}
	return r
}

// WithLogger sets the logger
func (r *Recovery) WithLogger(l *slog.Logger) *Recovery {
	r.logger = l
	return r
}

// Recover is called after a fetch was rejected as unauthenticated. On
// success it stores the working token and returns the usage fetched with it.
//
// A retry that fails for a reason other than authentication is returned as
// is and the connection is left alone. ErrReauthRequired is returned only
// after every attempt was rejected, and the connection has been demoted.
func (r *Recovery) Recover(ctx context.Context) (*models.UsageResponse, error) {
	cred := r.conn.Current()
	// every token rejected so far, starting with the stored one
	rejected := map[string]bool{cred.Token: true}

	tok, err := r.detector.DetectOAuthToken(ctx, cred.WSLDistro)
	if err != nil {
		r.logger.Debug("token re-detection failed", "error", err)
	} else if usage, done, err := r.attempt(ctx, rejected, tok); done {
		return usage, err
	}

	for _, ref := range r.refreshers {
		tok, err := ref.Refresh(ctx, cred.Token, cred.WSLDistro)
		if err != nil {
			r.logger.Debug("token refresh failed", "error", err)
			continue
		}
		if usage, done, err := r.attempt(ctx, rejected, tok); done {
			return usage, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.logger.Info("OAuth token could not be recovered, disconnecting")
	if err := r.conn.Demote(ctx); err != nil {
		r.logger.Warn("failed to clear stored token", "error", err)
	}
	return nil, ErrReauthRequired
}

// attempt retries with tok unless it was already rejected. done is false
// when the caller should move on to the next recovery step.
func (r *Recovery) attempt(ctx context.Context, rejected map[string]bool, tok string) (*models.UsageResponse, bool, error) {
	if tok == "" || rejected[tok] {
		r.logger.Debug("recovered token was already rejected")
		return nil, false, nil
	}
	usage, err := r.retry(ctx, tok)
	if err == nil || !usageapi.IsAuthError(err) {
		return usage, true, err
	}
	rejected[tok] = true
	return nil, false, nil
}

func (r *Recovery) retry(ctx context.Context, token string) (*models.UsageResponse, error) {
	usage, err := r.fetcher.FetchUsage(ctx, token)
	if err != nil {
		r.logger.Debug("retry with recovered token failed", "error", err)
		return nil, err
	}
	if err := r.conn.SetToken(ctx, token); err != nil {
		r.logger.Warn("failed to store recovered token", "error", err)
	}
	r.logger.Info("recovered OAuth token")
	return usage, nil
}
