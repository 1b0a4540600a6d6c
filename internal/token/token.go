// Package token keeps the long-lived Graph API access token on disk and
// exchanges a short-lived token for a new one when it nears expiry.
package token

import (
	"errors"
	"time"
)

const (
	// DefaultLifetime is the validity Meta grants a long-lived token.
	DefaultLifetime = 60 * 24 * time.Hour

	// RefreshThresholdDays is how many remaining days trigger a refresh.
	RefreshThresholdDays = 10

	day = 24 * time.Hour
)

var (
	ErrNoToken         = errors.New("no stored access token")
	ErrIncompleteToken = errors.New("stored token is incomplete")
)

// Token is the persisted form of token.json.
type Token struct {
	AccessToken string    `json:"access_token"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresIn   int64     `json:"expires_in"` // seconds
}

func (t Token) Validate() error {
	if t.AccessToken == "" || t.CreatedAt.IsZero() || t.ExpiresIn <= 0 {
		return ErrIncompleteToken
	}
	return nil
}

func (t Token) lifetime() time.Duration {
	if t.ExpiresIn <= 0 {
		return DefaultLifetime
	}
	return time.Duration(t.ExpiresIn) * time.Second
}

// RemainingDays counts whole days elapsed since creation against the lifetime.
func (t Token) RemainingDays(now time.Time) int {
	elapsed := int(now.Sub(t.CreatedAt) / day)
	return int(t.lifetime()/day) - elapsed
}

// NeedsRefresh is true for incomplete tokens and when RefreshThresholdDays
// or fewer days remain.
func (t Token) NeedsRefresh(now time.Time) bool {
	if t.Validate() != nil {
		return true
	}
	return t.RemainingDays(now) <= RefreshThresholdDays
}
