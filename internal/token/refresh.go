package token

import (
	"context"
	"fmt"
	"time"
)

// TokenExchanger is satisfied by *Exchanger.
type TokenExchanger interface {
	Exchange(ctx context.Context, shortToken string) (Token, error)
}

// Refresh exchanges shortToken and saves the result when the stored token
// is missing, incomplete or near expiry, or always when force is set. It
// reports whether a new token was saved.
func Refresh(ctx context.Context, store *Store, exchanger TokenExchanger, shortToken string, force bool, now func() time.Time) (bool, error) {
	if now == nil {
		now = time.Now
	}

	if !force {
		// An unreadable file is replaced like a missing one
		if current, err := store.Load(); err == nil && !current.NeedsRefresh(now()) {
			return false, nil
		}
	}

	tok, err := exchanger.Exchange(ctx, shortToken)
	if err != nil {
		return false, err
	}
	tok.CreatedAt = now().UTC()

	if err := store.Save(tok); err != nil {
		return false, fmt.Errorf("save token: %w", err)
	}
	return true, nil
}
