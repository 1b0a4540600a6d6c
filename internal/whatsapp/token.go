package whatsapp

import "errors"

var ErrNoToken = errors.New("no WhatsApp access token available")

// TokenSource supplies the bearer token for Graph API calls. It is asked
// on every send so a refreshed token is picked up without a restart.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a fixed access token, usually WHATSAPP_ACCESS_TOKEN.
type StaticToken string

func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}

type fallbackToken struct {
	primary, fallback TokenSource
}

// FallbackToken asks primary first and falls back when it has no token.
func FallbackToken(primary, fallback TokenSource) TokenSource {
	return fallbackToken{primary: primary, fallback: fallback}
}

func (f fallbackToken) Token() (string, error) {
	if tok, err := f.primary.Token(); err == nil && tok != "" {
		return tok, nil
	}
	return f.fallback.Token()
}
