package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

var ErrMissingCredentials = errors.New("app id, app secret and short-lived token are required")

// Exchanger trades a short-lived user token for a long-lived one through
// the Graph API fb_exchange_token grant.
type Exchanger struct {
	baseURL    string
	version    string
	appID      string
	appSecret  string
	httpClient *http.Client
}

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Error       *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func NewExchanger(baseURL, version, appID, appSecret string, timeout time.Duration) *Exchanger {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Exchanger{
		baseURL:    strings.TrimRight(baseURL, "/"),
		version:    version,
		appID:      appID,
		appSecret:  appSecret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (e *Exchanger) endpoint(shortToken string) string {
	q := url.Values{}
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", e.appID)
	q.Set("client_secret", e.appSecret)
	q.Set("fb_exchange_token", shortToken)
	return fmt.Sprintf("%s/%s/oauth/access_token?%s", e.baseURL, e.version, q.Encode())
}

// Exchange returns a new long-lived token created now.
func (e *Exchanger) Exchange(ctx context.Context, shortToken string) (Token, error) {
	if e.appID == "" || e.appSecret == "" || shortToken == "" {
		return Token{}, ErrMissingCredentials
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint(shortToken), nil)
	if err != nil {
		return Token{}, fmt.Errorf("build exchange request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		// url.Error would echo the query string, which carries the app secret
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return Token{}, fmt.Errorf("exchange token: %w", uerr.Err)
		}
		return Token{}, fmt.Errorf("exchange token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Token{}, fmt.Errorf("read exchange response: %w", err)
	}

	var out exchangeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Token{}, fmt.Errorf("decode exchange response (status %d): %w", resp.StatusCode, err)
	}
	if out.Error != nil && out.Error.Message != "" {
		return Token{}, fmt.Errorf("exchange token: status %d: %s", resp.StatusCode, out.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Token{}, fmt.Errorf("exchange token: status %d", resp.StatusCode)
	}
	if out.AccessToken == "" {
		return Token{}, errors.New("exchange response has no access_token")
	}

	tok := Token{
		AccessToken: out.AccessToken,
		CreatedAt:   time.Now().UTC(),
		ExpiresIn:   out.ExpiresIn,
	}
	if tok.ExpiresIn <= 0 {
		tok.ExpiresIn = int64(DefaultLifetime / time.Second)
	}
	return tok, nil
}
