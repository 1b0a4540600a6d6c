// Package directory resolves a WhatsApp sender to a registered user through
// the users API.
package directory

import (
	"bytes"
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

	"gastosbot/internal/core"
	applog "gastosbot/internal/log"
	"gastosbot/internal/metrics"
)

const maxResponseBytes = 1 << 20

var (
	ErrNotConfigured = errors.New("users API URL not configured")
	ErrEmptyPhone    = errors.New("empty phone number")
	ErrUserNotFound  = errors.New("user not found")
	ErrMissingUserID = errors.New("directory record has no id_usuario")
)

// Client calls GET <baseURL>?numero_whatsapp=<phone>.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *applog.Logger
}

type record struct {
	ID   json.RawMessage `json:"id_usuario"`
	Name *string         `json:"nome_usuario"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *applog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentDirectory)
	if baseURL != "" && apiKey == "" {
		logger.Warn("INTERNAL_API_KEY not set, directory requests are sent without x-api-key")
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Lookup returns the user registered for phone. Every failure, including
// transport and decode errors, is reported as not found and logged.
func (c *Client) Lookup(ctx context.Context, phone string) (core.UserIdentity, bool) {
	id, err := c.lookup(ctx, phone)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			c.logger.InfoContext(ctx, "User not registered", applog.FieldSender, phone)
		case errors.Is(err, ErrNotConfigured), errors.Is(err, ErrEmptyPhone):
			c.logger.ErrorContext(ctx, "Directory lookup skipped", applog.FieldSender, phone, applog.FieldError, err)
		default:
			metrics.UpstreamError(metrics.UpstreamDirectory)
			c.logger.ErrorContext(ctx, "Directory lookup failed", applog.FieldSender, phone, applog.FieldError, err)
		}
		return core.UserIdentity{}, false
	}
	c.logger.DebugContext(ctx, "User identified", applog.FieldSender, phone, applog.FieldUserID, id.ID)
	return id, true
}

func (c *Client) lookup(ctx context.Context, phone string) (core.UserIdentity, error) {
	if c.baseURL == "" {
		return core.UserIdentity{}, ErrNotConfigured
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return core.UserIdentity{}, ErrEmptyPhone
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return core.UserIdentity{}, fmt.Errorf("parse users API URL: %w", err)
	}
	q := u.Query()
	q.Set("numero_whatsapp", phone)
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return core.UserIdentity{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.UserIdentity{}, fmt.Errorf("request users API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return core.UserIdentity{}, fmt.Errorf("read users API response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return core.UserIdentity{}, ErrUserNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.UserIdentity{}, fmt.Errorf("users API returned status %d", resp.StatusCode)
	}

	rec, err := decodeRecord(body)
	if err != nil {
		return core.UserIdentity{}, err
	}
	return rec.identity()
}

// decodeRecord accepts either a JSON array (first element wins) or a
// single object.
func decodeRecord(body []byte) (*record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrUserNotFound
	}
	switch trimmed[0] {
	case '[':
		var recs []record
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, fmt.Errorf("decode users API array: %w", err)
		}
		if len(recs) == 0 {
			return nil, ErrUserNotFound
		}
		return &recs[0], nil
	case '{':
		var rec record
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return nil, fmt.Errorf("decode users API object: %w", err)
		}
		return &rec, nil
	default:
		return nil, ErrUserNotFound
	}
}

func (r *record) identity() (core.UserIdentity, error) {
	id, err := parseID(r.ID)
	if err != nil {
		return core.UserIdentity{}, err
	}
	name := core.DefaultDisplayName
	if r.Name != nil && strings.TrimSpace(*r.Name) != "" {
		name = strings.TrimSpace(*r.Name)
	}
	return core.UserIdentity{ID: id, DisplayName: name}, nil
}

// parseID reads id_usuario as a JSON number or a numeric string.
func parseID(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, ErrMissingUserID
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, ErrMissingUserID
		}
		s = strings.TrimSpace(s)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrMissingUserID
	}
	return id, nil
}
