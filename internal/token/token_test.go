package token

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func sixtyDayToken() Token {
	return Token{AccessToken: "EAAlong", CreatedAt: created, ExpiresIn: int64(DefaultLifetime / time.Second)}
}

func TestToken_RemainingDays(t *testing.T) {
	tok := sixtyDayToken()
	tests := []struct {
		name        string
		now         time.Time
		wantDays    int
		wantRefresh bool
	}{
		{"just created", created, 60, false},
		{"half a day later", created.Add(12 * time.Hour), 60, false},
		{"49 days in", created.Add(49 * day), 11, false},
		{"50 days in", created.Add(50 * day), 10, true},
		{"expired", created.Add(70 * day), -10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantDays, tok.RemainingDays(tt.now))
			assert.Equal(t, tt.wantRefresh, tok.NeedsRefresh(tt.now))
		})
	}
}

func TestToken_IncompleteNeedsRefresh(t *testing.T) {
	assert.True(t, Token{AccessToken: "x"}.NeedsRefresh(created))
	assert.ErrorIs(t, Token{CreatedAt: created, ExpiresIn: 10}.Validate(), ErrIncompleteToken)
}

func TestStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets", "token.json")
	store := NewStore(path)

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoToken)
	_, err = store.Token()
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, store.Save(sixtyDayToken()))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "EAAlong", got.AccessToken)
	assert.True(t, got.CreatedAt.Equal(created))

	access, err := store.Token()
	require.NoError(t, err)
	assert.Equal(t, "EAAlong", access)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStore_ReadsOriginalFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	body := `{
  "access_token": "EAAfromfile",
  "created_at": "2024-03-10T12:00:00.000Z",
  "expires_in": 5184000
}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	tok, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "EAAfromfile", tok.AccessToken)
	assert.Equal(t, 60, tok.RemainingDays(time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)))
}

func TestStore_RejectsIncompleteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"EAA"}`), 0o600))

	_, err := NewStore(path).Load()
	assert.ErrorIs(t, err, ErrIncompleteToken)
}

type graphCapture struct {
	mu    sync.Mutex
	path  string
	query map[string]string
}

func newGraphServer(t *testing.T, status int, body string) (*httptest.Server, *graphCapture) {
	t.Helper()
	c := &graphCapture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.path = r.URL.Path
		c.query = map[string]string{}
		for k := range r.URL.Query() {
			c.query[k] = r.URL.Query().Get(k)
		}
		c.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestExchanger_SendsGrantParameters(t *testing.T) {
	srv, seen := newGraphServer(t, http.StatusOK, `{"access_token":"EAAnew","token_type":"bearer","expires_in":5183944}`)
	ex := NewExchanger(srv.URL+"/", "v19.0", "app-1", "s3cret", time.Second)

	tok, err := ex.Exchange(context.Background(), "EAAshort")
	require.NoError(t, err)

	assert.Equal(t, "EAAnew", tok.AccessToken)
	assert.Equal(t, int64(5183944), tok.ExpiresIn)
	assert.False(t, tok.CreatedAt.IsZero())

	seen.mu.Lock()
	defer seen.mu.Unlock()
	assert.Equal(t, "/v19.0/oauth/access_token", seen.path)
	assert.Equal(t, map[string]string{
		"grant_type":        "fb_exchange_token",
		"client_id":         "app-1",
		"client_secret":     "s3cret",
		"fb_exchange_token": "EAAshort",
	}, seen.query)
}

func TestExchanger_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"graph error", http.StatusBadRequest, `{"error":{"message":"Error validating access token","type":"OAuthException","code":190}}`, "Error validating access token"},
		{"server error", http.StatusInternalServerError, `{}`, "status 500"},
		{"missing token", http.StatusOK, `{"token_type":"bearer"}`, "no access_token"},
		{"not json", http.StatusOK, `<html>`, "decode exchange response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newGraphServer(t, tt.status, tt.body)
			_, err := NewExchanger(srv.URL, "v19.0", "app-1", "s3cret", time.Second).Exchange(context.Background(), "EAAshort")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestExchanger_MissingCredentials(t *testing.T) {
	_, err := NewExchanger("http://127.0.0.1:1", "v19.0", "", "s3cret", time.Second).Exchange(context.Background(), "EAAshort")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

type fakeExchanger struct {
	calls int
	tok   Token
	err   error
}

func (f *fakeExchanger) Exchange(ctx context.Context, shortToken string) (Token, error) {
	f.calls++
	return f.tok, f.err
}

func TestRefresh(t *testing.T) {
	fresh := Token{AccessToken: "EAAfresh", CreatedAt: time.Now(), ExpiresIn: int64(DefaultLifetime / time.Second)}
	now := func() time.Time { return created.Add(55 * day) }

	tests := []struct {
		name      string
		stored    *Token
		force     bool
		exErr     error
		wantSaved bool
		wantCalls int
		wantErr   bool
	}{
		{name: "no stored token", wantSaved: true, wantCalls: 1},
		{name: "near expiry", stored: &Token{AccessToken: "EAAold", CreatedAt: created, ExpiresIn: int64(DefaultLifetime / time.Second)}, wantSaved: true, wantCalls: 1},
		{name: "still valid", stored: &Token{AccessToken: "EAAold", CreatedAt: created.Add(30 * day), ExpiresIn: int64(DefaultLifetime / time.Second)}},
		{name: "forced", stored: &Token{AccessToken: "EAAold", CreatedAt: created.Add(30 * day), ExpiresIn: int64(DefaultLifetime / time.Second)}, force: true, wantSaved: true, wantCalls: 1},
		{name: "exchange fails", exErr: errors.New("boom"), wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(filepath.Join(t.TempDir(), "token.json"))
			if tt.stored != nil {
				require.NoError(t, store.Save(*tt.stored))
			}
			ex := &fakeExchanger{tok: fresh, err: tt.exErr}

			saved, err := Refresh(context.Background(), store, ex, "EAAshort", tt.force, now)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantSaved, saved)
			assert.Equal(t, tt.wantCalls, ex.calls)

			if tt.wantSaved {
				got, err := store.Load()
				require.NoError(t, err)
				assert.Equal(t, "EAAfresh", got.AccessToken)
				assert.True(t, got.CreatedAt.Equal(now()), "created_at comes from the refresh clock")
			}
		})
	}
}
