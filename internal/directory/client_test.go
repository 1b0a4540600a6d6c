package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	mu  sync.Mutex
	req *http.Request
}

func (c *captured) last() *http.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req
}

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	seen := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.mu.Lock()
		seen.req = r.Clone(context.Background())
		seen.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestLookup_Shapes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantOK   bool
		wantID   int64
		wantName string
	}{
		{"array first element", 200, `[{"id_usuario":7,"nome_usuario":"Ana Silva"},{"id_usuario":8}]`, true, 7, "Ana Silva"},
		{"single object", 200, `{"id_usuario":12,"nome_usuario":"Bruno"}`, true, 12, "Bruno"},
		{"string id", 200, `{"id_usuario":"42","nome_usuario":"Carla"}`, true, 42, "Carla"},
		{"missing name defaults", 200, `[{"id_usuario":3}]`, true, 3, "Usuário"},
		{"null name defaults", 200, `{"id_usuario":3,"nome_usuario":null}`, true, 3, "Usuário"},
		{"empty array", 200, `[]`, false, 0, ""},
		{"object without id", 200, `{"nome_usuario":"Ana"}`, false, 0, ""},
		{"zero id", 200, `{"id_usuario":0}`, false, 0, ""},
		{"not json", 200, `<html>`, false, 0, ""},
		{"not found", 404, `{"message":"not found"}`, false, 0, ""},
		{"server error", 500, `{"id_usuario":7}`, false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.status, tt.body)
			c := NewClient(srv.URL, "k", time.Second, nil)

			id, ok := c.Lookup(context.Background(), "5511999990000")
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, id.ID)
				assert.Equal(t, tt.wantName, id.DisplayName)
			}
		})
	}
}

func TestLookup_SendsQueryAndAPIKey(t *testing.T) {
	srv, seen := newTestServer(t, 200, `[{"id_usuario":7}]`)
	c := NewClient(srv.URL+"/api/usuarios", "secret-key", time.Second, nil)

	_, ok := c.Lookup(context.Background(), "5511999990000")
	require.True(t, ok)

	req := seen.last()
	require.NotNil(t, req)
	assert.Equal(t, "/api/usuarios", req.URL.Path)
	assert.Equal(t, "5511999990000", req.URL.Query().Get("numero_whatsapp"))
	assert.Equal(t, "secret-key", req.Header.Get("x-api-key"))
}

func TestLookup_NoAPIKeyHeaderWhenUnset(t *testing.T) {
	srv, seen := newTestServer(t, 200, `[{"id_usuario":7}]`)
	c := NewClient(srv.URL, "", time.Second, nil)

	_, ok := c.Lookup(context.Background(), "5511")
	require.True(t, ok)
	assert.Empty(t, seen.last().Header.Get("x-api-key"))
}

func TestLookup_LocalFailuresMakeNoCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	_, ok := NewClient("", "k", time.Second, nil).Lookup(context.Background(), "5511")
	assert.False(t, ok)

	_, ok = NewClient(srv.URL, "k", time.Second, nil).Lookup(context.Background(), "  ")
	assert.False(t, ok)

	assert.Zero(t, calls.Load())
}

func TestLookup_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", 50*time.Millisecond, nil)
	_, ok := c.Lookup(context.Background(), "5511")
	assert.False(t, ok)
}
