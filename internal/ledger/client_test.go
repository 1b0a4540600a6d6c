package ledger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gastosbot/internal/core"
)

type fakeLedger struct {
	mu     sync.Mutex
	calls  int
	query  url.Values
	apiKey string
	status int
	body   string
}

func (f *fakeLedger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls++
	f.query = r.URL.Query()
	f.apiKey = r.Header.Get("x-api-key")
	status, body := f.status, f.body
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeLedger) snapshot() (int, url.Values, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.query, f.apiKey
}

func newLedger(t *testing.T, status int, body string) (*Client, *fakeLedger) {
	t.Helper()
	f := &fakeLedger{status: status, body: body}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "key", time.Second, nil), f
}

func TestAggregate_Sums(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"mixed values skip invalid", `[{"id":1,"valor":"10,00"},{"id":2,"valor":25.50},{"id":3,"valor":"14.50"}]`, "40.00"},
		{"empty array is zero", `[]`, "0.00"},
		{"null and missing values skipped", `[{"id":1,"valor":null},{"id":2},{"id":3,"valor":"7"}]`, "7.00"},
		{"decimal precision", `[{"valor":0.1},{"valor":0.2}]`, "0.30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newLedger(t, 200, tt.body)
			res := c.Aggregate(context.Background(), 7, core.MonthPeriod(2024, 5))
			require.False(t, res.Failed(), res.Err)
			require.NotNil(t, res.Total)
			assert.Equal(t, tt.want, res.Total.Amount.StringFixed(2))
		})
	}
}

func TestAggregate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"object body", 200, `{"total":10}`, MsgUnexpectedBody},
		{"null body", 200, `null`, MsgUnexpectedBody},
		{"garbage body", 200, `oops`, MsgUnexpectedBody},
		{"server error", 500, `{"error":"boom"}`, "Erro da API de gastos: 500"},
		{"unauthorized", 401, ``, "Erro da API de gastos: 401"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newLedger(t, tt.status, tt.body)
			res := c.Aggregate(context.Background(), 7, core.MonthPeriod(2024, 5))
			assert.True(t, res.Failed())
			assert.Nil(t, res.Total)
			assert.Equal(t, tt.wantErr, res.Err)
		})
	}
}

func TestAggregate_QueryPerPeriod(t *testing.T) {
	tests := []struct {
		name   string
		period core.Period
		want   map[string]string
		absent []string
	}{
		{"month", core.MonthPeriod(2024, 5), map[string]string{"ano": "2024", "mes": "5"}, []string{"trimestre", "opcao"}},
		{"quarter", core.QuarterPeriod(2024, 2), map[string]string{"ano": "2024", "trimestre": "2"}, []string{"mes", "opcao"}},
		{"year", core.YearPeriod(2024), map[string]string{"ano": "2024", "opcao": "anual"}, []string{"mes", "trimestre"}},
		{"range", core.RangePeriod("01/01/2023", "31/01/2023"), map[string]string{"data_inicio": "01/01/2023", "data_fim": "31/01/2023"}, []string{"ano"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, f := newLedger(t, 200, `[]`)
			res := c.Aggregate(context.Background(), 7, tt.period)
			require.False(t, res.Failed())

			calls, q, key := f.snapshot()
			assert.Equal(t, 1, calls)
			assert.Equal(t, "7", q.Get("id_usuario"))
			assert.Equal(t, "key", key)
			for k, v := range tt.want {
				assert.Equal(t, v, q.Get(k), k)
			}
			for _, k := range tt.absent {
				assert.False(t, q.Has(k), k)
			}
		})
	}
}

func TestAggregate_LocalFailuresMakeNoCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	res := NewClient("", "", time.Second, nil).Aggregate(context.Background(), 7, core.MonthPeriod(2024, 5))
	assert.Equal(t, MsgNotConfigured, res.Err)

	c := NewClient(srv.URL, "", time.Second, nil)
	assert.Equal(t, MsgInsufficientData, c.Aggregate(context.Background(), 0, core.MonthPeriod(2024, 5)).Err)
	assert.Equal(t, MsgInsufficientData, c.Aggregate(context.Background(), 7, core.MonthPeriod(2024, 13)).Err)
	assert.Equal(t, MsgInsufficientData, c.Aggregate(context.Background(), 7, core.RangePeriod("", "31/01/2023")).Err)

	assert.Zero(t, calls.Load())
}

func TestAggregate_CommunicationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	res := NewClient(addr, "", time.Second, nil).Aggregate(context.Background(), 7, core.YearPeriod(2024))
	assert.Equal(t, MsgCommunication, res.Err)
}

func TestAggregate_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	res := NewClient(srv.URL, "", 50*time.Millisecond, nil).Aggregate(context.Background(), 7, core.YearPeriod(2024))
	assert.Equal(t, MsgCommunication, res.Err)
}
