// Package ledger asks the expenses API for a user's records in a period and
// sums them.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gastosbot/internal/core"
	applog "gastosbot/internal/log"
	"gastosbot/internal/metrics"
)

const maxResponseBytes = 4 << 20

// User-facing failure texts embedded in replies.
const (
	MsgNotConfigured    = "Configuração da API de gastos ausente."
	MsgInsufficientData = "Dados insuficientes para buscar gastos."
	MsgUnexpectedBody   = "Resposta inesperada da API de gastos."
	MsgCommunication    = "Erro de comunicação com a API de gastos."
)

var errNotArray = errors.New("expenses API body is not an array")

// StatusError is a non-2xx answer from the expenses API.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Erro da API de gastos: %d", e.Status)
}

type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *applog.Logger
}

type expenseRecord struct {
	ID    json.RawMessage `json:"id"`
	Value json.RawMessage `json:"valor"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *applog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger.WithComponent(applog.ComponentLedger),
	}
}

// Aggregate sums the "valor" of every record the expenses API returns for
// userID in p. Exactly one GET is made unless the call fails locally.
func (c *Client) Aggregate(ctx context.Context, userID int64, p core.Period) core.AggregationResult {
	if c.baseURL == "" {
		c.logger.ErrorContext(ctx, "API_GASTOS_URL not configured", applog.FieldOperation, applog.OpAggregate)
		return core.Failure(MsgNotConfigured)
	}
	if err := p.Validate(); userID <= 0 || err != nil {
		c.logger.ErrorContext(ctx, "Insufficient data for aggregation",
			applog.FieldUserID, userID, applog.FieldPeriod, p.Kind.String(), applog.FieldError, err)
		return core.Failure(MsgInsufficientData)
	}

	total, err := c.fetchAndSum(ctx, userID, p)
	if err != nil {
		metrics.UpstreamError(metrics.UpstreamLedger)
		c.logger.ErrorContext(ctx, "Expense aggregation failed",
			applog.FieldUserID, userID, applog.FieldPeriod, p.Label(), applog.FieldError, err)

		var statusErr *StatusError
		switch {
		case errors.As(err, &statusErr):
			return core.Failure(statusErr.Error())
		case errors.Is(err, errNotArray):
			return core.Failure(MsgUnexpectedBody)
		default:
			return core.Failure(MsgCommunication)
		}
	}

	c.logger.InfoContext(ctx, "Expenses aggregated",
		applog.FieldUserID, userID, applog.FieldPeriod, p.Label(), "total", total.Amount.StringFixed(2))
	return core.Sum(total)
}

// Query builds the query string for one aggregation request.
func Query(userID int64, p core.Period) url.Values {
	q := url.Values{}
	q.Set("id_usuario", strconv.FormatInt(userID, 10))
	switch p.Kind {
	case core.PeriodMonth:
		q.Set("ano", strconv.Itoa(p.Year))
		q.Set("mes", strconv.Itoa(p.Month))
	case core.PeriodQuarter:
		q.Set("ano", strconv.Itoa(p.Year))
		q.Set("trimestre", strconv.Itoa(p.Quarter))
	case core.PeriodYear:
		q.Set("ano", strconv.Itoa(p.Year))
		q.Set("opcao", "anual")
	case core.PeriodRange:
		q.Set("data_inicio", p.Start)
		q.Set("data_fim", p.End)
	}
	return q
}

func (c *Client) fetchAndSum(ctx context.Context, userID int64, p core.Period) (core.Money, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return core.Money{}, fmt.Errorf("parse expenses API URL: %w", err)
	}
	q := u.Query()
	for k, vs := range Query(userID, p) {
		q[k] = vs
	}
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return core.Money{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.Money{}, fmt.Errorf("request expenses API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return core.Money{}, fmt.Errorf("read expenses API response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.Money{}, &StatusError{Status: resp.StatusCode}
	}

	var records []expenseRecord
	if err := json.Unmarshal(body, &records); err != nil || records == nil {
		return core.Money{}, errNotArray
	}

	total := core.ZeroMoney()
	for _, r := range records {
		amount, err := core.ParseAmount(r.Value)
		if err != nil {
			c.logger.WarnContext(ctx, "Skipping record with invalid valor",
				"record_id", string(r.ID), "valor", string(r.Value))
			continue
		}
		total = total.Add(amount)
	}
	return total, nil
}
