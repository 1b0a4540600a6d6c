// Package whatsapp talks to the WhatsApp Cloud API: it sends replies and
// decodes the webhook notifications the platform delivers.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gastosbot/internal/core"
	applog "gastosbot/internal/log"
	"gastosbot/internal/metrics"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v19.0"

	maxErrorExcerpt = 512
)

type Client struct {
	baseURL    string
	version    string
	tokens     TokenSource
	timeout    time.Duration
	httpClient *http.Client
	logger     *applog.Logger
}

type (
	textPayload struct {
		MessagingProduct string   `json:"messaging_product"`
		To               string   `json:"to"`
		Type             string   `json:"type"`
		Text             textBody `json:"text"`
	}

	textBody struct {
		Body string `json:"body"`
	}

	interactivePayload struct {
		MessagingProduct string             `json:"messaging_product"`
		To               string             `json:"to"`
		Type             string             `json:"type"`
		Interactive      interactiveMessage `json:"interactive"`
	}

	interactiveMessage struct {
		Type   string            `json:"type"`
		Body   textField         `json:"body"`
		Action interactiveAction `json:"action"`
	}

	textField struct {
		Text string `json:"text"`
	}

	interactiveAction struct {
		Buttons []replyButton `json:"buttons"`
	}

	replyButton struct {
		Type  string      `json:"type"`
		Reply buttonReply `json:"reply"`
	}

	buttonReply struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
)

func NewClient(baseURL, version string, tokens TokenSource, timeout time.Duration, logger *applog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if version == "" {
		version = DefaultAPIVersion
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		version:    version,
		tokens:     tokens,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger.WithComponent(applog.ComponentWhatsApp),
	}
}

// Send delivers reply using the method that matches its kind.
func (c *Client) Send(ctx context.Context, botChannelID, recipientID string, reply core.OutboundReply) bool {
	if reply.Kind == core.ReplyQuickReplyButtons {
		return c.SendQuickReplyButtons(ctx, botChannelID, recipientID, reply.Body, reply.Options)
	}
	return c.SendText(ctx, botChannelID, recipientID, reply.Body)
}

// SendText sends a plain text message. It reports whether the platform
// accepted it.
func (c *Client) SendText(ctx context.Context, botChannelID, recipientID, body string) bool {
	if botChannelID == "" || recipientID == "" || body == "" {
		c.logger.ErrorContext(ctx, "Missing parameters for text message",
			applog.FieldChannel, botChannelID, applog.FieldSender, recipientID)
		metrics.MessageSent(core.ReplyText.String(), false)
		return false
	}
	ok := c.post(ctx, botChannelID, textPayload{
		MessagingProduct: "whatsapp",
		To:               recipientID,
		Type:             "text",
		Text:             textBody{Body: body},
	})
	metrics.MessageSent(core.ReplyText.String(), ok)
	return ok
}

// SendQuickReplyButtons sends body with one to five tappable buttons.
func (c *Client) SendQuickReplyButtons(ctx context.Context, botChannelID, recipientID, body string, options []core.Option) bool {
	if botChannelID == "" || recipientID == "" || body == "" {
		c.logger.ErrorContext(ctx, "Missing parameters for button message",
			applog.FieldChannel, botChannelID, applog.FieldSender, recipientID)
		metrics.MessageSent(core.ReplyQuickReplyButtons.String(), false)
		return false
	}
	if err := core.ValidateOptions(options); err != nil {
		c.logger.ErrorContext(ctx, "Invalid button options",
			applog.FieldSender, recipientID, "options", len(options), applog.FieldError, err)
		metrics.MessageSent(core.ReplyQuickReplyButtons.String(), false)
		return false
	}

	buttons := make([]replyButton, 0, len(options))
	for _, o := range options {
		buttons = append(buttons, replyButton{Type: "reply", Reply: buttonReply{ID: o.ID, Title: o.Title}})
	}
	ok := c.post(ctx, botChannelID, interactivePayload{
		MessagingProduct: "whatsapp",
		To:               recipientID,
		Type:             "interactive",
		Interactive: interactiveMessage{
			Type:   "button",
			Body:   textField{Text: body},
			Action: interactiveAction{Buttons: buttons},
		},
	})
	metrics.MessageSent(core.ReplyQuickReplyButtons.String(), ok)
	return ok
}

func (c *Client) post(ctx context.Context, botChannelID string, payload any) bool {
	token, err := c.tokens.Token()
	if err != nil || token == "" {
		c.logger.ErrorContext(ctx, "WhatsApp access token unavailable", applog.FieldError, err)
		return false
	}

	if err := c.do(ctx, botChannelID, token, payload); err != nil {
		metrics.UpstreamError(metrics.UpstreamWhatsApp)
		c.logger.ErrorContext(ctx, "WhatsApp send failed",
			applog.FieldOperation, applog.OpSend, applog.FieldChannel, botChannelID, applog.FieldError, err)
		return false
	}
	return true
}

func (c *Client) do(ctx context.Context, botChannelID, token string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/" + c.version + "/" + url.PathEscape(botChannelID) + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorExcerpt))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("graph API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}
	return nil
}
