package whatsapp

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"

	"gastosbot/internal/core"
)

const (
	// HandshakeMode is the only hub.mode the platform sends on subscription.
	HandshakeMode = "subscribe"
	// AckBody is written for every notification POST.
	AckBody = "EVENT_RECEIVED"
)

var (
	ErrHandshakeBadRequest = errors.New("incomplete webhook verification request")
	ErrHandshakeForbidden  = errors.New("webhook verification token mismatch")

	ErrMalformedNotification = errors.New("malformed webhook notification")
	ErrMissingObject         = errors.New("webhook notification has no object field")
)

// VerifyHandshake checks a subscription request and returns the challenge
// to echo back. An empty secret rejects every request.
func VerifyHandshake(mode, token, challenge, secret string) (string, error) {
	if mode == "" || token == "" || challenge == "" {
		return "", ErrHandshakeBadRequest
	}
	if mode != HandshakeMode || secret == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return "", ErrHandshakeForbidden
	}
	return challenge, nil
}

type ChangeKind int

const (
	ChangeMessage ChangeKind = iota
	ChangeStatus
	ChangeOther
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeMessage:
		return "message"
	case ChangeStatus:
		return "status"
	default:
		return "other"
	}
}

type (
	Notification struct {
		Object string  `json:"object"`
		Entry  []Entry `json:"entry"`
	}

	Entry struct {
		ID      string   `json:"id"`
		Changes []Change `json:"changes"`
	}

	Change struct {
		Field string       `json:"field"`
		Value *ChangeValue `json:"value"`
	}

	ChangeValue struct {
		MessagingProduct string    `json:"messaging_product"`
		Metadata         Metadata  `json:"metadata"`
		Contacts         []Contact `json:"contacts,omitempty"`
		Messages         []Message `json:"messages,omitempty"`
		Statuses         []Status  `json:"statuses,omitempty"`
	}

	Metadata struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	}

	Contact struct {
		WaID    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	}

	Message struct {
		ID          string       `json:"id"`
		From        string       `json:"from"`
		Timestamp   string       `json:"timestamp"`
		Type        string       `json:"type"`
		Text        *TextContent `json:"text,omitempty"`
		Interactive *Interactive `json:"interactive,omitempty"`
	}

	TextContent struct {
		Body string `json:"body"`
	}

	Interactive struct {
		Type        string       `json:"type"`
		ButtonReply *ReplyOption `json:"button_reply,omitempty"`
		ListReply   *ReplyOption `json:"list_reply,omitempty"`
	}

	ReplyOption struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description,omitempty"`
	}

	Status struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		RecipientID string `json:"recipient_id"`
		Timestamp   string `json:"timestamp"`
	}
)

// DecodeNotification parses a webhook POST body. A body without the
// top-level object field is rejected with ErrMissingObject.
func DecodeNotification(body []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	if n.Object == "" {
		return nil, ErrMissingObject
	}
	return &n, nil
}

// Kind tells what a change carries. Only the first message of a change
// is ever routed.
func (c Change) Kind() ChangeKind {
	switch {
	case c.Value != nil && len(c.Value.Messages) > 0:
		return ChangeMessage
	case c.Value != nil && c.Value.Statuses != nil:
		return ChangeStatus
	default:
		return ChangeOther
	}
}

// Event converts the change's first message into an InboundEvent.
func (c Change) Event() (core.InboundEvent, bool) {
	if c.Kind() != ChangeMessage {
		return core.InboundEvent{}, false
	}
	return c.Value.Messages[0].toEvent(c.Value.Metadata.PhoneNumberID), true
}

func (m Message) toEvent(botChannelID string) core.InboundEvent {
	ev := core.InboundEvent{
		MessageID:    m.ID,
		SenderID:     m.From,
		BotChannelID: botChannelID,
		RawType:      m.Type,
	}

	switch m.Type {
	case "text":
		ev.Kind = core.EventText
		if m.Text != nil {
			ev.Text = m.Text.Body
		}
	case "interactive":
		ev.Kind = core.EventUnsupported
		if m.Interactive == nil {
			ev.RawType = core.InteractiveRawTypePrefix
			break
		}
		switch {
		case m.Interactive.Type == "button_reply" && m.Interactive.ButtonReply != nil:
			ev.Kind = core.EventButtonReply
			ev.OptionID = m.Interactive.ButtonReply.ID
			ev.OptionTitle = m.Interactive.ButtonReply.Title
		case m.Interactive.Type == "list_reply" && m.Interactive.ListReply != nil:
			ev.Kind = core.EventListReply
			ev.OptionID = m.Interactive.ListReply.ID
			ev.OptionTitle = m.Interactive.ListReply.Title
		default:
			ev.RawType = core.InteractiveRawTypePrefix + m.Interactive.Type
		}
	default:
		ev.Kind = core.EventUnsupported
	}
	return ev
}
