package core

import (
	"errors"
	"strings"
	"time"
)

const (
	EventText EventKind = iota
	EventButtonReply
	EventListReply
	EventUnsupported
)

// DefaultDisplayName is used when the directory has no name for a user.
const DefaultDisplayName = "Usuário"

// InteractiveRawTypePrefix marks an unsupported event that came from an
// interactive message of a type the bot does not handle.
const InteractiveRawTypePrefix = "interactive:"

type (
	EventKind int

	// InboundEvent is one user message delivered by the webhook.
	InboundEvent struct {
		MessageID    string    `json:"message_id,omitempty"`
		SenderID     string    `json:"sender_id"`
		BotChannelID string    `json:"bot_channel_id"`
		Kind         EventKind `json:"kind"`
		Text         string    `json:"text,omitempty"`
		OptionID     string    `json:"option_id,omitempty"`
		OptionTitle  string    `json:"option_title,omitempty"`
		RawType      string    `json:"raw_type,omitempty"`
	}

	UserIdentity struct {
		ID          int64
		DisplayName string
	}

	// EventRecord is the journal row written after an event is handled.
	EventRecord struct {
		MessageID    string
		SenderID     string
		BotChannelID string
		Kind         EventKind
		Command      CommandKind
		Identified   bool
		Delivered    bool
		Error        string
		Duration     time.Duration
		HandledAt    time.Time
	}
)

var (
	ErrMissingSender  = errors.New("missing sender id")
	ErrMissingChannel = errors.New("missing bot channel id")
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventButtonReply:
		return "button_reply"
	case EventListReply:
		return "list_reply"
	default:
		return "unsupported"
	}
}

// ParseEventKind is the inverse of EventKind.String. Unknown names map to
// EventUnsupported.
func ParseEventKind(name string) EventKind {
	for _, k := range []EventKind{EventText, EventButtonReply, EventListReply} {
		if k.String() == name {
			return k
		}
	}
	return EventUnsupported
}

func (e InboundEvent) Validate() error {
	if strings.TrimSpace(e.SenderID) == "" {
		return ErrMissingSender
	}
	if strings.TrimSpace(e.BotChannelID) == "" {
		return ErrMissingChannel
	}
	return nil
}

// IsInteractive reports whether the event came from a button or list tap.
func (e InboundEvent) IsInteractive() bool {
	return e.Kind == EventButtonReply || e.Kind == EventListReply
}

// IsUnknownInteraction reports whether an unsupported event was an
// interactive message rather than media or another message type.
func (e InboundEvent) IsUnknownInteraction() bool {
	return e.Kind == EventUnsupported && strings.HasPrefix(e.RawType, InteractiveRawTypePrefix)
}

// FirstName returns the first whitespace-delimited token of the display name.
func (u UserIdentity) FirstName() string {
	fields := strings.Fields(u.DisplayName)
	if len(fields) == 0 {
		return DefaultDisplayName
	}
	return fields[0]
}
