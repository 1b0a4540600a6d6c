package core

import (
	"errors"
	"strings"
)

const (
	ReplyText ReplyKind = iota
	ReplyQuickReplyButtons
)

// MaxQuickReplyOptions is the platform limit for reply buttons in one message.
const MaxQuickReplyOptions = 5

type (
	ReplyKind int

	// Option is one tappable quick-reply button.
	Option struct {
		ID    string
		Title string
	}

	OutboundReply struct {
		Kind    ReplyKind
		Body    string
		Options []Option
	}
)

var (
	ErrEmptyBody      = errors.New("empty reply body")
	ErrNoOptions      = errors.New("quick reply needs at least one option")
	ErrTooManyOptions = errors.New("quick reply allows at most 5 options")
	ErrInvalidOption  = errors.New("option needs id and title")
)

func TextReply(body string) OutboundReply {
	return OutboundReply{Kind: ReplyText, Body: body}
}

func ButtonsReply(body string, options ...Option) OutboundReply {
	return OutboundReply{Kind: ReplyQuickReplyButtons, Body: body, Options: options}
}

func (k ReplyKind) String() string {
	if k == ReplyQuickReplyButtons {
		return "buttons"
	}
	return "text"
}

func (r OutboundReply) Validate() error {
	if strings.TrimSpace(r.Body) == "" {
		return ErrEmptyBody
	}
	if r.Kind != ReplyQuickReplyButtons {
		return nil
	}
	return ValidateOptions(r.Options)
}

// ValidateOptions checks the 1..MaxQuickReplyOptions bound and that every
// option is addressable.
func ValidateOptions(options []Option) error {
	if len(options) == 0 {
		return ErrNoOptions
	}
	if len(options) > MaxQuickReplyOptions {
		return ErrTooManyOptions
	}
	for _, o := range options {
		if strings.TrimSpace(o.ID) == "" || strings.TrimSpace(o.Title) == "" {
			return ErrInvalidOption
		}
	}
	return nil
}
