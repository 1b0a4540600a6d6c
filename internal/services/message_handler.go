// Package services holds the intent router: it identifies the sender,
// classifies the message and sends exactly one reply per event.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gastosbot/internal/core"
	applog "gastosbot/internal/log"
	"gastosbot/internal/metrics"
)

var (
	ErrUserNotIdentified = errors.New("sender not registered")
	ErrAggregationFailed = errors.New("expense aggregation failed")
	ErrReplyNotDelivered = errors.New("reply not delivered")
)

type UserDirectory interface {
	Lookup(ctx context.Context, phone string) (core.UserIdentity, bool)
}

type ExpenseAggregator interface {
	Aggregate(ctx context.Context, userID int64, p core.Period) core.AggregationResult
}

// MessageSender delivers one reply and reports whether the platform accepted it.
type MessageSender interface {
	Send(ctx context.Context, botChannelID, recipientID string, reply core.OutboundReply) bool
}

// EventRecorder persists one row per handled event. Optional.
type EventRecorder interface {
	RecordEvent(ctx context.Context, rec core.EventRecord) error
}

// Outcome summarizes how one event was handled.
type Outcome struct {
	Command    core.CommandKind
	Identified bool
	Delivered  bool
	Err        error
}

type MessageHandler struct {
	directory  UserDirectory
	aggregator ExpenseAggregator
	sender     MessageSender
	recorder   EventRecorder
	now        func() time.Time
	logger     *applog.Logger
}

func NewMessageHandler(directory UserDirectory, aggregator ExpenseAggregator, sender MessageSender, logger *applog.Logger) *MessageHandler {
	if logger == nil {
		logger = applog.Discard()
	}
	return &MessageHandler{
		directory:  directory,
		aggregator: aggregator,
		sender:     sender,
		now:        time.Now,
		logger:     logger.WithComponent(applog.ComponentRouter),
	}
}

// WithClock replaces the wall clock used to derive the current period.
func (h *MessageHandler) WithClock(now func() time.Time) *MessageHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *MessageHandler) WithRecorder(r EventRecorder) *MessageHandler {
	h.recorder = r
	return h
}

// HandleEvent routes one inbound event and sends its reply. It never
// returns an error; failures are reported through the Outcome.
func (h *MessageHandler) HandleEvent(ctx context.Context, ev core.InboundEvent) Outcome {
	start := time.Now()
	fields := applog.NewFields().WithEvent(ev.MessageID, ev.SenderID, ev.BotChannelID, ev.Kind.String())
	logger := h.logger.With(fields.ToSlice()...)

	if err := ev.Validate(); err != nil {
		logger.ErrorContext(ctx, "Dropping event without routing data", applog.FieldError, err)
		return Outcome{Err: err}
	}
	metrics.EventReceived(ev.Kind.String())

	out := h.handle(ctx, logger, ev)

	elapsed := time.Since(start)
	metrics.ObserveEventHandling(elapsed)
	if out.Identified {
		metrics.CommandProcessed(out.Command.String())
	}

	const msg = "Event handled"
	if out.Err != nil {
		logger.WarnContext(ctx, msg, applog.FieldCommand, out.Command.String(),
			"identified", out.Identified, "delivered", out.Delivered,
			applog.FieldDuration, elapsed.Milliseconds(), applog.FieldError, out.Err)
	} else {
		logger.InfoContext(ctx, msg, applog.FieldCommand, out.Command.String(),
			"identified", out.Identified, "delivered", out.Delivered,
			applog.FieldDuration, elapsed.Milliseconds())
	}

	h.record(ctx, logger, ev, out, elapsed)
	return out
}

func (h *MessageHandler) handle(ctx context.Context, logger *applog.Logger, ev core.InboundEvent) Outcome {
	user, ok := h.directory.Lookup(ctx, ev.SenderID)
	if !ok {
		out := Outcome{Command: core.CommandUnrecognized, Err: ErrUserNotIdentified}
		out.Delivered = h.send(ctx, ev, core.TextReply(RegistrationText))
		return out
	}

	cmd := Classify(ev)
	logger.DebugContext(ctx, "Command classified",
		applog.FieldUserID, user.ID, applog.FieldCommand, cmd.Kind.String())

	out := Outcome{Command: cmd.Kind, Identified: true}
	reply, err := h.route(ctx, user, ev, cmd)
	if err != nil {
		out.Err = err
	}
	out.Delivered = h.send(ctx, ev, reply)
	if !out.Delivered && out.Err == nil {
		out.Err = ErrReplyNotDelivered
	}
	return out
}

func (h *MessageHandler) route(ctx context.Context, user core.UserIdentity, ev core.InboundEvent, cmd core.Command) (core.OutboundReply, error) {
	first := user.FirstName()
	now := h.now()

	if cmd.Kind.Aggregates() {
		p := periodFor(cmd, now)
		if err := p.Validate(); err != nil {
			return rangeFormatErrorReply(first), err
		}
		return h.aggregate(ctx, user, p)
	}

	switch cmd.Kind {
	case core.CommandGreeting:
		return greetingReply(first), nil
	case core.CommandOpenMainMenu:
		return mainMenuReply(first), nil
	case core.CommandOpenExpenseMenu:
		return expenseMenuReply(first), nil
	case core.CommandCustomRangePrompt:
		return customRangePromptReply(first), nil
	case core.CommandAddExpense:
		return addExpenseReply(first), nil
	case core.CommandConfigureAlerts:
		return configureAlertsReply(first), nil
	case core.CommandUnsupported:
		return unsupportedReply(ev), nil
	default:
		return unrecognizedReply(first), nil
	}
}

// periodFor resolves the period an aggregating command asks about.
func periodFor(cmd core.Command, now time.Time) core.Period {
	switch cmd.Kind {
	case core.CommandQuarterlyExpense:
		return core.QuarterPeriod(now.Year(), core.QuarterOf(int(now.Month())))
	case core.CommandAnnualExpense:
		return core.YearPeriod(now.Year())
	case core.CommandCustomRangeQuery:
		return core.RangePeriod(cmd.RangeStart, cmd.RangeEnd)
	default:
		return core.MonthPeriod(now.Year(), int(now.Month()))
	}
}

func (h *MessageHandler) aggregate(ctx context.Context, user core.UserIdentity, p core.Period) (core.OutboundReply, error) {
	res := h.aggregator.Aggregate(ctx, user.ID, p)
	reply := aggregationReply(user.FirstName(), p, res)
	if res.Failed() {
		return reply, fmt.Errorf("%w: %s", ErrAggregationFailed, res.Err)
	}
	return reply, nil
}

func (h *MessageHandler) send(ctx context.Context, ev core.InboundEvent, reply core.OutboundReply) bool {
	if err := reply.Validate(); err != nil {
		h.logger.ErrorContext(ctx, "Refusing to send malformed reply",
			applog.FieldSender, ev.SenderID, applog.FieldReplyType, reply.Kind.String(), applog.FieldError, err)
		return false
	}
	return h.sender.Send(ctx, ev.BotChannelID, ev.SenderID, reply)
}

func (h *MessageHandler) record(ctx context.Context, logger *applog.Logger, ev core.InboundEvent, out Outcome, elapsed time.Duration) {
	if h.recorder == nil {
		return
	}
	rec := core.EventRecord{
		MessageID:    ev.MessageID,
		SenderID:     ev.SenderID,
		BotChannelID: ev.BotChannelID,
		Kind:         ev.Kind,
		Command:      out.Command,
		Identified:   out.Identified,
		Delivered:    out.Delivered,
		Duration:     elapsed,
		HandledAt:    time.Now().UTC(),
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	if err := h.recorder.RecordEvent(ctx, rec); err != nil {
		metrics.UpstreamError(metrics.UpstreamJournal)
		logger.ErrorContext(ctx, "Failed to record event", applog.FieldOperation, applog.OpRecord, applog.FieldError, err)
	}
}
