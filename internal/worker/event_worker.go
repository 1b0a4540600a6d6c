package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gastosbot/internal/amqp"
	"gastosbot/internal/core"
	applog "gastosbot/internal/log"
	"gastosbot/internal/services"
)

var ErrAlreadyRunning = errors.New("event worker is already running")

// Consumer delivers queued inbound events.
type Consumer interface {
	ConsumeInboundEvents(ctx context.Context, handler amqp.InboundEventHandler) error
}

// EventHandler routes a single event.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev core.InboundEvent) services.Outcome
}

// EventWorker feeds events from the queue into the message handler.
type EventWorker struct {
	consumer Consumer
	handler  EventHandler
	logger   *applog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	err     error
}

func NewEventWorker(consumer Consumer, handler EventHandler, logger *applog.Logger) *EventWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &EventWorker{
		consumer: consumer,
		handler:  handler,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleInboundEvent processes one queued message. An event whose reply was
// not delivered is reported as an error so the delivery is rejected.
// Stopping the worker does not cancel an event already being handled; its
// upstream calls finish or hit their own timeouts.
func (w *EventWorker) HandleInboundEvent(ctx context.Context, msg *amqp.InboundEventMessage) error {
	w.logger.DebugContext(ctx, "Processing inbound event",
		"amqp_message_id", msg.ID,
		applog.FieldMessageID, msg.Event.MessageID,
		"received_at", msg.ReceivedAt)

	out := w.handler.HandleEvent(context.WithoutCancel(ctx), msg.Event)
	if !out.Delivered {
		if out.Err != nil {
			return fmt.Errorf("event %s not delivered: %w", msg.ID, out.Err)
		}
		return fmt.Errorf("event %s not delivered", msg.ID)
	}
	return nil
}

// Start begins consuming in the background. Returns an error if already running.
func (w *EventWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	w.err = nil

	go w.run(runCtx, w.doneCh)

	w.logger.InfoContext(ctx, "Event worker started", applog.FieldOperation, applog.OpStartup)
	return nil
}

func (w *EventWorker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	err := w.consumer.ConsumeInboundEvents(ctx, w.HandleInboundEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.ErrorContext(ctx, "Event consumer stopped", applog.FieldError, err)
	}

	w.mu.Lock()
	w.running = false
	w.err = err
	w.mu.Unlock()
}

// Stop cancels consumption and waits for the in-flight event to finish.
func (w *EventWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.doneCh == nil {
		w.mu.Unlock()
		return nil
	}
	cancel, done := w.cancel, w.doneCh
	w.mu.Unlock()

	cancel()

	select {
	case <-done:
		w.logger.InfoContext(ctx, "Event worker stopped gracefully", applog.FieldOperation, applog.OpShutdown)
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Event worker stop timed out", applog.FieldOperation, applog.OpShutdown)
		return ctx.Err()
	}
}

// Done is closed when the consumer returns.
func (w *EventWorker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doneCh
}

// IsRunning returns whether the worker is currently consuming.
func (w *EventWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Err returns the error the consumer stopped with, if any.
func (w *EventWorker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
