// Package dispatch runs inbound events outside the webhook request that
// delivered them.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"

	"gastosbot/internal/core"
	applog "gastosbot/internal/log"
)

// DefaultMaxConcurrent bounds in-flight events when no limit is given.
const DefaultMaxConcurrent = 16

// backlogPerSlot caps accepted events, running or waiting, per running slot.
const backlogPerSlot = 64

var (
	ErrClosed     = errors.New("dispatcher is closed")
	ErrOverloaded = errors.New("dispatcher backlog is full")
)

// Dispatcher hands an event off for asynchronous handling. A nil error
// only means the event was accepted.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev core.InboundEvent) error
}

// HandlerFunc handles one event to completion.
type HandlerFunc func(ctx context.Context, ev core.InboundEvent)

// InProcess handles events on goroutines of the current process.
type InProcess struct {
	handle  HandlerFunc
	sem     *semaphore.Weighted
	backlog *semaphore.Weighted
	logger  *applog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewInProcess(handle HandlerFunc, maxConcurrent int, logger *applog.Logger) *InProcess {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &InProcess{
		handle:  handle,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		backlog: semaphore.NewWeighted(int64(maxConcurrent) * backlogPerSlot),
		logger:  logger.WithComponent(applog.ComponentDispatch),
	}
}

// Dispatch starts ev on its own goroutine and returns immediately. The
// task keeps running after ctx is cancelled. When every running slot and
// its backlog are taken the event is refused with ErrOverloaded.
func (d *InProcess) Dispatch(ctx context.Context, ev core.InboundEvent) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if !d.backlog.TryAcquire(1) {
		d.mu.Unlock()
		d.logger.WarnContext(ctx, "Dropping event, dispatch backlog full",
			applog.FieldMessageID, ev.MessageID, applog.FieldSender, ev.SenderID)
		return ErrOverloaded
	}
	d.wg.Add(1)
	d.mu.Unlock()

	taskCtx := context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()
		defer d.backlog.Release(1)
		if err := d.sem.Acquire(taskCtx, 1); err != nil {
			d.logger.ErrorContext(taskCtx, "Failed to acquire dispatch slot", applog.FieldError, err)
			return
		}
		defer d.sem.Release(1)
		d.run(taskCtx, ev)
	}()
	return nil
}

func (d *InProcess) run(ctx context.Context, ev core.InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			fields := applog.NewFields().
				WithEvent(ev.MessageID, ev.SenderID, ev.BotChannelID, ev.Kind.String()).
				WithOperation(applog.OpDispatch)
			fields[applog.FieldError] = fmt.Sprint(r)
			fields["stack"] = string(debug.Stack())
			d.logger.ErrorContext(ctx, "Recovered from panic while handling event", fields.ToSlice()...)
		}
	}()
	d.handle(ctx, ev)
}

// Wait stops accepting new events and blocks until in-flight ones finish
// or ctx is done.
func (d *InProcess) Wait(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.InfoContext(ctx, "Dispatcher drained", applog.FieldOperation, applog.OpShutdown)
		return nil
	case <-ctx.Done():
		d.logger.WarnContext(ctx, "Dispatcher drain timed out", applog.FieldOperation, applog.OpShutdown)
		return ctx.Err()
	}
}
