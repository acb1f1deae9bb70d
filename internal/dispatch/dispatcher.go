// Package dispatch runs submitted work items one at a time in arrival order.
package dispatch

import (
	"context"
	"github.com/myrjola/casebot/internal/errors"
	"log/slog"
)

var ErrStopped = errors.NewSentinel("dispatcher stopped")

// Dispatcher hands items from many producers to a single worker goroutine. The transport uses it so that updates
// reach the workflow engine strictly in the order they arrived, and a slow collaborator call never reorders them.
type Dispatcher[T any] struct {
	stopChannel   chan struct{}
	stoppedSignal chan struct{}
	itemChannel   chan T
	handle        func(context.Context, T)
	logger        *slog.Logger
}

// NewDispatcher creates a Dispatcher buffering up to backlog items. Use Start to run the worker.
func NewDispatcher[T any](logger *slog.Logger, backlog int, handle func(context.Context, T)) *Dispatcher[T] {
	return &Dispatcher[T]{
		stopChannel:   make(chan struct{}),
		stoppedSignal: make(chan struct{}),
		itemChannel:   make(chan T, backlog),
		handle:        handle,
		logger:        logger.With(slog.String("source", "Dispatcher")),
	}
}

// Start handles items until Stop is called or ctx is done. It blocks, so it should be called in a goroutine.
// A panicking handler is logged and the worker continues with the next item.
func (d *Dispatcher[T]) Start(ctx context.Context) {
	defer close(d.stoppedSignal)
	for {
		select {
		case <-d.stopChannel:
			d.drain(ctx)
			return
		case <-ctx.Done():
			return
		case item := <-d.itemChannel:
			d.run(ctx, item)
		}
	}
}

// drain handles the items that were accepted before Stop.
func (d *Dispatcher[T]) drain(ctx context.Context) {
	for {
		select {
		case item := <-d.itemChannel:
			d.run(ctx, item)
		default:
			return
		}
	}
}

func (d *Dispatcher[T]) run(ctx context.Context, item T) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.LogAttrs(ctx, slog.LevelError, "handler panicked", slog.Any("panic", r))
		}
	}()
	d.handle(ctx, item)
}

// Submit queues item. It blocks while the backlog is full and fails once the dispatcher stopped or ctx is done.
func (d *Dispatcher[T]) Submit(ctx context.Context, item T) error {
	select {
	case <-d.stopChannel:
		return errors.Wrap(ErrStopped, "submit")
	default:
	}
	select {
	case d.itemChannel <- item:
		return nil
	case <-d.stopChannel:
		return errors.Wrap(ErrStopped, "submit")
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "submit")
	}
}

// Stop stops accepting items, waits for the accepted ones to be handled and for Start to return.
func (d *Dispatcher[T]) Stop() {
	close(d.stopChannel)
	<-d.stoppedSignal
}
