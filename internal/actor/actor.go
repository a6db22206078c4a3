package actor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/metrics"
)

// Default loop settings.
const (
	DefaultTickInterval = time.Second
	DefaultInboxSize    = 256
)

// Handler is the state owner driven by an Actor. Both methods run on the
// actor goroutine, one event at a time, so implementations need no locks.
type Handler interface {
	HandleMessage(topic string, payload []byte)
	HandleTick(now time.Time)
}

// Logger is the subset of logging.Logger used by the loop.
type Logger interface {
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}

// Options configures an Actor.
type Options struct {
	// Kind labels the loop's metrics ("led", "sensor", "blind", "group").
	Kind string

	// Name identifies the loop in logs, normally the device or group id.
	Name string

	TickInterval time.Duration
	InboxSize    int
	Logger       Logger
}

type event struct {
	topic   string
	payload []byte

	call  func()
	reply chan error
}

// Actor serialises ticks, inbound messages and calls onto one goroutine.
//
// The periodic tick and the mailbox are merged by a single select, so a
// Handler observes one ordered stream of events. Bus delivery goroutines only
// enqueue; they never touch Handler state.
type Actor struct {
	handler  Handler
	kind     string
	name     string
	interval time.Duration
	logger   Logger

	inbox chan event

	mu       sync.Mutex
	started  bool
	stopped  bool
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an actor for h. The loop does not run until Start.
func New(h Handler, opts Options) *Actor {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = DefaultInboxSize
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Actor{
		handler:  h,
		kind:     opts.Kind,
		name:     opts.Name,
		interval: opts.TickInterval,
		logger:   opts.Logger,
		inbox:    make(chan event, opts.InboxSize),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

// Start launches the loop. It runs until ctx is cancelled or Stop is called.
// Starting twice, or after Stop, does nothing.
func (a *Actor) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started || a.stopped {
		return
	}
	a.started = true

	a.wg.Add(1)
	go a.run(ctx)
}

// Stop ends the loop after the event in progress and waits for it to exit.
// Queued events are discarded. Safe to call more than once.
func (a *Actor) Stop() {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		a.stopped = true
		started := a.started
		a.mu.Unlock()

		close(a.done)
		if !started {
			close(a.exited)
		}
		a.wg.Wait()
	})
}

// Done is closed once the loop has exited.
func (a *Actor) Done() <-chan struct{} {
	return a.exited
}

// Deliver enqueues an inbound message without blocking. It has the bus
// handler signature so it can be subscribed directly. A full mailbox drops
// the message, which matches the bus's at-most-once guarantee.
func (a *Actor) Deliver(topic string, payload []byte) error {
	select {
	case <-a.exited:
		return ErrStopped
	default:
	}

	select {
	case a.inbox <- event{topic: topic, payload: payload}:
		return nil
	default:
		metrics.InboxDropped.WithLabelValues(a.kind).Inc()
		return fmt.Errorf("%w: %s %s dropped %s", ErrInboxFull, a.kind, a.name, topic)
	}
}

// Call runs fn on the actor goroutine and waits for it to finish. It is the
// only way for other goroutines to read or change Handler state.
func (a *Actor) Call(ctx context.Context, fn func()) error {
	reply := make(chan error, 1)

	select {
	case a.inbox <- event{call: fn, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-a.exited:
		return ErrStopped
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-a.exited:
		return ErrStopped
	}
}

func (a *Actor) run(ctx context.Context) {
	defer a.wg.Done()
	defer close(a.exited)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case now := <-ticker.C:
			metrics.ActorEvents.WithLabelValues(a.kind, "tick").Inc()
			a.safely("tick", func() { a.handler.HandleTick(now) })
		case ev := <-a.inbox:
			a.process(ev)
		}
	}
}

func (a *Actor) process(ev event) {
	if ev.call != nil {
		metrics.ActorEvents.WithLabelValues(a.kind, "call").Inc()
		ev.reply <- a.safely("call", ev.call)
		return
	}
	metrics.ActorEvents.WithLabelValues(a.kind, "message").Inc()
	a.safely(ev.topic, func() { a.handler.HandleMessage(ev.topic, ev.payload) })
}

// safely runs fn and converts a panic into ErrHandlerPanic so one bad event
// never ends the loop.
func (a *Actor) safely(what string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerRejections.WithLabelValues(a.kind, "panic").Inc()
			a.logger.Error("actor handler panic recovered",
				"kind", a.kind,
				"name", a.name,
				"event", what,
				"panic", r,
			)
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	fn()
	return nil
}
