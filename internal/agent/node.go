package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-sim/internal/actor"
	"github.com/nerrad567/gray-logic-sim/internal/bus"
	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-sim/internal/topic"
)

// NodeOptions configures the loop around an agent.
type NodeOptions struct {
	TickInterval time.Duration
	InboxSize    int
	Logger       Logger
}

// Node runs one agent on its own actor and bus session. All agent state is
// touched only from the actor goroutine.
type Node struct {
	agent   Agent
	id      Identity
	session bus.Session
	actor   *actor.Actor
	logger  Logger

	stopOnce sync.Once
	stopErr  error
}

// NewNode wires a to session. The node takes ownership of session and
// closes it on Stop.
func NewNode(a Agent, session bus.Session, opts NodeOptions) *Node {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	n := &Node{
		agent:   a,
		id:      a.Identity(),
		session: session,
		logger:  opts.Logger,
	}
	n.actor = actor.New(n, actor.Options{
		Kind:         string(n.id.Kind),
		Name:         n.id.ID,
		TickInterval: opts.TickInterval,
		InboxSize:    opts.InboxSize,
		Logger:       opts.Logger,
	})
	return n
}

// Identity returns the agent identity. It never changes, so no call is needed.
func (n *Node) Identity() Identity { return n.id }

// Start subscribes to the agent's write namespace and starts the loop.
func (n *Node) Start(ctx context.Context) error {
	filter := n.id.Namespace().WriteAll()
	if err := n.session.Subscribe(filter, n.actor.Deliver); err != nil {
		return fmt.Errorf("subscribing %s: %w", filter, err)
	}
	n.actor.Start(ctx)
	metrics.Nodes.WithLabelValues(string(n.id.Kind)).Inc()
	n.logger.Debug("agent started", "device_id", n.id.ID, "kind", n.id.Kind)
	return nil
}

// Stop ends the loop and closes the session. Safe to call more than once.
func (n *Node) Stop() error {
	n.stopOnce.Do(func() {
		n.actor.Stop()
		metrics.Nodes.WithLabelValues(string(n.id.Kind)).Dec()
		if err := n.session.Close(); err != nil && !errors.Is(err, bus.ErrClosed) {
			n.stopErr = fmt.Errorf("closing session of %s: %w", n.id.ID, err)
		}
	})
	return n.stopErr
}

// Call runs fn against the agent on the loop goroutine.
func (n *Node) Call(ctx context.Context, fn func(Agent)) error {
	return n.actor.Call(ctx, func() { fn(n.agent) })
}

// Snapshot returns a consistent copy of the agent state.
func (n *Node) Snapshot(ctx context.Context) (any, error) {
	var snap any
	err := n.Call(ctx, func(a Agent) { snap = a.Snapshot() })
	return snap, err
}

// HandleMessage implements actor.Handler.
func (n *Node) HandleMessage(t string, payload []byte) {
	addr, err := topic.Parse(t)
	if err != nil {
		n.reject(t, fmt.Errorf("%w: %w", ErrMalformedPayload, err))
		return
	}
	if err := n.agent.ApplyFieldUpdate(addr.Field, payload); err != nil {
		n.reject(t, err)
	}
}

// HandleTick implements actor.Handler.
func (n *Node) HandleTick(time.Time) {
	msgs := n.agent.Tick()
	if err := bus.PublishAll(n.session, msgs); err != nil {
		n.logger.Warn("publishing tick output", "device_id", n.id.ID, "error", err)
		return
	}
	metrics.Published.WithLabelValues(string(n.id.Kind)).Add(float64(len(msgs)))
}

// reject logs an update that left state unchanged. Mode mismatches are
// expected traffic and logged at info.
func (n *Node) reject(t string, err error) {
	class := RejectionClass(err)
	metrics.HandlerRejections.WithLabelValues(string(n.id.Kind), class).Inc()

	switch class {
	case "mode_mismatch":
		n.logger.Info("update discarded", "device_id", n.id.ID, "topic", t, "reason", err)
	case "unknown_field":
		n.logger.Debug("update ignored", "device_id", n.id.ID, "topic", t, "reason", err)
	default:
		n.logger.Warn("update rejected", "device_id", n.id.ID, "topic", t, "error", err)
	}
}

// RejectionClass maps a handler error to its metrics label.
func RejectionClass(err error) string {
	switch {
	case errors.Is(err, ErrModeMismatch):
		return "mode_mismatch"
	case errors.Is(err, ErrUnknownField):
		return "unknown_field"
	case errors.Is(err, ErrInvalidValue):
		return "invalid"
	default:
		return "malformed"
	}
}
