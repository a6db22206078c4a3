package group

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-sim/internal/actor"
	"github.com/nerrad567/gray-logic-sim/internal/agent"
	"github.com/nerrad567/gray-logic-sim/internal/bus"
	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-sim/internal/topic"
)

const metricsKind = topic.GroupKind

// NodeOptions configures the loop around a controller.
type NodeOptions struct {
	TickInterval time.Duration
	InboxSize    int
	Logger       Logger
}

// Node runs a Controller on its own actor and bus session.
type Node struct {
	ctl     *Controller
	session bus.Session
	actor   *actor.Actor
	logger  Logger

	stopOnce sync.Once
	stopErr  error
}

// NewNode wires c to session. The node owns session and closes it on Stop.
func NewNode(c *Controller, session bus.Session, opts NodeOptions) *Node {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	n := &Node{ctl: c, session: session, logger: opts.Logger}
	n.actor = actor.New(n, actor.Options{
		Kind:         metricsKind,
		Name:         c.ns.String(),
		TickInterval: opts.TickInterval,
		InboxSize:    opts.InboxSize,
		Logger:       opts.Logger,
	})
	return n
}

// ID returns the group id.
func (n *Node) ID() int { return n.ctl.id }

// Start subscribes to the group's commands and its members' snapshots, then
// starts the loop.
func (n *Node) Start(ctx context.Context) error {
	if err := n.session.Subscribe(n.ctl.ns.WriteAll(), n.actor.Deliver); err != nil {
		return fmt.Errorf("subscribing group %d commands: %w", n.ctl.id, err)
	}
	for _, kind := range agent.Kinds {
		for _, m := range n.ctl.sorted(kind) {
			if err := n.session.Subscribe(m.SnapshotTopic(), n.actor.Deliver); err != nil {
				return fmt.Errorf("subscribing %s: %w", m.SnapshotTopic(), err)
			}
		}
	}
	n.actor.Start(ctx)
	metrics.Nodes.WithLabelValues(metricsKind).Inc()
	return nil
}

// Stop ends the loop and closes the session. Safe to call more than once.
func (n *Node) Stop() error {
	n.stopOnce.Do(func() {
		n.actor.Stop()
		metrics.Nodes.WithLabelValues(metricsKind).Dec()
		if err := n.session.Close(); err != nil && !errors.Is(err, bus.ErrClosed) {
			n.stopErr = fmt.Errorf("closing session of group %d: %w", n.ctl.id, err)
		}
	})
	return n.stopErr
}

// Call runs fn against the controller on the loop goroutine.
func (n *Node) Call(ctx context.Context, fn func(*Controller)) error {
	return n.actor.Call(ctx, func() { fn(n.ctl) })
}

// Snapshot returns a consistent copy of the group state.
func (n *Node) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := n.Call(ctx, func(c *Controller) { s = c.Snapshot() })
	return s, err
}

// AddMember adds m, subscribes to its snapshots and tells the device it
// joined. It reports whether m was new. A failed subscription leaves the
// group unchanged.
func (n *Node) AddMember(ctx context.Context, m Member) (bool, error) {
	var added bool
	var opErr error
	err := n.Call(ctx, func(c *Controller) {
		var msgs []bus.Message
		added, msgs, opErr = c.Add(m)
		if !added || opErr != nil {
			return
		}
		if err := n.session.Subscribe(m.SnapshotTopic(), n.actor.Deliver); err != nil {
			c.Remove(m.ID)
			added = false
			opErr = fmt.Errorf("subscribing %s: %w", m.SnapshotTopic(), err)
			return
		}
		opErr = n.publish(msgs)
	})
	if err != nil {
		return false, err
	}
	return added, opErr
}

// RemoveMember removes a device by id, unsubscribes from it and tells the
// device it left. It reports whether the device was a member.
func (n *Node) RemoveMember(ctx context.Context, id string) (bool, error) {
	var removed bool
	var opErr error
	err := n.Call(ctx, func(c *Controller) {
		var m Member
		var msgs []bus.Message
		m, removed, msgs = c.Remove(id)
		if !removed {
			return
		}
		if err := n.session.Unsubscribe(m.SnapshotTopic()); err != nil {
			opErr = fmt.Errorf("unsubscribing %s: %w", m.SnapshotTopic(), err)
			return
		}
		opErr = n.publish(msgs)
	})
	if err != nil {
		return false, err
	}
	return removed, opErr
}

// SetRule updates one automation rule on the loop goroutine.
func (n *Node) SetRule(ctx context.Context, name string, v *int) error {
	var opErr error
	if err := n.Call(ctx, func(c *Controller) { opErr = c.SetRule(name, v) }); err != nil {
		return err
	}
	return opErr
}

// HandleMessage implements actor.Handler.
func (n *Node) HandleMessage(t string, payload []byte) {
	addr, err := topic.Parse(t)
	if err != nil {
		n.reject(t, fmt.Errorf("%w: %w", ErrMalformedPayload, err))
		return
	}

	switch {
	case addr.Direction == topic.DirectionWrite && addr.Kind == topic.GroupKind:
		msgs, err := n.ctl.ApplyCommand(addr.Field, payload)
		if err != nil {
			n.reject(t, err)
			return
		}
		if err := n.publish(msgs); err != nil {
			n.logger.Warn("publishing group command", "group_id", n.ctl.id, "error", err)
		}
	case addr.Direction == topic.DirectionRead && addr.Field == topic.FieldSnapshot:
		if err := n.ctl.Observe(addr.ID, payload); err != nil {
			n.reject(t, err)
		}
	default:
		n.logger.Debug("group ignored message", "group_id", n.ctl.id, "topic", t)
	}
}

// HandleTick implements actor.Handler.
func (n *Node) HandleTick(time.Time) {
	if err := n.publish(n.ctl.Tick()); err != nil {
		n.logger.Warn("publishing group tick output", "group_id", n.ctl.id, "error", err)
	}
}

func (n *Node) publish(msgs []bus.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := bus.PublishAll(n.session, msgs); err != nil {
		return err
	}
	metrics.Published.WithLabelValues(metricsKind).Add(float64(len(msgs)))
	return nil
}

func (n *Node) reject(t string, err error) {
	class := RejectionClass(err)
	metrics.HandlerRejections.WithLabelValues(metricsKind, class).Inc()
	if class == "mode_mismatch" {
		n.logger.Info("group command discarded", "group_id", n.ctl.id, "topic", t, "reason", err)
		return
	}
	n.logger.Warn("group message rejected", "group_id", n.ctl.id, "topic", t, "error", err)
}

// RejectionClass maps a controller error to its metrics label.
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
