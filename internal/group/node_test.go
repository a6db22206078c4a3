package group

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sim/internal/agent"
	"github.com/nerrad567/gray-logic-sim/internal/bus"
)

type recorded struct {
	mu   sync.Mutex
	msgs map[string][]string
}

func (r *recorded) handle(t string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.msgs == nil {
		r.msgs = make(map[string][]string)
	}
	r.msgs[t] = append(r.msgs[t], string(payload))
	return nil
}

func (r *recorded) get(t string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs[t]...)
}

func startGroupNode(t *testing.T, b *bus.Broker, c *Controller, tick time.Duration) *Node {
	t.Helper()
	s, err := b.Connect("group-test")
	if err != nil {
		t.Fatal(err)
	}
	n := NewNode(c, s, NodeOptions{TickInterval: tick})
	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = n.Stop() })
	return n
}

// refusingSession fails subscriptions to one filter until allowed.
type refusingSession struct {
	bus.Session

	mu     sync.Mutex
	refuse string
}

var errRefused = errors.New("subscription refused")

func (s *refusingSession) Subscribe(filter string, h bus.Handler) error {
	s.mu.Lock()
	refused := filter == s.refuse
	s.mu.Unlock()
	if refused {
		return errRefused
	}
	return s.Session.Subscribe(filter, h)
}

func (s *refusingSession) allow() {
	s.mu.Lock()
	s.refuse = ""
	s.mu.Unlock()
}

func TestNode_MembershipOverBus(t *testing.T) {
	b := bus.NewBroker()
	n := startGroupNode(t, b, newController(t, Options{ID: 2}), time.Hour)

	device, err := b.Connect("SENSOR000001")
	if err != nil {
		t.Fatal(err)
	}
	var rec recorded
	_ = device.Subscribe("/write/sensor/SENSOR000001/#", rec.handle)

	m := MemberOf(agent.Identity{ID: "SENSOR000001", Kind: agent.KindSensor})
	ctx := context.Background()
	if added, err := n.AddMember(ctx, m); err != nil || !added {
		t.Fatalf("AddMember() = %v, %v", added, err)
	}
	if added, _ := n.AddMember(ctx, m); added {
		t.Error("second AddMember() reported a change")
	}
	if got := rec.get("/write/sensor/SENSOR000001/config/group"); len(got) != 1 || got[0] != "2" {
		t.Errorf("config/group writes = %v, want [2]", got)
	}

	// The group now follows the sensor's snapshots.
	_ = device.Publish(m.SnapshotTopic(), []byte(`{"temperature": 19, "presence": true}`))
	var f Fusion
	if err := n.Call(ctx, func(c *Controller) { f = c.Fusion() }); err != nil {
		t.Fatal(err)
	}
	if f.Temperature != 19 || !f.Presence {
		t.Errorf("fusion = %+v, want temperature 19 with presence", f)
	}

	if removed, err := n.RemoveMember(ctx, m.ID); err != nil || !removed {
		t.Fatalf("RemoveMember() = %v, %v", removed, err)
	}
	if got := rec.get("/write/sensor/SENSOR000001/status/auto"); len(got) != 2 || got[1] != "false" {
		t.Errorf("status/auto writes = %v, want [true false]", got)
	}

	_ = device.Publish(m.SnapshotTopic(), []byte(`{"temperature": 30}`))
	s, err := n.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.Fusion.Temperature != 0 || len(s.Sensors) != 0 {
		t.Errorf("snapshot after removal = %+v", s)
	}
}

func TestNode_CommandsOverBus(t *testing.T) {
	b := bus.NewBroker()
	c := newController(t, Options{ID: 4})
	mustAdd(t, c, member(agent.KindBlind, "BLIND0000001"))
	n := startGroupNode(t, b, c, time.Hour)

	op, err := b.Connect("operator")
	if err != nil {
		t.Fatal(err)
	}
	var rec recorded
	_ = op.Subscribe("/write/blind/+/#", rec.handle)

	_ = op.Publish("/write/group/4/config/blindPosition", []byte("1"))
	_ = op.Publish("/write/group/4/status/auto", []byte("false"))
	_ = op.Publish("/write/group/4/config/blindPosition", []byte("2"))

	// Wait for the loop to drain its mailbox.
	if err := n.Call(context.Background(), func(*Controller) {}); err != nil {
		t.Fatal(err)
	}
	if got := rec.get("/write/blind/BLIND0000001/base/blind1"); len(got) != 1 || got[0] != "2" {
		t.Errorf("blind1 writes = %v, want [2]", got)
	}
}

func TestNode_SetRule(t *testing.T) {
	b := bus.NewBroker()
	n := startGroupNode(t, b, newController(t, Options{}), time.Hour)

	v := 45
	if err := n.SetRule(context.Background(), RuleBrightness, &v); err != nil {
		t.Fatal(err)
	}
	s, _ := n.Snapshot(context.Background())
	if s.Rules.Brightness == nil || *s.Rules.Brightness != 45 {
		t.Errorf("rules = %+v", s.Rules)
	}
}

func TestNode_AddMemberSubscribeFailure(t *testing.T) {
	b := bus.NewBroker()
	inner, err := b.Connect("group-test")
	if err != nil {
		t.Fatal(err)
	}
	m := MemberOf(agent.Identity{ID: "LED000000001", Kind: agent.KindLight})
	s := &refusingSession{Session: inner, refuse: m.SnapshotTopic()}
	n := NewNode(newController(t, Options{ID: 3}), s, NodeOptions{TickInterval: time.Hour})
	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = n.Stop() })

	device, err := b.Connect("LED000000001")
	if err != nil {
		t.Fatal(err)
	}
	var rec recorded
	_ = device.Subscribe("/write/led/LED000000001/#", rec.handle)

	ctx := context.Background()
	added, err := n.AddMember(ctx, m)
	if !errors.Is(err, errRefused) || added {
		t.Fatalf("AddMember() = %v, %v, want false with errRefused", added, err)
	}
	var member bool
	_ = n.Call(ctx, func(c *Controller) { member = c.HasMember(m.ID) })
	if member {
		t.Fatal("member kept after failed subscription")
	}
	if got := rec.get("/write/led/LED000000001/config/group"); len(got) != 0 {
		t.Errorf("config/group writes = %v, want none", got)
	}

	s.allow()
	if added, err := n.AddMember(ctx, m); err != nil || !added {
		t.Fatalf("retried AddMember() = %v, %v, want true", added, err)
	}
	if got := rec.get("/write/led/LED000000001/config/group"); len(got) != 1 || got[0] != "3" {
		t.Errorf("config/group writes = %v, want [3]", got)
	}
}
