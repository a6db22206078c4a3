package group

import (
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/nerrad567/gray-logic-sim/internal/agent"
	"github.com/nerrad567/gray-logic-sim/internal/bus"
	"github.com/nerrad567/gray-logic-sim/internal/topic"
)

func intPtr(v int) *int { return &v }

func newController(t *testing.T, opts Options) *Controller {
	t.Helper()
	if opts.ID == 0 {
		opts.ID = 1
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func member(kind agent.Kind, id string) Member {
	return Member{ID: id, Kind: kind, Namespace: topic.Device(string(kind), id)}
}

func mustAdd(t *testing.T, c *Controller, m Member) {
	t.Helper()
	if _, _, err := c.Add(m); err != nil {
		t.Fatalf("Add(%s) error = %v", m.ID, err)
	}
}

func observe(t *testing.T, c *Controller, id, payload string) {
	t.Helper()
	if err := c.Observe(id, []byte(payload)); err != nil {
		t.Fatalf("Observe(%s) error = %v", id, err)
	}
}

func setpointCommands(msgs []bus.Message) []string {
	var out []string
	for _, m := range msgs {
		if addr, err := topic.Parse(m.Topic); err == nil && addr.Field == "base/setpoint" {
			out = append(out, string(m.Payload))
		}
	}
	return out
}

func TestNew_RejectsReservedID(t *testing.T) {
	for _, id := range []int{0, -3} {
		if _, err := New(Options{ID: id}); !errors.Is(err, ErrInvalidID) {
			t.Errorf("New(id=%d) error = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestSlopeConvergence(t *testing.T) {
	c := newController(t, Options{SlopeRise: 5})
	mustAdd(t, c, member(agent.KindLight, "LED000000001"))
	_, _ = c.ApplyCommand(topic.FieldAuto, []byte("false"))
	if _, err := c.ApplyCommand(FieldSetpoint, []byte("50")); err != nil {
		t.Fatalf("setpoint command: %v", err)
	}

	wantValues := []int{10, 20, 30, 40, 50}
	wantSlopes := []int{4, 3, 2, 1, 0}
	for i := range wantValues {
		msgs := c.Tick()
		cur, target, slope := c.Setpoint()
		if cur != wantValues[i] || slope != wantSlopes[i] || target != 50 {
			t.Fatalf("tick %d: current=%d slope=%d target=%d; want %d, %d, 50",
				i+1, cur, slope, target, wantValues[i], wantSlopes[i])
		}
		cmds := setpointCommands(msgs)
		if len(cmds) != 1 || cmds[0] != strconv.Itoa(wantValues[i]) {
			t.Errorf("tick %d: commands = %v, want [%d]", i+1, cmds, wantValues[i])
		}
	}

	for i := range 3 {
		if cmds := setpointCommands(c.Tick()); len(cmds) != 0 {
			t.Errorf("tick %d after convergence published %v", 6+i, cmds)
		}
	}
}

func TestSlopeSnapsWhenSlopeExhausted(t *testing.T) {
	c := newController(t, Options{})
	c.target, c.slope = 37, 0
	c.Tick()
	if cur, _, _ := c.Setpoint(); cur != 37 {
		t.Errorf("current = %d, want 37", cur)
	}
}

func TestManualSetpoint(t *testing.T) {
	c := newController(t, Options{SlopeRise: 3, SlopeFall: 7})

	if _, err := c.ApplyCommand(FieldSetpoint, []byte("40")); !errors.Is(err, ErrModeMismatch) {
		t.Errorf("setpoint in auto: error = %v, want ErrModeMismatch", err)
	}

	_, _ = c.ApplyCommand(topic.FieldAuto, []byte("false"))
	tests := []struct {
		payload string
		want    error
	}{
		{"101", ErrInvalidValue},
		{"-1", ErrInvalidValue},
		{"ten", ErrMalformedPayload},
	}
	for _, tt := range tests {
		if _, err := c.ApplyCommand(FieldSetpoint, []byte(tt.payload)); !errors.Is(err, tt.want) {
			t.Errorf("setpoint %q: error = %v, want %v", tt.payload, err, tt.want)
		}
	}

	if _, err := c.ApplyCommand(FieldSetpoint, []byte("60")); err != nil {
		t.Fatal(err)
	}
	if _, target, slope := c.Setpoint(); target != 60 || slope != 3 {
		t.Errorf("rising: target=%d slope=%d, want 60, 3", target, slope)
	}
	c.setpoint = 80
	_, _ = c.ApplyCommand(FieldSetpoint, []byte("20"))
	if _, _, slope := c.Setpoint(); slope != 7 {
		t.Errorf("falling: slope=%d, want 7", slope)
	}
	if c.gateOpen {
		t.Error("manual setpoint left the gate open")
	}
}

func TestBlindPositionFanOut(t *testing.T) {
	c := newController(t, Options{})
	mustAdd(t, c, member(agent.KindBlind, "BLIND0000002"))
	mustAdd(t, c, member(agent.KindBlind, "BLIND0000001"))
	mustAdd(t, c, member(agent.KindLight, "LED000000001"))

	if _, err := c.ApplyCommand(FieldBlindPosition, []byte("1")); !errors.Is(err, ErrModeMismatch) {
		t.Errorf("blind position in auto: error = %v", err)
	}
	_, _ = c.ApplyCommand(topic.FieldAuto, []byte("off"))
	if _, err := c.ApplyCommand(FieldBlindPosition, []byte("3")); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("position 3: error = %v, want ErrInvalidValue", err)
	}

	msgs, err := c.ApplyCommand(FieldBlindPosition, []byte("2"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"/write/blind/BLIND0000001/base/blind1",
		"/write/blind/BLIND0000001/base/blind2",
		"/write/blind/BLIND0000002/base/blind1",
		"/write/blind/BLIND0000002/base/blind2",
	}
	if len(msgs) != len(want) {
		t.Fatalf("published %d messages, want %d", len(msgs), len(want))
	}
	for i, m := range msgs {
		if m.Topic != want[i] || string(m.Payload) != "2" {
			t.Errorf("msgs[%d] = %s %s, want %s 2", i, m.Topic, m.Payload, want[i])
		}
	}
}

func TestFusion(t *testing.T) {
	c := newController(t, Options{})
	if f := c.Fusion(); f.Temperature != 0 || f.Brightness != 0 || f.Presence {
		t.Errorf("empty fusion = %+v, want zero", f)
	}

	mustAdd(t, c, member(agent.KindSensor, "S1"))
	mustAdd(t, c, member(agent.KindSensor, "S2"))
	mustAdd(t, c, member(agent.KindSensor, "S3"))

	observe(t, c, "S1", `{"temperature": 20, "brightness": 100, "presence": false}`)
	observe(t, c, "S2", `{"temperature": 23, "brightness": 51, "presence": true}`)
	// S3 is unconfigured and reports no readings.
	observe(t, c, "S3", `{"deviceId": "S3", "isConfigured": false}`)

	f := c.Fusion()
	if f.Temperature != 21.5 {
		t.Errorf("temperature = %v, want 21.5", f.Temperature)
	}
	if f.Brightness != 75 {
		t.Errorf("brightness = %d, want 75", f.Brightness)
	}
	if !f.Presence {
		t.Error("presence = false, want true")
	}

	observe(t, c, "S2", `{"presence": false}`)
	if c.Fusion().Presence {
		t.Error("presence still true after the only present sensor cleared")
	}
	if c.Fusion().Temperature != 21.5 {
		t.Error("partial snapshot dropped earlier temperature")
	}

	// Snapshots from non-sensors and strangers are ignored.
	observe(t, c, "LED000000001", `{"brightness": 0}`)
	observe(t, c, "UNKNOWN", `garbage`)

	if err := c.Observe("S1", []byte("{not json")); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("malformed snapshot: error = %v", err)
	}

	c.Remove("S1")
	c.Remove("S2")
	if f := c.Fusion(); f.Temperature != 0 || f.Brightness != 0 {
		t.Errorf("fusion after removing reporting sensors = %+v, want zero", f)
	}
}

func TestLeaveRoomAfterPresenceTimeout(t *testing.T) {
	const timeout = 4
	c := newController(t, Options{SlopeFall: 2, Rules: RuleSet{Presence: intPtr(timeout)}})
	mustAdd(t, c, member(agent.KindSensor, "S1"))
	mustAdd(t, c, member(agent.KindLight, "L1"))
	c.setpoint, c.target = 80, 80

	observe(t, c, "S1", `{"presence": true}`)
	c.Tick()
	if c.emptyRoom {
		t.Fatal("room empty while presence reported")
	}

	observe(t, c, "S1", `{"presence": false}`)
	for i := 1; i < timeout; i++ {
		c.Tick()
		if c.emptyRoom {
			t.Fatalf("room empty after %d ticks, want %d", i, timeout)
		}
	}
	c.Tick()
	if !c.emptyRoom {
		t.Fatalf("room not empty after %d ticks", timeout)
	}
	cur, target, _ := c.Setpoint()
	if target != 0 {
		t.Errorf("target = %d, want 0", target)
	}
	if cur != 40 {
		t.Errorf("setpoint on leave tick = %d, want 40", cur)
	}
	c.Tick()
	if cur, _, _ := c.Setpoint(); cur != 0 {
		t.Errorf("setpoint = %d, want 0", cur)
	}
}

func TestBrightnessRuleGate(t *testing.T) {
	c := newController(t, Options{SlopeRise: 2, Step: 10, Rules: RuleSet{Brightness: intPtr(300), Presence: intPtr(100)}})
	mustAdd(t, c, member(agent.KindSensor, "S1"))
	observe(t, c, "S1", `{"brightness": 100, "presence": true}`)

	c.Tick()
	if _, target, _ := c.Setpoint(); target != 10 {
		t.Fatalf("target = %d after first decision, want 10", target)
	}
	c.Tick()
	if _, target, _ := c.Setpoint(); target != 10 {
		t.Fatalf("target = %d while transition pending, want 10", target)
	}

	// The transition finished on the previous tick; the gate reopens on the
	// next tick with diff == 0 and the rule fires once more after that.
	c.Tick()
	c.Tick()
	if _, target, _ := c.Setpoint(); target != 20 {
		t.Errorf("target = %d after gate reopened, want 20", target)
	}
}

func TestBrightnessRuleWithoutPresenceRule(t *testing.T) {
	c := newController(t, Options{SlopeRise: 2, Step: 10, Rules: RuleSet{Brightness: intPtr(300)}})
	mustAdd(t, c, member(agent.KindSensor, "S1"))
	observe(t, c, "S1", `{"brightness": 100, "presence": true}`)

	for range 5 {
		c.Tick()
	}
	cur, target, _ := c.Setpoint()
	if target != 0 || cur != 0 {
		t.Errorf("setpoint = %d -> %d, want 0 -> 0", cur, target)
	}
	if !c.emptyRoom {
		t.Error("room occupied without a presence rule")
	}
	if c.ticksLeaving != 0 {
		t.Errorf("ticksLeaving = %d, want 0", c.ticksLeaving)
	}

	// Setting a presence rule starts tracking, and the brightness rule
	// follows on the same tick.
	_ = c.SetRule(RulePresence, intPtr(100))
	c.Tick()
	if _, target, _ := c.Setpoint(); target != 10 {
		t.Errorf("target = %d after presence rule set, want 10", target)
	}
}

func TestSetpointStaysInRange(t *testing.T) {
	c := newController(t, Options{SlopeRise: 1, SlopeFall: 1, Step: 40, Rules: RuleSet{Brightness: intPtr(1000), Presence: intPtr(100)}})
	mustAdd(t, c, member(agent.KindSensor, "S1"))
	observe(t, c, "S1", `{"brightness": 0, "presence": true}`)

	for range 30 {
		c.Tick()
		cur, target, _ := c.Setpoint()
		if cur < 0 || cur > 100 || target < 0 || target > 100 {
			t.Fatalf("out of range: current=%d target=%d", cur, target)
		}
	}
	if cur, _, _ := c.Setpoint(); cur != 100 {
		t.Errorf("setpoint = %d, want saturated at 100", cur)
	}

	_ = c.SetRule(RuleBrightness, intPtr(-5))
	for range 30 {
		c.Tick()
		if cur, _, _ := c.Setpoint(); cur < 0 {
			t.Fatalf("setpoint went negative: %d", cur)
		}
	}
	if cur, _, _ := c.Setpoint(); cur != 0 {
		t.Errorf("setpoint = %d, want 0", cur)
	}
}

func TestGroupWatchdog(t *testing.T) {
	c := newController(t, Options{Watchdog: 2})
	_, _ = c.ApplyCommand(topic.FieldAuto, []byte("false"))
	c.Tick()
	if c.Control().Auto() {
		t.Fatal("group reverted after 1 tick")
	}
	c.Tick()
	if !c.Control().Auto() {
		t.Error("group not reverted after 2 ticks")
	}
}

func TestTickPublishesSnapshot(t *testing.T) {
	c := newController(t, Options{ID: 9, Rules: RuleSet{Temperature: intPtr(21)}})
	msgs := c.Tick()
	last := msgs[len(msgs)-1]
	if last.Topic != "/read/group/9/status/dump" {
		t.Fatalf("last topic = %q", last.Topic)
	}
	var s Snapshot
	if err := json.Unmarshal(last.Payload, &s); err != nil {
		t.Fatal(err)
	}
	if s.Group != 9 || !s.Auto || s.Rules.Temperature == nil || *s.Rules.Temperature != 21 {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestSetRule(t *testing.T) {
	c := newController(t, Options{})
	if err := c.SetRule("humidity", intPtr(3)); !errors.Is(err, ErrUnknownRule) {
		t.Errorf("error = %v, want ErrUnknownRule", err)
	}
	if err := c.SetRule(RulePresence, intPtr(-1)); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("error = %v, want ErrInvalidValue", err)
	}
	v := 30
	_ = c.SetRule(RulePresence, &v)
	v = 99
	if got := c.Rules().Presence; got == nil || *got != 30 {
		t.Errorf("presence rule = %v, want 30 (copied)", got)
	}
	_ = c.SetRule(RulePresence, nil)
	if c.Rules().Presence != nil {
		t.Error("nil did not clear the presence rule")
	}
}
