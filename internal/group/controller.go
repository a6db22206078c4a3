package group

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nerrad567/gray-logic-sim/internal/agent"
	"github.com/nerrad567/gray-logic-sim/internal/bus"
	"github.com/nerrad567/gray-logic-sim/internal/topic"
)

// Defaults for the group control loop.
const (
	DefaultWatchdog  = 60
	DefaultSlopeRise = 10
	DefaultSlopeFall = 10
	DefaultStep      = 10

	minSetpoint = 0
	maxSetpoint = 100
)

// Group command fields.
const (
	FieldSetpoint      = "config/setpoint"
	FieldBlindPosition = "config/blindPosition"
)

// Logger is the logging interface used by the controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Controller. Zero values take the defaults.
type Options struct {
	ID        int
	Watchdog  int
	SlopeRise int
	SlopeFall int
	Step      int
	Rules     RuleSet
	Logger    Logger
}

// Fusion is the group's combined view of its member sensors.
type Fusion struct {
	Temperature float64 `json:"temperature"`
	Brightness  int     `json:"brightness"`
	Presence    bool    `json:"presence"`
}

// reading is the last value each sensor reported. A nil field has never
// been reported and is excluded from fusion.
type reading struct {
	Temperature *float64 `json:"temperature"`
	Brightness  *float64 `json:"brightness"`
	Presence    *bool    `json:"presence"`
}

// Controller is the automation state of one group. Like an agent it is
// driven from a single goroutine; Node provides that.
type Controller struct {
	id     int
	ns     topic.Namespace
	logger Logger

	members  map[agent.Kind]map[string]Member
	readings map[string]reading
	fusion   Fusion

	rules RuleSet
	ctl   agent.Control

	watchdog  int
	slopeRise int
	slopeFall int
	step      int

	setpoint int
	target   int
	slope    int

	// gateOpen allows the brightness rule to fire. It closes on every
	// rule or manual decision and reopens once the setpoint reaches target.
	gateOpen bool

	emptyRoom    bool
	ticksLeaving int
}

// New creates a group controller in Auto mode with no members.
func New(opts Options) (*Controller, error) {
	if opts.ID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, opts.ID)
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	c := &Controller{
		id:        opts.ID,
		ns:        topic.Group(opts.ID),
		logger:    opts.Logger,
		readings:  make(map[string]reading),
		rules:     opts.Rules.clone(),
		watchdog:  orDefault(opts.Watchdog, DefaultWatchdog),
		slopeRise: orDefault(opts.SlopeRise, DefaultSlopeRise),
		slopeFall: orDefault(opts.SlopeFall, DefaultSlopeFall),
		step:      orDefault(opts.Step, DefaultStep),
		gateOpen:  true,
		emptyRoom: true,
		members: map[agent.Kind]map[string]Member{
			agent.KindLight:  {},
			agent.KindSensor: {},
			agent.KindBlind:  {},
		},
	}
	return c, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// ID returns the group id.
func (c *Controller) ID() int { return c.id }

// Namespace returns the group's base topic, group/<id>.
func (c *Controller) Namespace() topic.Namespace { return c.ns }

// Control returns the group's mode.
func (c *Controller) Control() agent.Control { return c.ctl }

// Fusion returns the fused sensor readings.
func (c *Controller) Fusion() Fusion { return c.fusion }

// Setpoint returns the current light setpoint, its target and the remaining
// slope ticks.
func (c *Controller) Setpoint() (current, target, slope int) {
	return c.setpoint, c.target, c.slope
}

// ApplyCommand handles a write on the group's own namespace and returns the
// messages to publish.
func (c *Controller) ApplyCommand(field string, payload []byte) ([]bus.Message, error) {
	switch field {
	case topic.FieldAuto:
		return nil, c.setAuto(payload)
	case FieldSetpoint:
		return nil, c.setManualSetpoint(payload)
	case FieldBlindPosition:
		return c.setBlindPosition(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
}

func (c *Controller) setAuto(payload []byte) error {
	auto, err := agent.ParseBool(string(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if !c.ctl.Set(auto, c.watchdog) {
		c.logger.Debug("group mode unchanged", "group_id", c.id, "mode", c.ctl.Mode)
		return nil
	}
	if auto {
		c.logger.Info("group switched to automatic mode", "group_id", c.id)
	} else {
		c.logger.Info("group switched to manual mode", "group_id", c.id, "time_to_auto", c.ctl.TimeToAuto)
	}
	return nil
}

func parseInt(payload []byte, lo, hi int) (int, error) {
	v, err := strconv.Atoi(string(payload))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrMalformedPayload, payload)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%w: %d outside [%d, %d]", ErrInvalidValue, v, lo, hi)
	}
	return v, nil
}

func (c *Controller) setManualSetpoint(payload []byte) error {
	if c.ctl.Auto() {
		return fmt.Errorf("%w: setpoint", ErrModeMismatch)
	}
	v, err := parseInt(payload, minSetpoint, maxSetpoint)
	if err != nil {
		return err
	}
	c.target = v
	if c.setpoint > v {
		c.slope = c.slopeFall
	} else {
		c.slope = c.slopeRise
	}
	c.gateOpen = false
	return nil
}

func (c *Controller) setBlindPosition(payload []byte) ([]bus.Message, error) {
	if c.ctl.Auto() {
		return nil, fmt.Errorf("%w: blind position", ErrModeMismatch)
	}
	pos, err := parseInt(payload, agent.PositionUp, agent.PositionDown)
	if err != nil {
		return nil, err
	}
	value := []byte(strconv.Itoa(pos))
	var msgs []bus.Message
	for _, m := range c.sorted(agent.KindBlind) {
		msgs = append(msgs,
			bus.Message{Topic: m.Namespace.Write("base/blind1"), Payload: value},
			bus.Message{Topic: m.Namespace.Write("base/blind2"), Payload: value},
		)
	}
	return msgs, nil
}

// Observe records a member's snapshot. Only sensor snapshots feed fusion;
// snapshots from other members are accepted and ignored.
func (c *Controller) Observe(memberID string, payload []byte) error {
	if _, ok := c.members[agent.KindSensor][memberID]; !ok {
		return nil
	}
	var r reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("%w: snapshot from %s: %w", ErrMalformedPayload, memberID, err)
	}

	prev := c.readings[memberID]
	if r.Temperature == nil {
		r.Temperature = prev.Temperature
	}
	if r.Brightness == nil {
		r.Brightness = prev.Brightness
	}
	if r.Presence == nil {
		r.Presence = prev.Presence
	}
	c.readings[memberID] = r
	c.fuse()
	return nil
}

// fuse recomputes the averages over sensors that reported each field.
// An empty set fuses to zero.
func (c *Controller) fuse() {
	var (
		tempSum, brightSum float64
		tempN, brightN     int
		presence           bool
	)
	for _, r := range c.readings {
		if r.Temperature != nil {
			tempSum += *r.Temperature
			tempN++
		}
		if r.Brightness != nil {
			brightSum += *r.Brightness
			brightN++
		}
		if r.Presence != nil && *r.Presence {
			presence = true
		}
	}

	c.fusion = Fusion{Presence: presence}
	if tempN > 0 {
		c.fusion.Temperature = tempSum / float64(tempN)
	}
	if brightN > 0 {
		c.fusion.Brightness = int(brightSum / float64(brightN))
	}
}

// Tick runs one control cycle: watchdog, temperature intent, presence,
// brightness rule, then slope interpolation. It returns the light setpoint
// commands, if any, followed by the group snapshot.
func (c *Controller) Tick() []bus.Message {
	if c.ctl.Tick() {
		c.logger.Info("group watchdog expired, back to automatic mode", "group_id", c.id)
	}
	if c.ctl.Auto() {
		c.temperatureIntent()
		c.trackPresence()
		c.applyBrightnessRule()
	}

	msgs := c.interpolate()
	return append(msgs, c.snapshotMessage())
}

// temperatureIntent only reports what a climate actuator would be asked to do.
func (c *Controller) temperatureIntent() {
	if c.rules.Temperature == nil {
		return
	}
	target := float64(*c.rules.Temperature)
	switch {
	case c.fusion.Temperature > target:
		c.logger.Debug("temperature above target", "group_id", c.id, "intent", "cool",
			"temperature", c.fusion.Temperature, "target", target)
	case c.fusion.Temperature < target:
		c.logger.Debug("temperature below target", "group_id", c.id, "intent", "heat",
			"temperature", c.fusion.Temperature, "target", target)
	}
}

// trackPresence counts ticks without presence. Any presence resets the count
// and marks the room occupied; reaching the timeout in an occupied room
// leaves it. Without a presence rule the room keeps its initial empty state.
func (c *Controller) trackPresence() {
	if c.rules.Presence == nil {
		return
	}
	if c.fusion.Presence {
		c.ticksLeaving = 0
		c.emptyRoom = false
	} else {
		c.ticksLeaving++
	}

	if c.ticksLeaving >= *c.rules.Presence && !c.emptyRoom {
		c.logger.Info("room is now empty", "group_id", c.id, "ticks_without_presence", c.ticksLeaving)
		c.target = minSetpoint
		c.slope = c.slopeFall
		c.emptyRoom = true
	}
}

func (c *Controller) applyBrightnessRule() {
	if c.rules.Brightness == nil || c.emptyRoom || !c.gateOpen {
		return
	}
	want := *c.rules.Brightness
	switch {
	case c.fusion.Brightness < want:
		if c.setpoint >= maxSetpoint {
			return
		}
		c.logger.Debug("increasing brightness", "group_id", c.id, "brightness", c.fusion.Brightness, "target", want)
		c.target = clamp(c.target + c.step)
		c.slope = c.slopeRise
	case c.fusion.Brightness > want:
		if c.setpoint <= minSetpoint {
			return
		}
		c.logger.Debug("decreasing brightness", "group_id", c.id, "brightness", c.fusion.Brightness, "target", want)
		c.target = clamp(c.target - c.step)
		c.slope = c.slopeFall
	default:
		return
	}
	c.gateOpen = false
}

// interpolate moves the setpoint one slope step toward target and returns
// the setpoint commands for member lights when it changed.
func (c *Controller) interpolate() []bus.Message {
	diff := c.target - c.setpoint
	if diff == 0 {
		c.gateOpen = true
		return nil
	}

	prev := c.setpoint
	if c.slope > 0 {
		c.setpoint += diff / c.slope
		c.slope--
	} else {
		c.setpoint = c.target
	}
	c.setpoint = clamp(c.setpoint)
	if c.setpoint == prev {
		return nil
	}

	c.logger.Debug("setpoint moved", "group_id", c.id, "setpoint", c.setpoint, "target", c.target, "slope", c.slope)
	value := []byte(strconv.Itoa(c.setpoint))
	lights := c.sorted(agent.KindLight)
	msgs := make([]bus.Message, 0, len(lights))
	for _, m := range lights {
		msgs = append(msgs, bus.Message{Topic: m.Namespace.Write("base/setpoint"), Payload: value})
	}
	return msgs
}

func clamp(v int) int {
	return min(max(v, minSetpoint), maxSetpoint)
}
