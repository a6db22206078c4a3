package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-sim/internal/bus"
	"github.com/nerrad567/gray-logic-sim/internal/topic"
)

// Agent is one simulated device. Light, Sensor and Blind implement it.
//
// Every method must be called from a single goroutine; Node does that by
// running the agent inside an actor.
type Agent interface {
	Identity() Identity

	// ApplyConfiguration decodes a JSON configuration payload. A valid
	// payload marks the agent configured. Applying the same payload twice
	// leaves the same state as applying it once.
	ApplyConfiguration(payload []byte) error

	// ApplyFieldUpdate dispatches one write-topic field, such as
	// "config/group" or "base/setpoint", through the agent's handler table.
	ApplyFieldUpdate(field string, payload []byte) error

	// Tick runs one tick and returns what the agent publishes: a hello
	// while unconfigured, a snapshot once configured.
	Tick() []bus.Message

	// Snapshot returns the JSON-serialisable full state.
	Snapshot() any

	Configured() bool
	Control() Control
}

// Logger is the logging interface used by agents.
// Compatible with *logging.Logger.
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

// Defaults shared by every kind.
const (
	DefaultWatchdog     = 3600
	DefaultVoltageInput = 36
)

// Options configures a new agent.
type Options struct {
	ID       string
	Version  string
	Watchdog int
	Clock    func() time.Time
	Logger   Logger
}

func (o Options) withDefaults() Options {
	if o.Version == "" {
		o.Version = DefaultVersion
	}
	if o.Watchdog == 0 {
		o.Watchdog = DefaultWatchdog
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
	return o
}

// constructors is the static dispatch table from kind to variant.
var constructors = map[Kind]func(Options) Agent{
	KindLight:  func(o Options) Agent { return NewLight(o) },
	KindSensor: func(o Options) Agent { return NewSensor(o) },
	KindBlind:  func(o Options) Agent { return NewBlind(o) },
}

// New creates an unconfigured agent of the given kind.
func New(kind Kind, opts Options) (Agent, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if opts.ID == "" {
		return nil, fmt.Errorf("%w: empty device id", ErrInvalidValue)
	}
	return ctor(opts), nil
}

// Configuration is the state changed only by configuration and reset messages.
type Configuration struct {
	Configured       bool
	Group            int
	Watchdog         int
	ResetCount       int
	LastResetTime    time.Time
	InitialSetupTime time.Time
	BLEEnabled       bool
}

type fieldHandler func(payload []byte) error

// lifecycle is the part every kind shares: identity, configuration, the
// Auto/Manual control and the common rows of the handler table.
type lifecycle struct {
	id       Identity
	ns       topic.Namespace
	cfg      Configuration
	ctl      Control
	clock    func() time.Time
	logger   Logger
	handlers map[string]fieldHandler
}

func newLifecycle(kind Kind, o Options) lifecycle {
	id := Identity{ID: o.ID, Kind: kind, Version: o.Version}
	return lifecycle{
		id:       id,
		ns:       id.Namespace(),
		cfg:      Configuration{Watchdog: o.Watchdog},
		clock:    o.Clock,
		logger:   o.Logger,
		handlers: make(map[string]fieldHandler),
	}
}

// bind fills the common rows of the handler table. It must run on the
// lifecycle embedded in the final variant so the method values point at it.
func (l *lifecycle) bind(configure fieldHandler) {
	l.handlers[topic.FieldSetupConfig] = configure
	l.handlers["config/isConfigured"] = l.reset
	l.handlers[topic.FieldGroup] = l.setGroup
	l.handlers["config/isBleEnabled"] = l.setBLE
	l.handlers["config/watchdog"] = l.setWatchdog
	l.handlers[topic.FieldAuto] = l.setAuto
}

func (l *lifecycle) Identity() Identity { return l.id }
func (l *lifecycle) Configured() bool   { return l.cfg.Configured }
func (l *lifecycle) Control() Control   { return l.ctl }

// Config returns a copy of the configuration state.
func (l *lifecycle) Config() Configuration { return l.cfg }

func (l *lifecycle) ApplyFieldUpdate(field string, payload []byte) error {
	h, ok := l.handlers[field]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return h(payload)
}

// markConfigured completes the setup handshake. The first configuration
// stamps InitialSetupTime; later ones keep it.
func (l *lifecycle) markConfigured() {
	if !l.cfg.Configured {
		l.logger.Info("device configured", "device_id", l.id.ID, "kind", l.id.Kind)
	}
	l.cfg.Configured = true
	if l.cfg.InitialSetupTime.IsZero() {
		l.cfg.InitialSetupTime = l.clock()
	}
}

// reset handles config/isConfigured. Any write counts as a reset; writing
// false sends the agent back to the hello handshake.
func (l *lifecycle) reset(payload []byte) error {
	configured, err := parseBoolPayload(payload)
	if err != nil {
		return err
	}
	l.cfg.Configured = configured
	l.cfg.ResetCount++
	l.cfg.LastResetTime = l.clock()
	l.logger.Info("device reset", "device_id", l.id.ID, "configured", configured, "reset_count", l.cfg.ResetCount)
	return nil
}

func (l *lifecycle) setGroup(payload []byte) error {
	g, err := parseNonNegative(payload)
	if err != nil {
		return err
	}
	l.cfg.Group = g
	return nil
}

func (l *lifecycle) setBLE(payload []byte) error {
	b, err := parseBoolPayload(payload)
	if err != nil {
		return err
	}
	l.cfg.BLEEnabled = b
	return nil
}

func (l *lifecycle) setWatchdog(payload []byte) error {
	w, err := parseNonNegative(payload)
	if err != nil {
		return err
	}
	l.cfg.Watchdog = w
	return nil
}

func (l *lifecycle) setAuto(payload []byte) error {
	auto, err := parseBoolPayload(payload)
	if err != nil {
		return err
	}
	if !l.ctl.Set(auto, l.cfg.Watchdog) {
		l.logger.Debug("mode unchanged", "device_id", l.id.ID, "mode", l.ctl.Mode)
		return nil
	}
	if auto {
		l.logger.Info("switched to automatic mode", "device_id", l.id.ID)
	} else {
		l.logger.Info("switched to manual mode", "device_id", l.id.ID, "time_to_auto", l.ctl.TimeToAuto)
	}
	return nil
}

// requireMode gates a base-channel update on the current mode.
func (l *lifecycle) requireMode(want Mode) error {
	if l.ctl.Mode != want {
		return fmt.Errorf("%w: %s update while %s", ErrModeMismatch, want, l.ctl.Mode)
	}
	return nil
}

// Hello is the announcement of an unconfigured agent.
type Hello struct {
	DeviceID string `json:"deviceId"`
	Kind     Kind   `json:"kind"`
	Topic    string `json:"topic"`
}

// tick runs the shared per-tick sequence around the variant's step.
func (l *lifecycle) tick(step func(), snapshot func() any) []bus.Message {
	if !l.cfg.Configured {
		return []bus.Message{l.message(topic.FieldHello, Hello{
			DeviceID: l.id.ID,
			Kind:     l.id.Kind,
			Topic:    l.ns.String(),
		})}
	}

	if step != nil {
		step()
	}
	if l.ctl.Tick() {
		l.logger.Info("watchdog expired, back to automatic mode", "device_id", l.id.ID)
	}
	return []bus.Message{l.message(topic.FieldSnapshot, snapshot())}
}

func (l *lifecycle) message(field string, v any) bus.Message {
	payload, err := json.Marshal(v)
	if err != nil {
		// Snapshot types are plain structs; this only fires on a programming error.
		l.logger.Error("encoding payload", "device_id", l.id.ID, "field", field, "error", err)
	}
	return bus.Message{Topic: l.ns.Read(field), Payload: payload}
}

// Header is present in every snapshot.
type Header struct {
	DeviceID         string `json:"deviceId"`
	IsConfigured     bool   `json:"isConfigured"`
	ErrorCode        int    `json:"errorCode"`
	InitialSetupTime int64  `json:"initialSetupTime"`
}

// CommonStatus is reported by every configured agent.
type CommonStatus struct {
	Group         int    `json:"group"`
	Version       string `json:"version"`
	ResetCount    int    `json:"resetCount"`
	LastResetTime int64  `json:"lastResetTime"`
	BLEEnabled    bool   `json:"bleEnabled"`
}

func (l *lifecycle) header() Header {
	return Header{
		DeviceID:         l.id.ID,
		IsConfigured:     l.cfg.Configured,
		InitialSetupTime: unixOrZero(l.cfg.InitialSetupTime),
	}
}

func (l *lifecycle) commonStatus() CommonStatus {
	return CommonStatus{
		Group:         l.cfg.Group,
		Version:       l.id.Version,
		ResetCount:    l.cfg.ResetCount,
		LastResetTime: unixOrZero(l.cfg.LastResetTime),
		BLEEnabled:    l.cfg.BLEEnabled,
	}
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// commonConfig holds the optional configuration keys every kind accepts.
type commonConfig struct {
	Group      *int  `json:"group"`
	Watchdog   *int  `json:"watchdog"`
	BLEEnabled *bool `json:"bleEnabled"`
}

func (c commonConfig) validate() error {
	if c.Group != nil && *c.Group < 0 {
		return fmt.Errorf("%w: group %d", ErrInvalidValue, *c.Group)
	}
	if c.Watchdog != nil && *c.Watchdog < 0 {
		return fmt.Errorf("%w: watchdog %d", ErrInvalidValue, *c.Watchdog)
	}
	return nil
}

func (l *lifecycle) applyCommon(c commonConfig) {
	if c.Group != nil {
		l.cfg.Group = *c.Group
	}
	if c.Watchdog != nil {
		l.cfg.Watchdog = *c.Watchdog
	}
	if c.BLEEnabled != nil {
		l.cfg.BLEEnabled = *c.BLEEnabled
	}
}

func decodeConfig(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return nil
}
