package agent

import (
	"fmt"

	"github.com/nerrad567/gray-logic-sim/internal/bus"
)

// Blind positions.
const (
	PositionUp     = 0
	PositionMiddle = 1
	PositionDown   = 2

	DefaultBlindPosition = PositionMiddle
)

// FinOrientations lists the accepted fin values.
var FinOrientations = []string{"0", "+45", "-45", "+90", "-90"}

// ValidPosition reports whether p is a blind position.
func ValidPosition(p int) bool { return p >= PositionUp && p <= PositionDown }

// ValidFin reports whether f is one of FinOrientations.
func ValidFin(f string) bool {
	for _, o := range FinOrientations {
		if f == o {
			return true
		}
	}
	return false
}

// Blind drives two blind channels with adjustable fins.
type Blind struct {
	lifecycle

	position        [2]int
	fin             [2]string
	windowStatus    bool
	defaultPosition int

	daisyChainEnabled  bool
	daisyChainPosition int
	voltageInput       int
	temperature        int
}

// NewBlind creates an unconfigured blind.
func NewBlind(o Options) *Blind {
	o = o.withDefaults()
	b := &Blind{
		lifecycle:       newLifecycle(KindBlind, o),
		fin:             [2]string{"0", "0"},
		defaultPosition: DefaultBlindPosition,
		voltageInput:    DefaultVoltageInput,
	}
	b.bind(b.ApplyConfiguration)

	for ch := range 2 {
		n := fmt.Sprint(ch + 1)
		b.handlers["base/blind"+n] = b.positionHandler(ch, ModeAuto)
		b.handlers["base/blind"+n+"Manual"] = b.positionHandler(ch, ModeManual)
		b.handlers["base/fin"+n+"Manual"] = b.finHandler(ch)
	}
	b.handlers["base/windowStatus"] = boolField(&b.windowStatus)
	b.handlers["config/isDaisyChainEnabled"] = boolField(&b.daisyChainEnabled)
	b.handlers["config/daisyChainPosition"] = intField(&b.daisyChainPosition, 0, maxInt)
	b.handlers["config/defaultPosition"] = intField(&b.defaultPosition, PositionUp, PositionDown)
	return b
}

// Position returns the position of channel 1 or 2.
func (b *Blind) Position(channel int) int { return b.position[channel-1] }

// Fin returns the fin orientation of channel 1 or 2.
func (b *Blind) Fin(channel int) string { return b.fin[channel-1] }

func (b *Blind) positionHandler(ch int, mode Mode) fieldHandler {
	return func(payload []byte) error {
		if err := b.requireMode(mode); err != nil {
			return err
		}
		p, err := parseIntIn(payload, PositionUp, PositionDown)
		if err != nil {
			return err
		}
		b.position[ch] = p
		return nil
	}
}

func (b *Blind) finHandler(ch int) fieldHandler {
	return func(payload []byte) error {
		if err := b.requireMode(ModeManual); err != nil {
			return err
		}
		f := string(payload)
		if !ValidFin(f) {
			return fmt.Errorf("%w: fin orientation %q", ErrInvalidValue, f)
		}
		b.fin[ch] = f
		return nil
	}
}

type blindConfig struct {
	commonConfig
	DefaultPosition *int `json:"defaultPosition"`
}

// ApplyConfiguration applies a setup/config payload. Every key is optional.
func (b *Blind) ApplyConfiguration(payload []byte) error {
	var c blindConfig
	if err := decodeConfig(payload, &c); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}
	if c.DefaultPosition != nil && !ValidPosition(*c.DefaultPosition) {
		return fmt.Errorf("%w: defaultPosition %d", ErrInvalidValue, *c.DefaultPosition)
	}

	b.applyCommon(c.commonConfig)
	setIf(&b.defaultPosition, c.DefaultPosition)
	b.markConfigured()
	return nil
}

// Tick advances the watchdog and emits the snapshot.
func (b *Blind) Tick() []bus.Message {
	return b.tick(nil, b.Snapshot)
}

// BlindStatus is the configured part of a blind snapshot. Exactly one of the
// auto or manual position sets is present, depending on the mode.
type BlindStatus struct {
	CommonStatus
	Auto               bool `json:"auto"`
	TimeToAuto         int  `json:"timeToAuto"`
	Watchdog           int  `json:"watchdog"`
	WindowStatus       bool `json:"windowStatus"`
	DefaultPosition    int  `json:"defaultPosition"`
	DaisyChainEnabled  bool `json:"daisyChainEnabled"`
	DaisyChainPosition int  `json:"daisyChainPosition"`
	VoltageInput       int  `json:"voltageInput"`
	Temperature        int  `json:"temperature"`

	Blind1       *int    `json:"blind1,omitempty"`
	Blind2       *int    `json:"blind2,omitempty"`
	Blind1Manual *int    `json:"blind1Manual,omitempty"`
	Blind2Manual *int    `json:"blind2Manual,omitempty"`
	Fin1Manual   *string `json:"fin1Manual,omitempty"`
	Fin2Manual   *string `json:"fin2Manual,omitempty"`
}

// BlindSnapshot is published on status/dump.
type BlindSnapshot struct {
	Header
	*BlindStatus
}

// Snapshot returns the blind's state.
func (b *Blind) Snapshot() any {
	s := BlindSnapshot{Header: b.header()}
	if !b.cfg.Configured {
		return s
	}
	st := &BlindStatus{
		CommonStatus:       b.commonStatus(),
		Auto:               b.ctl.Auto(),
		TimeToAuto:         b.ctl.TimeToAuto,
		Watchdog:           b.cfg.Watchdog,
		WindowStatus:       b.windowStatus,
		DefaultPosition:    b.defaultPosition,
		DaisyChainEnabled:  b.daisyChainEnabled,
		DaisyChainPosition: b.daisyChainPosition,
		VoltageInput:       b.voltageInput,
		Temperature:        b.temperature,
	}
	p1, p2 := b.position[0], b.position[1]
	if b.ctl.Auto() {
		st.Blind1, st.Blind2 = &p1, &p2
	} else {
		f1, f2 := b.fin[0], b.fin[1]
		st.Blind1Manual, st.Blind2Manual = &p1, &p2
		st.Fin1Manual, st.Fin2Manual = &f1, &f2
	}
	s.BlindStatus = st
	return s
}
