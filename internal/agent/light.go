package agent

import (
	"fmt"

	"github.com/nerrad567/gray-logic-sim/internal/bus"
)

// Light defaults.
const (
	DefaultThresholdLow      = 10
	DefaultThresholdHigh     = 100
	DefaultBrightnessSetting = 20
	secondsPerHour           = 3600
)

// Light is a dimmable LED driver. Brightness is driven by base/setpoint in
// Auto and base/setpointManual in Manual.
type Light struct {
	lifecycle

	brightness         int
	thresholdLow       int
	thresholdHigh      int
	defaultBrightness  int
	iMax               int
	daisyChainEnabled  bool
	daisyChainPosition int

	// durationSeconds counts lit seconds toward the next hour.
	durationSeconds int
	durationHours   int

	// Electrical readings. The simulation holds them constant.
	devicePower  int
	energy       int
	voltageLed   int
	voltageInput int
	temperature  int
	linePower    int
}

// NewLight creates an unconfigured light.
func NewLight(o Options) *Light {
	o = o.withDefaults()
	l := &Light{
		lifecycle:         newLifecycle(KindLight, o),
		thresholdLow:      DefaultThresholdLow,
		thresholdHigh:     DefaultThresholdHigh,
		defaultBrightness: DefaultBrightnessSetting,
		voltageInput:      DefaultVoltageInput,
	}
	l.bind(l.ApplyConfiguration)

	l.handlers["base/setpoint"] = l.automaticSetpoint
	l.handlers["base/setpointManual"] = l.manualSetpoint
	l.handlers["config/thresholdLow"] = intField(&l.thresholdLow, 0, 100)
	l.handlers["config/thresholdHigh"] = intField(&l.thresholdHigh, 0, 100)
	l.handlers["config/defaultBrightness"] = intField(&l.defaultBrightness, 0, 100)
	l.handlers["config/iMax"] = intField(&l.iMax, 0, maxInt)
	l.handlers["config/isDaisyChainEnabled"] = boolField(&l.daisyChainEnabled)
	l.handlers["config/daisyChainPosition"] = intField(&l.daisyChainPosition, 0, maxInt)
	return l
}

// Brightness returns the current brightness.
func (l *Light) Brightness() int { return l.brightness }

// DurationHours returns the accumulated lit hours.
func (l *Light) DurationHours() int { return l.durationHours }

type lightConfig struct {
	commonConfig
	IMax              *int `json:"iMax"`
	ThresholdLow      *int `json:"thresholdLow"`
	ThresholdHigh     *int `json:"thresholdHigh"`
	DefaultBrightness *int `json:"defaultBrightness"`
}

// ApplyConfiguration applies a setup/config payload. iMax is required.
func (l *Light) ApplyConfiguration(payload []byte) error {
	var c lightConfig
	if err := decodeConfig(payload, &c); err != nil {
		return err
	}
	if c.IMax == nil {
		return fmt.Errorf("%w: iMax is required", ErrMalformedPayload)
	}
	if err := c.validate(); err != nil {
		return err
	}
	if *c.IMax < 0 {
		return fmt.Errorf("%w: iMax %d", ErrInvalidValue, *c.IMax)
	}
	for name, v := range map[string]*int{
		"thresholdLow":      c.ThresholdLow,
		"thresholdHigh":     c.ThresholdHigh,
		"defaultBrightness": c.DefaultBrightness,
	} {
		if v != nil && (*v < 0 || *v > 100) {
			return fmt.Errorf("%w: %s %d", ErrInvalidValue, name, *v)
		}
	}

	l.applyCommon(c.commonConfig)
	l.iMax = *c.IMax
	setIf(&l.thresholdLow, c.ThresholdLow)
	setIf(&l.thresholdHigh, c.ThresholdHigh)
	setIf(&l.defaultBrightness, c.DefaultBrightness)
	l.markConfigured()
	return nil
}

func (l *Light) automaticSetpoint(payload []byte) error {
	if err := l.requireMode(ModeAuto); err != nil {
		return err
	}
	v, err := parseIntPayload(payload)
	if err != nil {
		return err
	}
	l.setBrightness(v)
	return nil
}

func (l *Light) manualSetpoint(payload []byte) error {
	if err := l.requireMode(ModeManual); err != nil {
		return err
	}
	v, err := parseIntPayload(payload)
	if err != nil {
		return err
	}
	l.setBrightness(v)
	return nil
}

// setBrightness clamps v to [0, thresholdHigh]. Values below thresholdLow
// switch the light off.
func (l *Light) setBrightness(v int) {
	v = min(max(v, 0), l.thresholdHigh)
	if v > 0 && v < l.thresholdLow {
		v = 0
	}
	l.brightness = v
}

func (l *Light) accrue() {
	if l.brightness <= 0 {
		return
	}
	l.durationSeconds++
	if l.durationSeconds >= secondsPerHour {
		l.durationHours++
		l.durationSeconds = 0
	}
}

// Tick accrues lit time, advances the watchdog and emits the snapshot.
func (l *Light) Tick() []bus.Message {
	return l.tick(l.accrue, l.Snapshot)
}

// LightStatus is the configured part of a light snapshot.
type LightStatus struct {
	CommonStatus
	Brightness         int  `json:"brightness"`
	ThresholdLow       int  `json:"thresholdLow"`
	ThresholdHigh      int  `json:"thresholdHigh"`
	DefaultBrightness  int  `json:"defaultBrightness"`
	IMax               int  `json:"iMax"`
	Auto               bool `json:"auto"`
	TimeToAuto         int  `json:"timeToAuto"`
	Watchdog           int  `json:"watchdog"`
	DaisyChainEnabled  bool `json:"daisyChainEnabled"`
	DaisyChainPosition int  `json:"daisyChainPosition"`
	DurationHours      int  `json:"durationHours"`
	DevicePower        int  `json:"devicePower"`
	Energy             int  `json:"energy"`
	VoltageLed         int  `json:"voltageLed"`
	VoltageInput       int  `json:"voltageInput"`
	Temperature        int  `json:"temperature"`
	LinePower          int  `json:"linePower"`
}

// LightSnapshot is published on status/dump.
type LightSnapshot struct {
	Header
	*LightStatus
}

// Snapshot returns the light's state. Configured-only fields are omitted
// while unconfigured.
func (l *Light) Snapshot() any {
	s := LightSnapshot{Header: l.header()}
	if !l.cfg.Configured {
		return s
	}
	s.LightStatus = &LightStatus{
		CommonStatus:       l.commonStatus(),
		Brightness:         l.brightness,
		ThresholdLow:       l.thresholdLow,
		ThresholdHigh:      l.thresholdHigh,
		DefaultBrightness:  l.defaultBrightness,
		IMax:               l.iMax,
		Auto:               l.ctl.Auto(),
		TimeToAuto:         l.ctl.TimeToAuto,
		Watchdog:           l.cfg.Watchdog,
		DaisyChainEnabled:  l.daisyChainEnabled,
		DaisyChainPosition: l.daisyChainPosition,
		DurationHours:      l.durationHours,
		DevicePower:        l.devicePower,
		Energy:             l.energy,
		VoltageLed:         l.voltageLed,
		VoltageInput:       l.voltageInput,
		Temperature:        l.temperature,
		LinePower:          l.linePower,
	}
	return s
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
