package agent

import (
	"fmt"

	"github.com/nerrad567/gray-logic-sim/internal/bus"
)

// Sensor defaults.
const (
	DefaultPresenceThreshold = 60
	DefaultCorrectionFactor  = 1
)

// Sensor reports presence, brightness and temperature. Raw readings arrive
// on base/presence, base/brightnessRaw and base/temperatureRaw; the reported
// values are corrected at snapshot time.
type Sensor struct {
	lifecycle

	presence          bool
	prevPresence      bool
	lastMovement      int
	presenceThreshold int

	brightnessRaw     int
	correctionFactor  int
	temperatureRaw    int
	temperatureOffset int

	voltageInput int
}

// NewSensor creates an unconfigured sensor.
func NewSensor(o Options) *Sensor {
	o = o.withDefaults()
	s := &Sensor{
		lifecycle:         newLifecycle(KindSensor, o),
		presenceThreshold: DefaultPresenceThreshold,
		correctionFactor:  DefaultCorrectionFactor,
		voltageInput:      DefaultVoltageInput,
	}
	s.bind(s.ApplyConfiguration)

	s.handlers["config/brightnessCorrectionFactor"] = intField(&s.correctionFactor, 0, maxInt)
	s.handlers["config/presenceThreshold"] = intField(&s.presenceThreshold, 0, maxInt)
	s.handlers["config/temperatureOffset"] = intField(&s.temperatureOffset, minInt, maxInt)
	s.handlers["base/presence"] = boolField(&s.presence)
	s.handlers["base/brightnessRaw"] = intField(&s.brightnessRaw, 0, maxInt)
	s.handlers["base/temperatureRaw"] = intField(&s.temperatureRaw, minInt, maxInt)
	return s
}

// Presence reports the current presence flag.
func (s *Sensor) Presence() bool { return s.presence }

// Brightness returns the corrected brightness reading.
func (s *Sensor) Brightness() int { return s.brightnessRaw * s.correctionFactor }

// Temperature returns the corrected temperature reading.
func (s *Sensor) Temperature() int { return s.temperatureRaw - s.temperatureOffset }

type sensorConfig struct {
	commonConfig
	CorrectionFactor  *int `json:"brightnessCorrectionFactor"`
	PresenceThreshold *int `json:"presenceThreshold"`
	TemperatureOffset *int `json:"temperatureOffset"`
}

// ApplyConfiguration applies a setup/config payload. Every key is optional,
// so "{}" configures a sensor with its defaults.
func (s *Sensor) ApplyConfiguration(payload []byte) error {
	var c sensorConfig
	if err := decodeConfig(payload, &c); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}
	if c.CorrectionFactor != nil && *c.CorrectionFactor < 0 {
		return fmt.Errorf("%w: brightnessCorrectionFactor %d", ErrInvalidValue, *c.CorrectionFactor)
	}
	if c.PresenceThreshold != nil && *c.PresenceThreshold < 0 {
		return fmt.Errorf("%w: presenceThreshold %d", ErrInvalidValue, *c.PresenceThreshold)
	}

	s.applyCommon(c.commonConfig)
	setIf(&s.correctionFactor, c.CorrectionFactor)
	setIf(&s.presenceThreshold, c.PresenceThreshold)
	setIf(&s.temperatureOffset, c.TemperatureOffset)
	s.markConfigured()
	return nil
}

// trackPresence counts ticks since presence was raised and clears it once the
// count reaches the threshold. prevPresence latches true on the first change
// and is never lowered, so after the first clear the counter only restarts
// when presence is raised again.
func (s *Sensor) trackPresence() {
	if s.presence != s.prevPresence {
		s.lastMovement = 0
		s.prevPresence = true
	}
	if s.presence {
		s.lastMovement++
	}
	if s.lastMovement == s.presenceThreshold {
		s.presence = false
	}
}

// Tick advances presence tracking and emits the snapshot.
func (s *Sensor) Tick() []bus.Message {
	return s.tick(s.trackPresence, s.Snapshot)
}

// SensorStatus is the configured part of a sensor snapshot. Sensors carry a
// mode but do not report it.
type SensorStatus struct {
	CommonStatus
	Presence          bool `json:"presence"`
	PresenceThreshold int  `json:"presenceThreshold"`
	LastMovement      int  `json:"lastMovement"`
	Brightness        int  `json:"brightness"`
	RawBrightness     int  `json:"rawBrightness"`
	CorrectionFactor  int  `json:"correctionFactor"`
	Temperature       int  `json:"temperature"`
	RawTemperature    int  `json:"rawTemperature"`
	TemperatureOffset int  `json:"temperatureOffset"`
	VoltageInput      int  `json:"voltageInput"`
}

// SensorSnapshot is published on status/dump.
type SensorSnapshot struct {
	Header
	*SensorStatus
}

// Snapshot returns the sensor's state.
func (s *Sensor) Snapshot() any {
	snap := SensorSnapshot{Header: s.header()}
	if !s.cfg.Configured {
		return snap
	}
	snap.SensorStatus = &SensorStatus{
		CommonStatus:      s.commonStatus(),
		Presence:          s.presence,
		PresenceThreshold: s.presenceThreshold,
		LastMovement:      s.lastMovement,
		Brightness:        s.Brightness(),
		RawBrightness:     s.brightnessRaw,
		CorrectionFactor:  s.correctionFactor,
		Temperature:       s.Temperature(),
		RawTemperature:    s.temperatureRaw,
		TemperatureOffset: s.temperatureOffset,
		VoltageInput:      s.voltageInput,
	}
	return snap
}
