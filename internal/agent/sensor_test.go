package agent

import "testing"

func newConfiguredSensor(t *testing.T, payload string) *Sensor {
	t.Helper()
	s := NewSensor(Options{ID: "SENSOR000001"})
	configure(t, s, payload)
	return s
}

func TestSensor_PresenceClearsAtThreshold(t *testing.T) {
	s := newConfiguredSensor(t, `{"presenceThreshold": 3}`)
	update(t, s, "base/presence", "true")

	for tick := 1; tick <= 2; tick++ {
		s.Tick()
		if !s.Presence() {
			t.Fatalf("presence cleared after %d ticks, want 3", tick)
		}
	}
	s.Tick()
	if s.Presence() {
		t.Error("presence still set after 3 ticks")
	}
	if s.lastMovement != 3 {
		t.Errorf("lastMovement = %d, want 3", s.lastMovement)
	}
}

func TestSensor_PresenceRaisedAgain(t *testing.T) {
	s := newConfiguredSensor(t, `{"presenceThreshold": 2}`)

	update(t, s, "base/presence", "true")
	s.Tick()
	s.Tick()
	if s.Presence() {
		t.Fatal("presence not cleared")
	}

	// The edge flag stays latched, so the counter restarts from the reset
	// done on the falling edge.
	s.Tick()
	update(t, s, "base/presence", "true")
	s.Tick()
	if !s.Presence() || s.lastMovement != 1 {
		t.Fatalf("presence = %v, lastMovement = %d; want true, 1", s.Presence(), s.lastMovement)
	}
	s.Tick()
	if s.Presence() {
		t.Error("second presence not cleared at threshold")
	}
}

func TestSensor_CorrectedReadings(t *testing.T) {
	s := newConfiguredSensor(t, `{"brightnessCorrectionFactor": 2, "temperatureOffset": 3}`)
	update(t, s, "base/brightnessRaw", "150")
	update(t, s, "base/temperatureRaw", "24")

	snap := snapshotMap(t, s)
	if snap["brightness"] != float64(300) || snap["rawBrightness"] != float64(150) {
		t.Errorf("brightness = %v raw = %v, want 300 and 150", snap["brightness"], snap["rawBrightness"])
	}
	if snap["temperature"] != float64(21) {
		t.Errorf("temperature = %v, want 21", snap["temperature"])
	}

	update(t, s, "config/temperatureOffset", "-2")
	if s.Temperature() != 26 {
		t.Errorf("Temperature() = %d, want 26", s.Temperature())
	}
}

func TestSensor_SnapshotOmitsMode(t *testing.T) {
	snap := snapshotMap(t, newConfiguredSensor(t, `{}`))
	for _, k := range []string{"auto", "timeToAuto"} {
		if _, ok := snap[k]; ok {
			t.Errorf("sensor snapshot carries %q", k)
		}
	}
	if snap["presenceThreshold"] != float64(DefaultPresenceThreshold) {
		t.Errorf("presenceThreshold = %v, want %d", snap["presenceThreshold"], DefaultPresenceThreshold)
	}
}
