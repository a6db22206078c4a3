package agent

// Mode selects who drives an actuator: the group automation (Auto) or a
// direct operator command (Manual).
type Mode int

const (
	ModeAuto Mode = iota
	ModeManual
)

func (m Mode) String() string {
	if m == ModeManual {
		return "manual"
	}
	return "auto"
}

// Control is the Auto/Manual state machine with its watchdog.
//
// TimeToAuto is non-zero only while Manual. Each Tick in Manual decrements
// it; the tick that brings it to zero switches back to Auto.
type Control struct {
	Mode       Mode
	TimeToAuto int
}

// Auto reports whether the control is in Auto mode.
func (c Control) Auto() bool { return c.Mode == ModeAuto }

// Set applies an auto/manual command. Entering Manual arms the watchdog with
// watchdog seconds; entering Auto disarms it. A command for the current mode
// changes nothing and returns false.
func (c *Control) Set(auto bool, watchdog int) bool {
	switch {
	case auto && c.Mode == ModeAuto, !auto && c.Mode == ModeManual:
		return false
	case auto:
		c.Mode = ModeAuto
		c.TimeToAuto = 0
	default:
		c.Mode = ModeManual
		c.TimeToAuto = watchdog
	}
	return true
}

// Tick advances the watchdog by one tick and reports whether it reverted
// the control to Auto.
func (c *Control) Tick() bool {
	if c.Mode != ModeManual {
		return false
	}
	if c.TimeToAuto > 0 {
		c.TimeToAuto--
	}
	if c.TimeToAuto == 0 {
		c.Mode = ModeAuto
		return true
	}
	return false
}
