package group

import "fmt"

// Rule names accepted by SetRule.
const (
	RuleTemperature = "temperature"
	RuleBrightness  = "brightness"
	RulePresence    = "presence"
)

// RuleSet holds the optional automation targets. A nil target disables
// its rule.
type RuleSet struct {
	// Temperature is the target temperature. The rule only logs an intent.
	Temperature *int `json:"temperature,omitempty"`

	// Brightness is the target fused brightness.
	Brightness *int `json:"brightness,omitempty"`

	// Presence is the number of ticks without presence after which the
	// room is considered empty.
	Presence *int `json:"presence,omitempty"`
}

func (r RuleSet) clone() RuleSet {
	return RuleSet{
		Temperature: cloneInt(r.Temperature),
		Brightness:  cloneInt(r.Brightness),
		Presence:    cloneInt(r.Presence),
	}
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// SetTemperatureRule sets or clears (nil) the temperature target.
func (c *Controller) SetTemperatureRule(v *int) { c.rules.Temperature = cloneInt(v) }

// SetBrightnessRule sets or clears (nil) the brightness target.
func (c *Controller) SetBrightnessRule(v *int) { c.rules.Brightness = cloneInt(v) }

// SetPresenceRule sets or clears (nil) the presence timeout.
func (c *Controller) SetPresenceRule(v *int) { c.rules.Presence = cloneInt(v) }

// SetRule sets a rule by name.
func (c *Controller) SetRule(name string, v *int) error {
	switch name {
	case RuleTemperature:
		c.SetTemperatureRule(v)
	case RuleBrightness:
		c.SetBrightnessRule(v)
	case RulePresence:
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: presence timeout %d", ErrInvalidValue, *v)
		}
		c.SetPresenceRule(v)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRule, name)
	}
	c.logger.Info("group rule updated", "group_id", c.id, "rule", name, "value", ruleValue(v))
	return nil
}

// Rules returns a copy of the rule set.
func (c *Controller) Rules() RuleSet { return c.rules.clone() }

// ruleValue renders a rule target for logs.
func ruleValue(v *int) any {
	if v == nil {
		return "unset"
	}
	return *v
}
