package group

import (
	"encoding/json"

	"github.com/nerrad567/gray-logic-sim/internal/agent"
	"github.com/nerrad567/gray-logic-sim/internal/bus"
	"github.com/nerrad567/gray-logic-sim/internal/topic"
)

// Snapshot is the group state published on status/dump every tick.
type Snapshot struct {
	Group      int      `json:"group"`
	Lights     []string `json:"leds"`
	Sensors    []string `json:"sensors"`
	Blinds     []string `json:"blinds"`
	Rules      RuleSet  `json:"rules"`
	SlopeStart int      `json:"slopeStart"`
	SlopeStop  int      `json:"slopeStop"`
	Step       int      `json:"step"`
	Auto       bool     `json:"auto"`
	TimeToAuto int      `json:"timeToAuto"`
	Watchdog   int      `json:"watchdog"`
	Setpoint   int      `json:"setpoint"`
	Target     int      `json:"target"`
	Slope      int      `json:"slope"`
	EmptyRoom  bool     `json:"emptyRoom"`
	Fusion     Fusion   `json:"fusion"`
}

// Snapshot returns the group's state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Group:      c.id,
		Lights:     memberIDs(c.sorted(agent.KindLight)),
		Sensors:    memberIDs(c.sorted(agent.KindSensor)),
		Blinds:     memberIDs(c.sorted(agent.KindBlind)),
		Rules:      c.rules.clone(),
		SlopeStart: c.slopeRise,
		SlopeStop:  c.slopeFall,
		Step:       c.step,
		Auto:       c.ctl.Auto(),
		TimeToAuto: c.ctl.TimeToAuto,
		Watchdog:   c.watchdog,
		Setpoint:   c.setpoint,
		Target:     c.target,
		Slope:      c.slope,
		EmptyRoom:  c.emptyRoom,
		Fusion:     c.fusion,
	}
}

func (c *Controller) snapshotMessage() bus.Message {
	payload, err := json.Marshal(c.Snapshot())
	if err != nil {
		c.logger.Error("encoding group snapshot", "group_id", c.id, "error", err)
	}
	return bus.Message{Topic: c.ns.Read(topic.FieldSnapshot), Payload: payload}
}
