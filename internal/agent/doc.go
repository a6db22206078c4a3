// Package agent implements the simulated field devices: lights, presence
// sensors and blinds.
//
// Every agent follows the same lifecycle. Until it receives a configuration
// on setup/config it announces itself with a hello on every tick. Once
// configured it runs its kind-specific tick logic and publishes a full
// snapshot on status/dump.
//
// Actuators have an Auto/Manual control. Auto updates arrive on the plain
// base fields (base/setpoint, base/blind1), manual ones on the *Manual
// fields. An update for the other mode is discarded. Switching to Manual
// arms a watchdog that returns the agent to Auto after Watchdog ticks.
//
// Inbound fields are dispatched through a fixed table per kind:
//
//	err := light.ApplyFieldUpdate("config/thresholdLow", []byte("15"))
//
// Node runs an Agent on its own actor and bus session.
package agent
