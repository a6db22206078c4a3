// Package group implements the automation controller that drives a set of
// lights, sensors and blinds as one room.
//
// A Controller fuses the snapshots of its member sensors into an average
// temperature, an average brightness and an any-presence flag. Once per tick
// it evaluates its rules and moves the light setpoint toward its target one
// slope step at a time:
//
//	current += (target - current) / remainingSlope
//
// The brightness rule fires only when the previous transition has finished.
// A presence timeout drives the target to 0 once the room has been empty
// for long enough.
//
// Operators can switch a group to Manual through group/<id>/status/auto and
// then command the setpoint and blind positions directly; a watchdog returns
// the group to Auto.
//
// Groups never own their members. A Member is only an id and a topic; the
// registry owns the agents.
package group
