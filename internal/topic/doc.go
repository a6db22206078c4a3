// Package topic maps device and group identities onto the simulator's
// hierarchical topic namespace.
//
// Every device lives under "<kind>/<id>" with five roots: base (actuator
// values), config, metric, status and setup. Groups live under
// "group/<id>". State leaves a node on /read/ topics and commands reach it on
// /write/ topics:
//
//	/read/led/LED4K2Q9ZP0AB/setup/hello     hello announcement
//	/write/led/LED4K2Q9ZP0AB/setup/config   configuration payload
//	/read/led/LED4K2Q9ZP0AB/status/dump     per-tick snapshot
//	/write/group/3/config/setpoint          group manual setpoint
//
// The package is pure: no I/O and no state.
package topic
