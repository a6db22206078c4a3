package topic

import (
	"fmt"
	"strconv"
	"strings"
)

// Direction prefixes. Agents publish on read topics and listen on write topics.
const (
	ReadPrefix  = "/read/"
	WritePrefix = "/write/"
)

// Namespace roots under a device or group base topic.
const (
	RootBase   = "base"
	RootConfig = "config"
	RootMetric = "metric"
	RootStatus = "status"
	RootSetup  = "setup"
)

// Well-known fields.
const (
	FieldHello       = "setup/hello"
	FieldSetupConfig = "setup/config"
	FieldSnapshot    = "status/dump"
	FieldAuto        = "status/auto"
	FieldGroup       = "config/group"
)

// GroupKind is the kind segment of group topics.
const GroupKind = "group"

// Direction tells whether a topic is a read (state out) or write (command in) topic.
type Direction int

const (
	// DirectionNone marks a topic without a /read/ or /write/ prefix.
	DirectionNone Direction = iota
	DirectionRead
	DirectionWrite
)

func (d Direction) String() string {
	switch d {
	case DirectionRead:
		return "read"
	case DirectionWrite:
		return "write"
	default:
		return "none"
	}
}

// Namespace is the base topic of one device or group, "<kind>/<id>".
//
// Example:
//
//	ns := topic.Device("led", "LED4K2Q9ZP0AB")
//	ns.Write(topic.FieldAuto) // "/write/led/LED4K2Q9ZP0AB/status/auto"
type Namespace string

// Device returns the namespace of a device agent.
func Device(kind, id string) Namespace {
	return Namespace(kind + "/" + id)
}

// Group returns the namespace of a group.
func Group(id int) Namespace {
	return Namespace(GroupKind + "/" + strconv.Itoa(id))
}

// String returns the bare base topic.
func (n Namespace) String() string { return string(n) }

// Field joins a field path ("config/group") onto the base topic.
func (n Namespace) Field(field string) string {
	return string(n) + "/" + field
}

// Base returns <ns>/base/<name>.
func (n Namespace) Base(name string) string { return n.Field(RootBase + "/" + name) }

// Config returns <ns>/config/<name>.
func (n Namespace) Config(name string) string { return n.Field(RootConfig + "/" + name) }

// Metric returns <ns>/metric/<name>.
func (n Namespace) Metric(name string) string { return n.Field(RootMetric + "/" + name) }

// Status returns <ns>/status/<name>.
func (n Namespace) Status(name string) string { return n.Field(RootStatus + "/" + name) }

// Setup returns <ns>/setup/<name>.
func (n Namespace) Setup(name string) string { return n.Field(RootSetup + "/" + name) }

// Read returns the /read/ topic of a field.
func (n Namespace) Read(field string) string { return Read(n.Field(field)) }

// Write returns the /write/ topic of a field.
func (n Namespace) Write(field string) string { return Write(n.Field(field)) }

// WriteAll is the filter matching every command addressed to this namespace.
//
// Example: /write/blind/BLIND0000001/#
func (n Namespace) WriteAll() string { return Write(string(n) + "/#") }

// Read prefixes t with /read/.
func Read(t string) string { return ReadPrefix + t }

// Write prefixes t with /write/.
func Write(t string) string { return WritePrefix + t }

// AllHellos matches the hello announcement of every unconfigured agent.
func AllHellos() string { return ReadPrefix + "+/+/" + FieldHello }

// AllSnapshots matches the per-tick snapshot of every agent and group.
func AllSnapshots() string { return ReadPrefix + "+/+/" + FieldSnapshot }

// Address is an inbound topic split into its parts.
type Address struct {
	Direction Direction
	Kind      string
	ID        string
	// Field is the remainder after the base, e.g. "config/group" or "base/setpoint".
	Field string
}

// Namespace returns the base namespace of the address.
func (a Address) Namespace() Namespace { return Device(a.Kind, a.ID) }

// Parse splits a /read/ or /write/ topic into direction, kind, id and field.
//
// Example: "/write/led/LED4K2Q9ZP0AB/config/group" parses to
// {DirectionWrite, "led", "LED4K2Q9ZP0AB", "config/group"}.
func Parse(t string) (Address, error) {
	var a Address
	rest := t
	switch {
	case strings.HasPrefix(t, ReadPrefix):
		a.Direction = DirectionRead
		rest = strings.TrimPrefix(t, ReadPrefix)
	case strings.HasPrefix(t, WritePrefix):
		a.Direction = DirectionWrite
		rest = strings.TrimPrefix(t, WritePrefix)
	default:
		return Address{}, fmt.Errorf("%w: %q has no /read/ or /write/ prefix", ErrMalformed, t)
	}

	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Address{}, fmt.Errorf("%w: %q is not <kind>/<id>/<field>", ErrMalformed, t)
	}
	a.Kind, a.ID, a.Field = parts[0], parts[1], parts[2]
	return a, nil
}

// Match reports whether topic t matches the MQTT filter, honouring the
// single-level "+" and multi-level "#" wildcards.
func Match(filter, t string) bool {
	fs := strings.Split(filter, "/")
	ts := strings.Split(t, "/")

	for i, f := range fs {
		if f == "#" {
			return i == len(fs)-1
		}
		if i >= len(ts) {
			return false
		}
		if f != "+" && f != ts[i] {
			return false
		}
	}
	return len(fs) == len(ts)
}
