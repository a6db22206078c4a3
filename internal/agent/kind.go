package agent

import (
	"fmt"

	"github.com/nerrad567/gray-logic-sim/internal/topic"
)

// Kind is the device type. Its value is the kind segment of the device's topics.
type Kind string

// Device kinds.
const (
	KindLight  Kind = "led"
	KindSensor Kind = "sensor"
	KindBlind  Kind = "blind"
)

// Kinds lists every device kind in display order.
var Kinds = []Kind{KindLight, KindSensor, KindBlind}

// ParseKind maps a wire kind to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindLight, KindSensor, KindBlind:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

func (k Kind) String() string { return string(k) }

// DefaultVersion is the firmware tag reported by new agents.
const DefaultVersion = "1.0.0"

// Identity is fixed when the agent is created.
type Identity struct {
	ID      string
	Kind    Kind
	Version string
}

// Namespace returns the agent's base topic namespace.
func (id Identity) Namespace() topic.Namespace {
	return topic.Device(string(id.Kind), id.ID)
}
