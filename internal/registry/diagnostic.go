package registry

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-sim/internal/agent"
	"github.com/nerrad567/gray-logic-sim/internal/diagnostic"
	"github.com/nerrad567/gray-logic-sim/internal/group"
)

// DefaultDiagnosticEvents is the number of events Diagnostic returns.
const DefaultDiagnosticEvents = 50

// Diagnostic is a full dump of the simulator state.
type Diagnostic struct {
	Devices []DeviceInfo       `json:"devices"`
	Groups  []group.Snapshot   `json:"groups"`
	Events  []diagnostic.Event `json:"events"`
}

// Diagnostic collects every device and group snapshot plus the most recent
// diagnostic events.
func (s *Switch) Diagnostic(ctx context.Context) (*Diagnostic, error) {
	devices, err := s.Devices(ctx, "")
	if err != nil {
		return nil, err
	}
	groups, err := s.Groups(ctx)
	if err != nil {
		return nil, err
	}
	events, err := s.diag.Recent(ctx, DefaultDiagnosticEvents)
	if err != nil {
		return nil, fmt.Errorf("listing diagnostic events: %w", err)
	}
	return &Diagnostic{Devices: devices, Groups: groups, Events: events}, nil
}

// Provision plugs the configured devices, then creates the configured
// groups.
func (s *Switch) Provision(ctx context.Context) error {
	for _, d := range s.sim.Devices {
		kind, err := agent.ParseKind(d.Kind)
		if err != nil {
			return err
		}
		if _, err := s.Plug(ctx, kind, d.ID); err != nil {
			return err
		}
	}
	for _, g := range s.sim.Groups {
		if err := s.CreateGroup(ctx, GroupSpecFromConfig(g)); err != nil {
			return fmt.Errorf("creating group %d: %w", g.ID, err)
		}
	}
	return nil
}
