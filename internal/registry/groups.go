package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-sim/internal/diagnostic"
	"github.com/nerrad567/gray-logic-sim/internal/group"
	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/config"
)

// GroupSpec describes a group to create.
type GroupSpec struct {
	ID      int
	Members []string
	Rules   group.RuleSet
}

// GroupSpecFromConfig converts a configured group.
func GroupSpecFromConfig(g config.GroupConfig) GroupSpec {
	return GroupSpec{
		ID:      g.ID,
		Members: g.Members,
		Rules: group.RuleSet{
			Temperature: g.Rules.Temperature,
			Brightness:  g.Rules.Brightness,
			Presence:    g.Rules.Presence,
		},
	}
}

// CreateGroup starts a group controller and adds spec.Members to it.
// Unknown members fail the call before anything is created.
func (s *Switch) CreateGroup(ctx context.Context, spec GroupSpec) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	runCtx, err := s.started()
	if err != nil {
		return err
	}
	if spec.ID <= group.Unassigned {
		return fmt.Errorf("%w: group id %d must be positive", ErrInvalidValue, spec.ID)
	}

	s.mu.RLock()
	_, exists := s.groups[spec.ID]
	var missing []string
	for _, id := range spec.Members {
		if _, ok := s.devices[id]; !ok {
			missing = append(missing, id)
		}
	}
	s.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %d", ErrGroupExists, spec.ID)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrDeviceNotFound, missing)
	}

	ctl, err := group.New(group.Options{
		ID:        spec.ID,
		Watchdog:  s.sim.GroupWatchdog,
		SlopeRise: s.sim.SlopeRise,
		SlopeFall: s.sim.SlopeFall,
		Step:      s.sim.Step,
		Rules:     spec.Rules,
		Logger:    s.logger,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	session, err := s.connector.Connect(groupClientID(spec.ID))
	if err != nil {
		return fmt.Errorf("connecting group %d: %w", spec.ID, err)
	}
	node := group.NewNode(ctl, session, group.NodeOptions{
		TickInterval: s.sim.TickInterval,
		InboxSize:    s.sim.InboxSize,
		Logger:       s.logger,
	})
	if err := node.Start(runCtx); err != nil {
		session.Close() //nolint:errcheck // already failing
		return fmt.Errorf("starting group %d: %w", spec.ID, err)
	}

	s.mu.Lock()
	s.groups[spec.ID] = node
	s.mu.Unlock()

	s.logger.Info("group created", "group_id", spec.ID, "members", len(spec.Members))
	s.diag.Record(ctx, diagnostic.ActionCreateGroup, diagnostic.EntityGroup, groupEntity(spec.ID), map[string]any{
		"members": spec.Members,
	})

	for _, id := range spec.Members {
		if err := s.addLocked(ctx, spec.ID, id); err != nil {
			return err
		}
	}
	return nil
}

// Group returns the current snapshot of one group.
func (s *Switch) Group(ctx context.Context, id int) (group.Snapshot, error) {
	g, err := s.group(id)
	if err != nil {
		return group.Snapshot{}, err
	}
	return g.Snapshot(ctx)
}

// Groups returns every group's snapshot ordered by id.
func (s *Switch) Groups(ctx context.Context) ([]group.Snapshot, error) {
	s.mu.RLock()
	nodes := make([]*group.Node, 0, len(s.groups))
	for _, g := range s.groups {
		nodes = append(nodes, g)
	}
	s.mu.RUnlock()

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })

	out := make([]group.Snapshot, len(nodes))
	eg, gctx := errgroup.WithContext(ctx)
	for i, g := range nodes {
		eg.Go(func() error {
			snap, err := g.Snapshot(gctx)
			if err != nil {
				return fmt.Errorf("reading group %d: %w", g.ID(), err)
			}
			out[i] = snap
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// AddToGroup moves a device into a group. A device already in another
// group leaves it first; adding a present member is a no-op.
func (s *Switch) AddToGroup(ctx context.Context, groupID int, deviceID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.addLocked(ctx, groupID, deviceID)
}

// addLocked must be called with opMu held.
func (s *Switch) addLocked(ctx context.Context, groupID int, deviceID string) error {
	g, err := s.group(groupID)
	if err != nil {
		return err
	}
	node, err := s.device(deviceID)
	if err != nil {
		return err
	}

	s.mu.RLock()
	current := s.memberOf[deviceID]
	s.mu.RUnlock()
	if current == groupID {
		return nil
	}
	if current != group.Unassigned {
		if err := s.removeLocked(ctx, current, deviceID); err != nil {
			return err
		}
	}

	added, err := g.AddMember(ctx, group.MemberOf(node.Identity()))
	if err != nil {
		return fmt.Errorf("adding %s to group %d: %w", deviceID, groupID, err)
	}

	s.mu.Lock()
	s.memberOf[deviceID] = groupID
	s.mu.Unlock()

	if added {
		s.diag.Record(ctx, diagnostic.ActionAddMember, diagnostic.EntityGroup, groupEntity(groupID), map[string]any{
			"device_id": deviceID,
		})
	}
	return nil
}

// RemoveFromGroup takes a device out of a group. Removing a device that is
// not a member is a no-op.
func (s *Switch) RemoveFromGroup(ctx context.Context, groupID int, deviceID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if _, err := s.device(deviceID); err != nil {
		return err
	}
	return s.removeLocked(ctx, groupID, deviceID)
}

// removeLocked must be called with opMu held.
func (s *Switch) removeLocked(ctx context.Context, groupID int, deviceID string) error {
	g, err := s.group(groupID)
	if err != nil {
		return err
	}
	removed, err := g.RemoveMember(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("removing %s from group %d: %w", deviceID, groupID, err)
	}
	if !removed {
		return nil
	}

	s.mu.Lock()
	if s.memberOf[deviceID] == groupID {
		delete(s.memberOf, deviceID)
	}
	s.mu.Unlock()

	s.diag.Record(ctx, diagnostic.ActionRemoveMember, diagnostic.EntityGroup, groupEntity(groupID), map[string]any{
		"device_id": deviceID,
	})
	return nil
}

// UpdateGroupRule sets or, with a nil value, clears one rule.
func (s *Switch) UpdateGroupRule(ctx context.Context, groupID int, rule string, value *int) error {
	g, err := s.group(groupID)
	if err != nil {
		return err
	}
	if err := g.SetRule(ctx, rule, value); err != nil {
		if errors.Is(err, group.ErrUnknownRule) || errors.Is(err, group.ErrInvalidValue) {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		return err
	}

	details := map[string]any{"rule": rule}
	if value != nil {
		details["value"] = *value
	}
	s.diag.Record(ctx, diagnostic.ActionUpdateRule, diagnostic.EntityGroup, groupEntity(groupID), details)
	return nil
}

func (s *Switch) group(id int) (*group.Node, error) {
	s.mu.RLock()
	g, ok := s.groups[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrGroupNotFound, id)
	}
	return g, nil
}

func groupEntity(id int) string {
	return strconv.Itoa(id)
}
