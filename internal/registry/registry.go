package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-sim/internal/agent"
	"github.com/nerrad567/gray-logic-sim/internal/bus"
	"github.com/nerrad567/gray-logic-sim/internal/diagnostic"
	"github.com/nerrad567/gray-logic-sim/internal/group"
	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sim/internal/topic"
)

// Logger defines the logging interface used by the Switch.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Source is the diagnostic source of events recorded by the switch.
const Source = "switch"

const (
	idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	idLength   = 12
)

// Options configures a Switch.
type Options struct {
	// Connector opens one bus session per agent, group and the switch itself.
	Connector bus.Connector

	// Simulation supplies tick, inbox, watchdog and slope defaults.
	Simulation config.SimulationConfig

	// Diagnostics records plug, membership and command events. Optional.
	Diagnostics *diagnostic.Recorder

	Logger Logger
}

// DeviceInfo is a device's identity, group and latest state.
type DeviceInfo struct {
	ID       string     `json:"id"`
	Kind     agent.Kind `json:"kind"`
	Group    int        `json:"group"`
	Snapshot any        `json:"snapshot"`
}

// Switch owns every agent and group node.
//
// All public methods are thread-safe. Structural changes (plug, unplug,
// groups and membership) are serialised; reads only take the map lock.
type Switch struct {
	connector bus.Connector
	sim       config.SimulationConfig
	diag      *diagnostic.Recorder
	logger    Logger

	session bus.Session
	runCtx  context.Context

	opMu     sync.Mutex
	mu       sync.RWMutex
	devices  map[string]*agent.Node
	groups   map[int]*group.Node
	memberOf map[string]int
	answered map[string]struct{}
}

// New creates a Switch. Call Start before plugging anything.
func New(opts Options) *Switch {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Switch{
		connector: opts.Connector,
		sim:       opts.Simulation,
		diag:      opts.Diagnostics,
		logger:    opts.Logger,
		devices:   make(map[string]*agent.Node),
		groups:    make(map[int]*group.Node),
		memberOf:  make(map[string]int),
		answered:  make(map[string]struct{}),
	}
}

// Start opens the switch session and starts answering hellos. Nodes
// created later run until ctx is cancelled or Stop is called.
func (s *Switch) Start(ctx context.Context) error {
	if s.connector == nil {
		return fmt.Errorf("%w: no bus connector", ErrNotStarted)
	}
	session, err := s.connector.Connect(switchClientID())
	if err != nil {
		return fmt.Errorf("connecting switch session: %w", err)
	}
	if err := session.Subscribe(topic.AllHellos(), s.handleHello); err != nil {
		session.Close() //nolint:errcheck // already failing
		return fmt.Errorf("subscribing to hellos: %w", err)
	}

	s.mu.Lock()
	s.session = session
	s.runCtx = ctx
	s.mu.Unlock()

	s.logger.Info("switch started")
	return nil
}

// Stop stops every group and agent, then closes the switch session.
func (s *Switch) Stop() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	groups := s.groups
	devices := s.devices
	session := s.session
	s.groups = make(map[int]*group.Node)
	s.devices = make(map[string]*agent.Node)
	s.memberOf = make(map[string]int)
	s.answered = make(map[string]struct{})
	s.session = nil
	s.mu.Unlock()

	var errs []error
	for _, g := range groups {
		errs = append(errs, g.Stop())
	}
	for _, d := range devices {
		errs = append(errs, d.Stop())
	}
	if session != nil {
		if err := session.Close(); err != nil && !errors.Is(err, bus.ErrClosed) {
			errs = append(errs, fmt.Errorf("closing switch session: %w", err))
		}
	}
	s.logger.Info("switch stopped", "groups", len(groups), "devices", len(devices))
	return errors.Join(errs...)
}

// PlugLight creates and starts a light with a generated identity.
func (s *Switch) PlugLight(ctx context.Context) (string, error) {
	return s.Plug(ctx, agent.KindLight, "")
}

// PlugSensor creates and starts a sensor with a generated identity.
func (s *Switch) PlugSensor(ctx context.Context) (string, error) {
	return s.Plug(ctx, agent.KindSensor, "")
}

// PlugBlind creates and starts a blind with a generated identity.
func (s *Switch) PlugBlind(ctx context.Context) (string, error) {
	return s.Plug(ctx, agent.KindBlind, "")
}

// Plug creates and starts an agent of kind. An empty id is replaced by a
// generated 12-character identity. It returns the identity in use.
func (s *Switch) Plug(ctx context.Context, kind agent.Kind, id string) (string, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	runCtx, err := s.started()
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	if id == "" {
		id = s.unusedIDLocked()
	}
	_, exists := s.devices[id]
	s.mu.RUnlock()
	if exists {
		return "", fmt.Errorf("%w: %s", ErrDeviceExists, id)
	}

	a, err := agent.New(kind, agent.Options{
		ID:       id,
		Watchdog: s.sim.DeviceWatchdog,
		Logger:   s.logger,
	})
	if err != nil {
		return "", fmt.Errorf("creating %s agent: %w", kind, err)
	}

	session, err := s.connector.Connect(id)
	if err != nil {
		return "", fmt.Errorf("connecting %s: %w", id, err)
	}
	node := agent.NewNode(a, session, agent.NodeOptions{
		TickInterval: s.sim.TickInterval,
		InboxSize:    s.sim.InboxSize,
		Logger:       s.logger,
	})
	if err := node.Start(runCtx); err != nil {
		session.Close() //nolint:errcheck // already failing
		return "", fmt.Errorf("starting %s: %w", id, err)
	}

	s.mu.Lock()
	s.devices[id] = node
	s.mu.Unlock()

	s.logger.Info("device plugged", "device_id", id, "kind", kind)
	s.diag.Record(ctx, diagnostic.ActionPlug, diagnostic.EntityDevice, id, map[string]any{"kind": string(kind)})
	return id, nil
}

// Unplug removes a device from its group, stops it and forgets it.
func (s *Switch) Unplug(ctx context.Context, id string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	node, ok := s.devices[id]
	gid := s.memberOf[id]
	g := s.groups[gid]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	if g != nil {
		if _, err := g.RemoveMember(ctx, id); err != nil {
			s.logger.Warn("removing unplugged device from group", "device_id", id, "group_id", gid, "error", err)
		}
	}

	err := node.Stop()

	s.mu.Lock()
	delete(s.devices, id)
	delete(s.memberOf, id)
	delete(s.answered, id)
	s.mu.Unlock()

	s.logger.Info("device unplugged", "device_id", id)
	s.diag.Record(ctx, diagnostic.ActionUnplug, diagnostic.EntityDevice, id, nil)
	return err
}

// Device returns one device with its current snapshot.
func (s *Switch) Device(ctx context.Context, id string) (DeviceInfo, error) {
	s.mu.RLock()
	node, ok := s.devices[id]
	gid := s.memberOf[id]
	s.mu.RUnlock()
	if !ok {
		return DeviceInfo{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return deviceInfo(ctx, node, gid)
}

// Devices returns every device of kind, or all devices when kind is
// empty, ordered by identity.
func (s *Switch) Devices(ctx context.Context, kind agent.Kind) ([]DeviceInfo, error) {
	type entry struct {
		node *agent.Node
		gid  int
	}
	s.mu.RLock()
	entries := make([]entry, 0, len(s.devices))
	for id, n := range s.devices {
		if kind == "" || n.Identity().Kind == kind {
			entries = append(entries, entry{node: n, gid: s.memberOf[id]})
		}
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].node.Identity().ID < entries[j].node.Identity().ID
	})

	out := make([]DeviceInfo, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		g.Go(func() error {
			info, err := deviceInfo(gctx, e.node, e.gid)
			if err != nil {
				return err
			}
			out[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func deviceInfo(ctx context.Context, node *agent.Node, gid int) (DeviceInfo, error) {
	snap, err := node.Snapshot(ctx)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("reading %s: %w", node.Identity().ID, err)
	}
	id := node.Identity()
	return DeviceInfo{ID: id.ID, Kind: id.Kind, Group: gid, Snapshot: snap}, nil
}

// DeviceCount returns the number of plugged devices.
func (s *Switch) DeviceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

func (s *Switch) started() (context.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil || s.runCtx == nil {
		return nil, ErrNotStarted
	}
	return s.runCtx, nil
}

func (s *Switch) device(id string) (*agent.Node, error) {
	s.mu.RLock()
	node, ok := s.devices[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return node, nil
}

// unusedIDLocked must be called with mu held.
func (s *Switch) unusedIDLocked() string {
	for {
		id := NewDeviceID()
		if _, taken := s.devices[id]; !taken {
			return id
		}
	}
}

// NewDeviceID returns a random 12-character identity of uppercase letters
// and digits.
func NewDeviceID() string {
	u := uuid.New()
	// Bytes 6 and 8 carry the UUID version and variant bits.
	raw := append(u[:6:6], u[10:16]...)
	b := make([]byte, idLength)
	for i := range b {
		b[i] = idAlphabet[int(raw[i])%len(idAlphabet)]
	}
	return string(b)
}

func switchClientID() string {
	return "switch-" + uuid.NewString()[:8]
}

func groupClientID(id int) string {
	return fmt.Sprintf("group-%d-%s", id, uuid.NewString()[:8])
}
