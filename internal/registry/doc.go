// Package registry is the simulator's switch: it owns every running agent
// and group by identity, answers hello announcements with a default
// configuration and turns operator requests into bus commands.
//
// Agents and groups only ever talk over the bus. The registry keeps the
// nodes so it can read consistent snapshots and stop them on unplug, but it
// never touches agent state directly.
//
// Usage:
//
//	sw := registry.New(registry.Options{Connector: broker, Simulation: cfg.Simulation})
//	if err := sw.Start(ctx); err != nil { ... }
//	defer sw.Stop()
//
//	id, _ := sw.PlugLight(ctx)
//	_ = sw.CreateGroup(ctx, registry.GroupSpec{ID: 1, Members: []string{id}})
package registry
