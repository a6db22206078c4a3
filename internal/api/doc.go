// Package api provides the operator HTTP API and WebSocket snapshot stream
// of the simulator.
//
// The API is a thin translator: every request maps onto one registry
// operation, and every command it accepts is published on the bus exactly
// as a building controller would publish it.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
