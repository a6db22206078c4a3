// Package metrics holds the Prometheus collectors of the simulator.
//
// Collectors are registered on the default registry at init time and served
// by Handler. Agents and groups report processed events, dropped mailbox
// messages, rejected payloads and published messages.
package metrics
