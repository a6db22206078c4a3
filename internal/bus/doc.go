// Package bus is the publish/subscribe layer the simulated nodes talk over.
//
// A Connector opens one Session per node. Three connectors exist:
//
//   - MQTTConnector dials a real broker through the mqtt infrastructure
//     package, one client id per node.
//   - Embedded runs a mochi-mqtt broker in the process and gives each node
//     a session on its inline client.
//   - Broker is an in-memory double with synchronous delivery, for tests.
//
// Delivery is at-most-once and ordered only per publisher and topic.
package bus
