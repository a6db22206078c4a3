// Package mqtt provides MQTT sessions for the simulated device network.
//
// Every agent, group and the registry hold their own Client, each with its
// own client id, Last Will and subscription set, the same way a physical
// device would appear on the broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with payload and QoS validation
//   - Wildcard subscriptions restored after reconnect
//   - Per-session presence on graylogic-sim/session/<id>/status
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, "LED4K2Q9ZP0AB")
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("/write/led/LED4K2Q9ZP0AB/#",
//	    func(topic string, payload []byte) error {
//	        return agent.Deliver(topic, payload)
//	    })
package mqtt
