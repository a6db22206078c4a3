package bus

// Handler receives one delivered message. It runs on the bus delivery path
// and must not block; simulator handlers only enqueue into a mailbox.
// A returned error is logged by the session.
type Handler func(topic string, payload []byte) error

// Session is one client's view of the bus. Every agent, group and the
// registry own exactly one session.
type Session interface {
	// Publish sends payload to topic. Delivery is at-most-once.
	Publish(topic string, payload []byte) error

	// Subscribe routes messages matching filter (with + and # wildcards) to h.
	// Subscribing the same filter again replaces its handler.
	Subscribe(filter string, h Handler) error

	// Unsubscribe stops routing filter. Unknown filters are ignored.
	Unsubscribe(filter string) error

	// Close unsubscribes everything and releases the session.
	Close() error
}

// Connector opens sessions with a given client identity.
type Connector interface {
	Connect(clientID string) (Session, error)
}

// Message is a topic and payload pair queued for publishing.
type Message struct {
	Topic   string
	Payload []byte
}

// PublishAll publishes msgs in order and returns the first error, after
// attempting every message.
func PublishAll(s Session, msgs []Message) error {
	var first error
	for _, m := range msgs {
		if err := s.Publish(m.Topic, m.Payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}
