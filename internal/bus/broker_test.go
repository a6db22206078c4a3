package bus

import (
	"errors"
	"sync"
	"testing"
)

type collector struct {
	mu     sync.Mutex
	topics []string
	bodies []string
}

func (c *collector) handle(topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	c.bodies = append(c.bodies, string(payload))
	return nil
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.topics)
}

func mustConnect(t *testing.T, b Connector, id string) Session {
	t.Helper()
	s, err := b.Connect(id)
	if err != nil {
		t.Fatalf("Connect(%q) error = %v", id, err)
	}
	return s
}

func TestBroker_WildcardDelivery(t *testing.T) {
	b := NewBroker()
	pub := mustConnect(t, b, "pub")
	sub := mustConnect(t, b, "sub")

	var hellos, device collector
	if err := sub.Subscribe("/read/+/+/setup/hello", hellos.handle); err != nil {
		t.Fatal(err)
	}
	if err := sub.Subscribe("/write/led/L1/#", device.handle); err != nil {
		t.Fatal(err)
	}

	_ = pub.Publish("/read/led/L1/setup/hello", []byte("a"))
	_ = pub.Publish("/read/blind/B1/setup/hello", []byte("b"))
	_ = pub.Publish("/write/led/L1/config/group", []byte("3"))
	_ = pub.Publish("/write/led/L2/config/group", []byte("4"))

	if hellos.count() != 2 {
		t.Errorf("hello deliveries = %d, want 2", hellos.count())
	}
	if device.count() != 1 || device.bodies[0] != "3" {
		t.Errorf("device deliveries = %v, want [3]", device.bodies)
	}
}

func TestBroker_PublisherOrder(t *testing.T) {
	b := NewBroker()
	pub := mustConnect(t, b, "pub")
	sub := mustConnect(t, b, "sub")

	var c collector
	_ = sub.Subscribe("t", c.handle)
	for _, p := range []string{"1", "2", "3"} {
		_ = pub.Publish("t", []byte(p))
	}

	if got := c.bodies; len(got) != 3 || got[0] != "1" || got[2] != "3" {
		t.Errorf("bodies = %v, want [1 2 3]", got)
	}
}

func TestBroker_PayloadIsCopied(t *testing.T) {
	b := NewBroker()
	pub := mustConnect(t, b, "pub")
	sub := mustConnect(t, b, "sub")

	var got []byte
	_ = sub.Subscribe("t", func(_ string, p []byte) error {
		got = p
		return nil
	})

	payload := []byte("abc")
	_ = pub.Publish("t", payload)
	payload[0] = 'x'

	if string(got) != "abc" {
		t.Errorf("delivered payload = %q, want abc", got)
	}
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := NewBroker()
	s := mustConnect(t, b, "s")

	var c collector
	_ = s.Subscribe("t", c.handle)
	_ = s.Unsubscribe("t")
	_ = s.Unsubscribe("never-subscribed")
	_ = s.Publish("t", nil)

	if c.count() != 0 {
		t.Errorf("deliveries after unsubscribe = %d, want 0", c.count())
	}
}

func TestBroker_DuplicateClient(t *testing.T) {
	b := NewBroker()
	mustConnect(t, b, "dup")

	if _, err := b.Connect("dup"); !errors.Is(err, ErrDuplicateClient) {
		t.Errorf("Connect(dup) error = %v, want ErrDuplicateClient", err)
	}
}

func TestBroker_CloseSession(t *testing.T) {
	b := NewBroker()
	s := mustConnect(t, b, "s")

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := s.Publish("t", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after Close = %v, want ErrClosed", err)
	}
	if b.SessionCount() != 0 {
		t.Errorf("SessionCount() = %d, want 0", b.SessionCount())
	}

	// The id is free again.
	mustConnect(t, b, "s")
}

func TestBroker_HandlerPanicDoesNotStopDelivery(t *testing.T) {
	b := NewBroker()
	pub := mustConnect(t, b, "pub")
	bad := mustConnect(t, b, "bad")
	good := mustConnect(t, b, "good")

	_ = bad.Subscribe("t", func(string, []byte) error { panic("boom") })
	var c collector
	_ = good.Subscribe("t", c.handle)

	if err := pub.Publish("t", nil); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if c.count() != 1 {
		t.Errorf("good subscriber deliveries = %d, want 1", c.count())
	}
}

func TestBroker_InvalidInput(t *testing.T) {
	b := NewBroker()
	s := mustConnect(t, b, "s")

	if err := s.Publish("", nil); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish(\"\") = %v, want ErrInvalidTopic", err)
	}
	if err := s.Subscribe("", func(string, []byte) error { return nil }); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(\"\") = %v, want ErrInvalidTopic", err)
	}

	b.Close()
	if _, err := b.Connect("late"); !errors.Is(err, ErrClosed) {
		t.Errorf("Connect after Close = %v, want ErrClosed", err)
	}
}

func TestPublishAll(t *testing.T) {
	b := NewBroker()
	pub := mustConnect(t, b, "pub")
	sub := mustConnect(t, b, "sub")

	var c collector
	_ = sub.Subscribe("#", c.handle)

	err := PublishAll(pub, []Message{{Topic: "a"}, {Topic: ""}, {Topic: "b"}})
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("PublishAll() error = %v, want ErrInvalidTopic", err)
	}
	if c.count() != 2 {
		t.Errorf("deliveries = %d, want 2", c.count())
	}
}
