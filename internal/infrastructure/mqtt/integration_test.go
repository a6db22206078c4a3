//go:build integration

package mqtt

import (
	"testing"
	"time"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_PublishSubscribe(t *testing.T) {
	cfg := testConfig()

	sub, err := Connect(cfg, "graylogic-sim-int-sub")
	if err != nil {
		t.Fatalf("Connect(sub) error = %v", err)
	}
	defer sub.Close()

	pub, err := Connect(cfg, "graylogic-sim-int-pub")
	if err != nil {
		t.Fatalf("Connect(pub) error = %v", err)
	}
	defer pub.Close()

	received := make(chan string, 1)
	if err := sub.Subscribe("/read/+/+/status/dump", func(topic string, _ []byte) error {
		received <- topic
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !sub.HasSubscription("/read/+/+/status/dump") {
		t.Error("HasSubscription() = false after Subscribe")
	}

	if err := pub.Publish("/read/led/LED000000001/status/dump", []byte(`{}`)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case topic := <-received:
		if topic != "/read/led/LED000000001/status/dump" {
			t.Errorf("received topic %q", topic)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}

	if err := sub.Unsubscribe("/read/+/+/status/dump"); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if sub.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", sub.SubscriptionCount())
	}
}
