package api

import (
	"encoding/json"
	"testing"

	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/logging"
)

func newStreamClient(h *Hub, channels ...string) *WSClient {
	c := &WSClient{hub: h, send: make(chan []byte, 16), channels: make(map[string]struct{})}
	c.setChannels(channels, true)
	return c
}

// drain returns the ids of every event frame queued for c.
func drain(t *testing.T, c *WSClient) []string {
	t.Helper()
	var ids []string
	for {
		select {
		case data := <-c.send:
			var msg struct {
				Type    string        `json:"type"`
				Payload SnapshotEvent `json:"payload"`
			}
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("frame is not JSON: %v", err)
			}
			if msg.Type == WSTypeEvent {
				ids = append(ids, msg.Payload.ID)
			}
		default:
			return ids
		}
	}
}

func TestHub_ChannelMatching(t *testing.T) {
	h := NewHub(logging.Discard())

	all := newStreamClient(h, ChannelAll)
	leds := newStreamClient(h, ChannelPrefix+"led")
	one := newStreamClient(h, ChannelPrefix+"group.3")
	for _, c := range []*WSClient{all, leds, one} {
		h.attach(c)
	}

	snap := json.RawMessage(`{}`)
	h.Publish(SnapshotEvent{Kind: "led", ID: "LED000000001", Snapshot: snap})
	h.Publish(SnapshotEvent{Kind: "group", ID: "3", Snapshot: snap})
	h.Publish(SnapshotEvent{Kind: "group", ID: "4", Snapshot: snap})

	tests := []struct {
		name   string
		client *WSClient
		want   []string
	}{
		{"everything", all, []string{"LED000000001", "3", "4"}},
		{"kind", leds, []string{"LED000000001"}},
		{"single node", one, []string{"3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := drain(t, tt.client)
			if len(got) != len(tt.want) {
				t.Fatalf("events = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("events = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestHub_ReplayAndForget(t *testing.T) {
	h := NewHub(logging.Discard())
	snap := json.RawMessage(`{"brightness":40}`)
	h.Publish(SnapshotEvent{Kind: "led", ID: "B", Snapshot: snap})
	h.Publish(SnapshotEvent{Kind: "led", ID: "A", Snapshot: snap})
	h.Publish(SnapshotEvent{Kind: "sensor", ID: "C", Snapshot: snap})

	c := newStreamClient(h, ChannelPrefix+"led")
	h.replay(c)
	if got := drain(t, c); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("replay = %v, want [A B]", got)
	}

	h.Forget("led", "A")
	h.replay(c)
	if got := drain(t, c); len(got) != 1 || got[0] != "B" {
		t.Errorf("replay after Forget = %v, want [B]", got)
	}
}

func TestHub_DetachClosesOnce(t *testing.T) {
	h := NewHub(logging.Discard())
	c := newStreamClient(h, ChannelAll)
	h.attach(c)
	h.detach(c)
	h.detach(c)

	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", h.ClientCount())
	}
	// Sending to a detached client is absorbed.
	c.trySend([]byte("late"))
}

func TestSubscriptionChannels(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		wantErr bool
	}{
		{"kind", WSSubscribePayload{Channels: []string{"snapshot.led"}}, false},
		{"node and all", map[string]any{"channels": []string{"snapshot.blind.X", ChannelAll}}, false},
		{"empty list", WSSubscribePayload{}, true},
		{"bare prefix", WSSubscribePayload{Channels: []string{ChannelPrefix}}, true},
		{"foreign channel", WSSubscribePayload{Channels: []string{"device.state_changed"}}, true},
		{"wrong shape", "snapshot.led", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := subscriptionChannels(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Errorf("subscriptionChannels() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
