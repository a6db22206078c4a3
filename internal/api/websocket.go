package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sim/internal/topic"
)

// Stream message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Snapshot channels. A client subscribes to a kind ("snapshot.led"), a
// single node ("snapshot.led.LED4K2Q9ZP0AB", "snapshot.group.3") or to
// everything ("snapshot.*"). Events always carry the kind channel.
const (
	ChannelPrefix = "snapshot."
	ChannelAll    = ChannelPrefix + "*"
)

const (
	wsSendBufferSize = 256
	wsMaxMessageSize = 8192
	wsPingInterval   = 30 * time.Second
	wsPongTimeout    = 10 * time.Second
)

// WSMessage is one frame of the stream, in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe frames.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// SnapshotEvent is the payload of an event frame: the last status/dump of
// one agent or group, untouched.
type SnapshotEvent struct {
	Kind     string          `json:"kind"`
	ID       string          `json:"id"`
	Snapshot json.RawMessage `json:"snapshot"`
}

func (e SnapshotEvent) key() string { return e.Kind + "." + e.ID }

// Hub fans bus snapshots out to stream clients and remembers the latest
// snapshot of every node, so a new subscriber sees current state at once
// instead of waiting for the next tick.
type Hub struct {
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
	latest  map[string]SnapshotEvent
}

// WSClient is one connected stream consumer.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.RWMutex
	channels map[string]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// NewHub returns an empty hub. Run must be started to release clients on
// shutdown.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
		latest:  make(map[string]SnapshotEvent),
	}
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
		delete(h.clients, c)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) attach(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("stream client connected", "clients", n)
}

// detach forgets c. Only the caller that removes c from the map closes its
// send channel.
func (h *Hub) detach(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(c.send)
	}
	h.logger.Debug("stream client disconnected", "clients", n)
}

// Publish records ev as the node's latest snapshot and sends it to every
// client whose channels cover it.
func (h *Hub) Publish(ev SnapshotEvent) {
	data, err := eventFrame(ev)
	if err != nil {
		h.logger.Error("encoding snapshot event", "kind", ev.Kind, "id", ev.ID, "error", err)
		return
	}

	h.mu.Lock()
	h.latest[ev.key()] = ev
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if c.wants(ev) {
			c.trySend(data)
		}
	}
}

// Forget drops the remembered snapshot of a node that left the network.
func (h *Hub) Forget(kind, id string) {
	h.mu.Lock()
	delete(h.latest, kind+"."+id)
	h.mu.Unlock()
}

// replay sends c the remembered snapshots it now covers, in key order.
func (h *Hub) replay(c *WSClient) {
	h.mu.RLock()
	events := make([]SnapshotEvent, 0, len(h.latest))
	for _, ev := range h.latest {
		if c.wants(ev) {
			events = append(events, ev)
		}
	}
	h.mu.RUnlock()

	sort.Slice(events, func(i, j int) bool { return events[i].key() < events[j].key() })
	for _, ev := range events {
		if data, err := eventFrame(ev); err == nil {
			c.trySend(data)
		}
	}
}

func eventFrame(ev SnapshotEvent) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: ChannelPrefix + ev.Kind,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   ev,
	})
}

// relaySnapshot is the bus handler feeding the hub.
func (s *Server) relaySnapshot(t string, payload []byte) error {
	addr, err := topic.Parse(t)
	if err != nil {
		return err
	}
	if !json.Valid(payload) {
		s.logger.Debug("dropping invalid snapshot", "topic", t)
		return nil
	}
	s.hub.Publish(SnapshotEvent{
		Kind:     addr.Kind,
		ID:       addr.ID,
		Snapshot: json.RawMessage(payload),
	})
	return nil
}

// handleWebSocket upgrades the request and starts the client pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		channels: make(map[string]struct{}),
	}
	s.hub.attach(c)

	go c.writeLoop()
	go c.readLoop()
}

// wants reports whether any subscribed channel covers ev.
func (c *WSClient) wants(ev SnapshotEvent) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range [...]string{ChannelAll, ChannelPrefix + ev.Kind, ChannelPrefix + ev.key()} {
		if _, ok := c.channels[ch]; ok {
			return true
		}
	}
	return false
}

func (c *WSClient) readLoop() {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))
	}
	extend("") //nolint:errcheck // a failed deadline surfaces on the next read
	c.conn.SetPongHandler(extend)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("stream read error", "error", err)
			}
			return
		}
		extend("") //nolint:errcheck // as above
		c.handle(data)
	}
}

func (c *WSClient) writeLoop() {
	ping := time.NewTicker(wsPingInterval)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // write error reported below
		c.conn.SetWriteDeadline(time.Now().Add(wsPongTimeout))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handle(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		channels, err := subscriptionChannels(msg.Payload)
		if err != nil {
			c.reply(msg.ID, WSTypeError, map[string]string{"message": err.Error()})
			return
		}
		subscribe := msg.Type == WSTypeSubscribe
		c.setChannels(channels, subscribe)
		if subscribe {
			c.reply(msg.ID, WSTypeResponse, map[string]any{"subscribed": channels})
			c.hub.replay(c)
			return
		}
		c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

// subscriptionChannels extracts and checks the channel list of a
// subscribe frame.
func subscriptionChannels(payload any) ([]string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errInvalidSubscription
	}
	var sub WSSubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil || len(sub.Channels) == 0 {
		return nil, errInvalidSubscription
	}
	for _, ch := range sub.Channels {
		if !strings.HasPrefix(ch, ChannelPrefix) || len(ch) == len(ChannelPrefix) {
			return nil, errUnknownChannel(ch)
		}
	}
	return sub.Channels, nil
}

func (c *WSClient) setChannels(channels []string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if on {
			c.channels[ch] = struct{}{}
		} else {
			delete(c.channels, ch)
		}
	}
}

// trySend drops data when the client is gone or its buffer is full.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on a channel closed by detach
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}
