package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

// EmbeddedOptions configures the in-process MQTT broker.
type EmbeddedOptions struct {
	// Listen, when set, also accepts external MQTT clients on this TCP
	// address, so tools like mosquitto_sub can watch the simulation.
	Listen string

	// Logger receives broker logs and handler failures. Nil discards them.
	Logger *slog.Logger
}

// Embedded runs a mochi-mqtt broker inside the process. Nodes talk to it
// through its inline client, so no sockets are involved unless Listen is set.
type Embedded struct {
	server *mqtt.Server
	logger Logger
	subIDs atomic.Int64

	mu      sync.Mutex
	clients map[string]struct{}
	closed  bool
}

// NewEmbedded starts the broker.
func NewEmbedded(opts EmbeddedOptions) (*Embedded, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	server := mqtt.New(&mqtt.Options{
		InlineClient: true,
		Logger:       opts.Logger,
	})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("adding broker auth hook: %w", err)
	}
	if opts.Listen != "" {
		tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: opts.Listen})
		if err := server.AddListener(tcp); err != nil {
			return nil, fmt.Errorf("listening on %s: %w", opts.Listen, err)
		}
	}
	if err := server.Serve(); err != nil {
		server.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("starting embedded broker: %w", err)
	}

	return &Embedded{
		server:  server,
		logger:  opts.Logger,
		clients: make(map[string]struct{}),
	}, nil
}

// Connect opens an inline session. Client ids must be unique among open
// sessions.
func (e *Embedded) Connect(clientID string) (Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if _, exists := e.clients[clientID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateClient, clientID)
	}
	e.clients[clientID] = struct{}{}

	return &inlineSession{
		broker:   e,
		clientID: clientID,
		subID:    int(e.subIDs.Add(1)),
		filters:  make(map[string]struct{}),
	}, nil
}

// SessionCount returns the number of open sessions.
func (e *Embedded) SessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.clients)
}

// Close stops the broker. Open sessions fail with ErrClosed afterwards.
func (e *Embedded) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.clients = make(map[string]struct{})
	e.mu.Unlock()

	return e.server.Close()
}

func (e *Embedded) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Embedded) detach(clientID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.clients, clientID)
}

// inlineSession maps one node onto the broker's inline client. All of its
// filters share one subscription identifier, unique to the session.
type inlineSession struct {
	broker   *Embedded
	clientID string
	subID    int

	mu      sync.Mutex
	filters map[string]struct{}
	closed  bool
}

func (s *inlineSession) usable() error {
	if s.closed || s.broker.isClosed() {
		return ErrClosed
	}
	return nil
}

func (s *inlineSession) Publish(t string, payload []byte) error {
	if t == "" {
		return ErrInvalidTopic
	}
	s.mu.Lock()
	err := s.usable()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if err := s.broker.server.Publish(t, payload, false, 0); err != nil {
		return fmt.Errorf("publishing %s: %w", t, err)
	}
	return nil
}

func (s *inlineSession) Subscribe(filter string, h Handler) error {
	if filter == "" || h == nil {
		return ErrInvalidTopic
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}

	r := route{clientID: s.clientID, handler: h}
	logger := s.broker.logger
	err := s.broker.server.Subscribe(filter, s.subID, func(_ *mqtt.Client, _ packets.Subscription, pk packets.Packet) {
		deliver(logger, r, pk.TopicName, append([]byte(nil), pk.Payload...))
	})
	if err != nil {
		return fmt.Errorf("subscribing %s: %w", filter, err)
	}
	s.filters[filter] = struct{}{}
	return nil
}

func (s *inlineSession) Unsubscribe(filter string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if _, ok := s.filters[filter]; !ok {
		return nil
	}
	delete(s.filters, filter)
	if err := s.broker.server.Unsubscribe(filter, s.subID); err != nil {
		return fmt.Errorf("unsubscribing %s: %w", filter, err)
	}
	return nil
}

func (s *inlineSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	filters := s.filters
	s.filters = make(map[string]struct{})
	s.mu.Unlock()

	s.broker.detach(s.clientID)
	if s.broker.isClosed() {
		return nil
	}
	for filter := range filters {
		if err := s.broker.server.Unsubscribe(filter, s.subID); err != nil {
			s.broker.logger.Warn("unsubscribing closed session", "client_id", s.clientID, "filter", filter, "error", err)
		}
	}
	return nil
}
