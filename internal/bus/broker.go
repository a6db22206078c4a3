package bus

import (
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-sim/internal/topic"
)

// Logger is the subset of logging.Logger used for delivery failures.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Broker is an in-memory test double with MQTT topic semantics.
//
// Delivery is synchronous on the publisher's goroutine, so a test sees every
// effect of a Publish as soon as it returns. Embedded runs use Embedded.
type Broker struct {
	mu       sync.RWMutex
	sessions map[string]*memSession
	closed   bool
	logger   Logger
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		sessions: make(map[string]*memSession),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for handler errors and recovered panics.
func (b *Broker) SetLogger(l Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if l == nil {
		l = noopLogger{}
	}
	b.logger = l
}

// Connect opens a session. Client ids must be unique among open sessions.
func (b *Broker) Connect(clientID string) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if _, exists := b.sessions[clientID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateClient, clientID)
	}

	s := &memSession{
		broker:   b,
		clientID: clientID,
		subs:     make(map[string]Handler),
	}
	b.sessions[clientID] = s
	return s, nil
}

// Close disconnects every session.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.sessions = make(map[string]*memSession)
}

// SessionCount returns the number of open sessions.
func (b *Broker) SessionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

type route struct {
	clientID string
	handler  Handler
}

func (b *Broker) publish(t string, payload []byte) {
	b.mu.RLock()
	var routes []route
	for _, s := range b.sessions {
		s.mu.RLock()
		for filter, h := range s.subs {
			if topic.Match(filter, t) {
				routes = append(routes, route{clientID: s.clientID, handler: h})
			}
		}
		s.mu.RUnlock()
	}
	logger := b.logger
	b.mu.RUnlock()

	for _, r := range routes {
		// Each subscriber gets its own copy, as it would from a real broker.
		deliver(logger, r, t, append([]byte(nil), payload...))
	}
}

func deliver(logger Logger, r route, t string, payload []byte) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("bus handler panic recovered", "client_id", r.clientID, "topic", t, "panic", p)
		}
	}()
	if err := r.handler(t, payload); err != nil {
		logger.Warn("bus handler returned error", "client_id", r.clientID, "topic", t, "error", err)
	}
}

func (b *Broker) detach(clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, clientID)
}

type memSession struct {
	broker   *Broker
	clientID string

	mu     sync.RWMutex
	subs   map[string]Handler
	closed bool
}

func (s *memSession) Publish(t string, payload []byte) error {
	if t == "" {
		return ErrInvalidTopic
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	s.broker.publish(t, payload)
	return nil
}

func (s *memSession) Subscribe(filter string, h Handler) error {
	if filter == "" || h == nil {
		return ErrInvalidTopic
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.subs[filter] = h
	return nil
}

func (s *memSession) Unsubscribe(filter string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.subs, filter)
	return nil
}

func (s *memSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.subs = make(map[string]Handler)
	s.mu.Unlock()

	s.broker.detach(s.clientID)
	return nil
}
