package registry

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-sim/internal/agent"
	"github.com/nerrad567/gray-logic-sim/internal/diagnostic"
	"github.com/nerrad567/gray-logic-sim/internal/topic"
)

// handleHello answers an unconfigured agent with its default
// configuration. It runs on the bus delivery path.
func (s *Switch) handleHello(t string, _ []byte) error {
	addr, err := topic.Parse(t)
	if err != nil {
		return err
	}

	payload, err := s.DefaultConfiguration(agent.Kind(addr.Kind))
	if err != nil {
		return err
	}

	s.mu.RLock()
	session := s.session
	runCtx := s.runCtx
	s.mu.RUnlock()
	if session == nil {
		return ErrNotStarted
	}

	reply := addr.Namespace().Write(topic.FieldSetupConfig)
	if err := session.Publish(reply, payload); err != nil {
		return fmt.Errorf("answering hello of %s: %w", addr.ID, err)
	}
	s.logger.Debug("hello answered", "device_id", addr.ID, "kind", addr.Kind)

	// One configure event per device; an agent repeats its hello every tick
	// until the answer lands.
	s.mu.Lock()
	_, seen := s.answered[addr.ID]
	s.answered[addr.ID] = struct{}{}
	s.mu.Unlock()
	if !seen {
		s.diag.Record(runCtx, diagnostic.ActionConfigure, diagnostic.EntityDevice, addr.ID, map[string]any{
			"kind": addr.Kind,
		})
	}
	return nil
}

// DefaultConfiguration returns the setup/config payload sent to a new
// agent of kind. Lights need their driver current; the rest keep their
// built-in defaults.
func (s *Switch) DefaultConfiguration(kind agent.Kind) ([]byte, error) {
	switch kind {
	case agent.KindLight:
		return json.Marshal(map[string]int{"iMax": s.sim.LightIMax})
	case agent.KindSensor, agent.KindBlind:
		return []byte("{}"), nil
	default:
		return nil, fmt.Errorf("%w: %q", agent.ErrUnknownKind, kind)
	}
}
