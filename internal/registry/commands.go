package registry

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nerrad567/gray-logic-sim/internal/agent"
	"github.com/nerrad567/gray-logic-sim/internal/diagnostic"
	"github.com/nerrad567/gray-logic-sim/internal/group"
	"github.com/nerrad567/gray-logic-sim/internal/topic"
)

// Operator commands are published on the switch session like any other
// client would. Agents validate mode on their side: a manual command sent
// to an agent in Auto is dropped by the agent, not here.

// SwitchDeviceMode puts a device in Auto or Manual.
func (s *Switch) SwitchDeviceMode(ctx context.Context, id string, auto bool) error {
	node, err := s.device(id)
	if err != nil {
		return err
	}
	return s.send(ctx, diagnostic.EntityDevice, id, node.Identity().Namespace(), topic.FieldAuto, agent.FormatBool(auto))
}

// SetLightBrightness sets a light's brightness through its manual channel.
func (s *Switch) SetLightBrightness(ctx context.Context, id string, brightness int) error {
	ns, err := s.deviceOf(id, agent.KindLight)
	if err != nil {
		return err
	}
	if brightness < 0 || brightness > 100 {
		return fmt.Errorf("%w: brightness %d not in [0, 100]", ErrInvalidValue, brightness)
	}
	return s.send(ctx, diagnostic.EntityDevice, id, ns, "base/setpointManual", strconv.Itoa(brightness))
}

// SetBlindPosition moves one channel of a blind, or both when blindNumber
// is 0.
func (s *Switch) SetBlindPosition(ctx context.Context, id string, position, blindNumber int) error {
	ns, err := s.deviceOf(id, agent.KindBlind)
	if err != nil {
		return err
	}
	if !agent.ValidPosition(position) {
		return fmt.Errorf("%w: blind position %d", ErrInvalidValue, position)
	}
	channels, err := blindChannels(blindNumber)
	if err != nil {
		return err
	}
	for _, n := range channels {
		if err := s.send(ctx, diagnostic.EntityDevice, id, ns, "base/blind"+n+"Manual", strconv.Itoa(position)); err != nil {
			return err
		}
	}
	return nil
}

// SetBlindFin turns the fins of one channel of a blind, or both when
// blindNumber is 0.
func (s *Switch) SetBlindFin(ctx context.Context, id, fin string, blindNumber int) error {
	ns, err := s.deviceOf(id, agent.KindBlind)
	if err != nil {
		return err
	}
	if !agent.ValidFin(fin) {
		return fmt.Errorf("%w: fin orientation %q", ErrInvalidValue, fin)
	}
	channels, err := blindChannels(blindNumber)
	if err != nil {
		return err
	}
	for _, n := range channels {
		if err := s.send(ctx, diagnostic.EntityDevice, id, ns, "base/fin"+n+"Manual", fin); err != nil {
			return err
		}
	}
	return nil
}

// SetBlindWindow reports a window as open or closed to a blind.
func (s *Switch) SetBlindWindow(ctx context.Context, id string, open bool) error {
	ns, err := s.deviceOf(id, agent.KindBlind)
	if err != nil {
		return err
	}
	return s.send(ctx, diagnostic.EntityDevice, id, ns, "base/windowStatus", agent.FormatBool(open))
}

// SetSensorPresence simulates someone entering or leaving a sensor's range.
func (s *Switch) SetSensorPresence(ctx context.Context, id string, present bool) error {
	ns, err := s.deviceOf(id, agent.KindSensor)
	if err != nil {
		return err
	}
	return s.send(ctx, diagnostic.EntityDevice, id, ns, "base/presence", agent.FormatBool(present))
}

// SetSensorBrightness feeds a raw brightness reading to a sensor.
func (s *Switch) SetSensorBrightness(ctx context.Context, id string, raw int) error {
	ns, err := s.deviceOf(id, agent.KindSensor)
	if err != nil {
		return err
	}
	if raw < 0 {
		return fmt.Errorf("%w: brightness %d is negative", ErrInvalidValue, raw)
	}
	return s.send(ctx, diagnostic.EntityDevice, id, ns, "base/brightnessRaw", strconv.Itoa(raw))
}

// SetSensorTemperature feeds a raw temperature reading to a sensor.
func (s *Switch) SetSensorTemperature(ctx context.Context, id string, raw int) error {
	ns, err := s.deviceOf(id, agent.KindSensor)
	if err != nil {
		return err
	}
	return s.send(ctx, diagnostic.EntityDevice, id, ns, "base/temperatureRaw", strconv.Itoa(raw))
}

// SwitchGroupMode puts a group in Auto or Manual.
func (s *Switch) SwitchGroupMode(ctx context.Context, groupID int, auto bool) error {
	if _, err := s.group(groupID); err != nil {
		return err
	}
	return s.send(ctx, diagnostic.EntityGroup, groupEntity(groupID), topic.Group(groupID), topic.FieldAuto, agent.FormatBool(auto))
}

// SetGroupSetpoint sets a group's light setpoint. The group accepts it only
// in Manual.
func (s *Switch) SetGroupSetpoint(ctx context.Context, groupID, setpoint int) error {
	if _, err := s.group(groupID); err != nil {
		return err
	}
	if setpoint < 0 || setpoint > 100 {
		return fmt.Errorf("%w: setpoint %d not in [0, 100]", ErrInvalidValue, setpoint)
	}
	return s.send(ctx, diagnostic.EntityGroup, groupEntity(groupID), topic.Group(groupID), group.FieldSetpoint, strconv.Itoa(setpoint))
}

// SetGroupBlindPosition moves every blind of a group.
func (s *Switch) SetGroupBlindPosition(ctx context.Context, groupID, position int) error {
	if _, err := s.group(groupID); err != nil {
		return err
	}
	if !agent.ValidPosition(position) {
		return fmt.Errorf("%w: blind position %d", ErrInvalidValue, position)
	}
	return s.send(ctx, diagnostic.EntityGroup, groupEntity(groupID), topic.Group(groupID), group.FieldBlindPosition, strconv.Itoa(position))
}

func (s *Switch) deviceOf(id string, kind agent.Kind) (topic.Namespace, error) {
	node, err := s.device(id)
	if err != nil {
		return "", err
	}
	if k := node.Identity().Kind; k != kind {
		return "", fmt.Errorf("%w: %s is a %s, not a %s", ErrWrongKind, id, k, kind)
	}
	return node.Identity().Namespace(), nil
}

func (s *Switch) send(ctx context.Context, entityType, entityID string, ns topic.Namespace, field, payload string) error {
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()
	if session == nil {
		return ErrNotStarted
	}

	t := ns.Write(field)
	if err := session.Publish(t, []byte(payload)); err != nil {
		return fmt.Errorf("publishing %s: %w", t, err)
	}
	s.logger.Debug("command sent", "topic", t, "payload", payload)
	s.diag.Record(ctx, diagnostic.ActionCommand, entityType, entityID, map[string]any{
		"field":   field,
		"payload": payload,
	})
	return nil
}

func blindChannels(blindNumber int) ([]string, error) {
	switch blindNumber {
	case 0:
		return []string{"1", "2"}, nil
	case 1, 2:
		return []string{strconv.Itoa(blindNumber)}, nil
	default:
		return nil, fmt.Errorf("%w: blind number %d not in {0, 1, 2}", ErrInvalidValue, blindNumber)
	}
}
