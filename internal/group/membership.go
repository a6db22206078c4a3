package group

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-sim/internal/agent"
	"github.com/nerrad567/gray-logic-sim/internal/bus"
	"github.com/nerrad567/gray-logic-sim/internal/topic"
)

// Unassigned is the group id of a device that belongs to no group.
const Unassigned = 0

// Member is a non-owning reference to a device in a group.
type Member struct {
	ID        string          `json:"id"`
	Kind      agent.Kind      `json:"kind"`
	Namespace topic.Namespace `json:"topic"`
}

// MemberOf builds the reference for a device identity.
func MemberOf(id agent.Identity) Member {
	return Member{ID: id.ID, Kind: id.Kind, Namespace: id.Namespace()}
}

// SnapshotTopic is the topic the group subscribes to for this member.
func (m Member) SnapshotTopic() string {
	return m.Namespace.Read(topic.FieldSnapshot)
}

// Add puts m in the group. The returned messages assign the device to the
// group and switch it to Auto. Adding a present member changes nothing and
// returns false.
func (c *Controller) Add(m Member) (bool, []bus.Message, error) {
	set, ok := c.members[m.Kind]
	if !ok {
		return false, nil, fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
	if _, present := set[m.ID]; present {
		return false, nil, nil
	}
	set[m.ID] = m
	c.logger.Info("member added", "group_id", c.id, "device_id", m.ID, "kind", m.Kind)

	return true, []bus.Message{
		{Topic: m.Namespace.Write(topic.FieldGroup), Payload: []byte(strconv.Itoa(c.id))},
		{Topic: m.Namespace.Write(topic.FieldAuto), Payload: []byte(agent.FormatBool(true))},
	}, nil
}

// Remove takes the device out of the group. The returned messages unassign
// it and switch it to Manual. Removing an absent member returns false.
func (c *Controller) Remove(id string) (Member, bool, []bus.Message) {
	for kind, set := range c.members {
		m, ok := set[id]
		if !ok {
			continue
		}
		delete(set, id)
		if kind == agent.KindSensor {
			delete(c.readings, id)
			c.fuse()
		}
		c.logger.Info("member removed", "group_id", c.id, "device_id", id, "kind", kind)

		return m, true, []bus.Message{
			{Topic: m.Namespace.Write(topic.FieldGroup), Payload: []byte(strconv.Itoa(Unassigned))},
			{Topic: m.Namespace.Write(topic.FieldAuto), Payload: []byte(agent.FormatBool(false))},
		}
	}
	return Member{}, false, nil
}

// HasMember reports whether a device id belongs to the group.
func (c *Controller) HasMember(id string) bool {
	for _, set := range c.members {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// Members returns the members of one kind ordered by id.
func (c *Controller) Members(kind agent.Kind) []Member {
	return c.sorted(kind)
}

func (c *Controller) sorted(kind agent.Kind) []Member {
	set := c.members[kind]
	out := make([]Member, 0, len(set))
	for _, m := range set {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Member) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func memberIDs(ms []Member) []string {
	ids := make([]string, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
	}
	return ids
}
