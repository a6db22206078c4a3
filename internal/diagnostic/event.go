package diagnostic

import (
	"context"
	"time"
)

// Actions recorded by the simulator.
const (
	ActionPlug         = "plug"
	ActionUnplug       = "unplug"
	ActionConfigure    = "configure"
	ActionCreateGroup  = "create_group"
	ActionAddMember    = "add_member"
	ActionRemoveMember = "remove_member"
	ActionUpdateRule   = "update_rule"
	ActionCommand      = "command"
)

// Entity types.
const (
	EntityDevice = "device"
	EntityGroup  = "group"
)

// Event is one entry in the diagnostics log.
type Event struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter selects events. Empty fields match everything.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	Limit      int // default 50, max 200
	Offset     int
}

// Page is one page of events, newest first.
type Page struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Repository stores diagnostic events.
type Repository interface {
	Create(ctx context.Context, e *Event) error
	List(ctx context.Context, f Filter) (*Page, error)
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

func (f Filter) normalised() Filter {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	f.Limit = min(f.Limit, maxLimit)
	f.Offset = max(f.Offset, 0)
	return f
}
