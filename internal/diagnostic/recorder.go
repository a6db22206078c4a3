package diagnostic

import (
	"context"
	"time"
)

// Logger is the logging interface used by Recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

const writeTimeout = 2 * time.Second

// Recorder writes events without failing the operation that produced them.
// A nil Recorder or one without a repository records nothing.
type Recorder struct {
	repo   Repository
	source string
	logger Logger
}

// NewRecorder creates a recorder tagging every event with source.
func NewRecorder(repo Repository, source string, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{repo: repo, source: source, logger: logger}
}

// Record stores one event. Storage errors are logged, not returned.
func (r *Recorder) Record(ctx context.Context, action, entityType, entityID string, details map[string]any) {
	if r == nil || r.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	e := &Event{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Source:     r.source,
		Details:    details,
	}
	if err := r.repo.Create(ctx, e); err != nil {
		r.logger.Warn("recording diagnostic event", "action", action, "entity_id", entityID, "error", err)
	}
}

// Recent returns the newest events.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Event, error) {
	if r == nil || r.repo == nil {
		return []Event{}, nil
	}
	page, err := r.repo.List(ctx, Filter{Limit: limit})
	if err != nil {
		return nil, err
	}
	return page.Events, nil
}
