// Package telemetry forwards every agent and group snapshot on the bus to a
// time-series store.
package telemetry

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-sim/internal/bus"
	"github.com/nerrad567/gray-logic-sim/internal/topic"
)

// MetricWriter receives flattened snapshots. *influxdb.Client implements it.
type MetricWriter interface {
	WriteSnapshot(kind, id string, fields map[string]any, at time.Time)
}

// Logger is the logging interface used by Recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Recorder subscribes to all snapshots and writes their numeric and boolean
// fields. String fields and member lists are skipped.
type Recorder struct {
	session bus.Session
	writer  MetricWriter
	logger  Logger
	now     func() time.Time

	mu       sync.Mutex
	recorded int
}

// NewRecorder creates a recorder that owns session.
func NewRecorder(session bus.Session, writer MetricWriter, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{session: session, writer: writer, logger: logger, now: time.Now}
}

// Start subscribes to every snapshot topic.
func (r *Recorder) Start() error {
	if err := r.session.Subscribe(topic.AllSnapshots(), r.handle); err != nil {
		return fmt.Errorf("subscribing to snapshots: %w", err)
	}
	return nil
}

// Stop closes the recorder's session.
func (r *Recorder) Stop() error {
	return r.session.Close()
}

// Recorded returns how many snapshots were written.
func (r *Recorder) Recorded() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorded
}

func (r *Recorder) handle(t string, payload []byte) error {
	addr, err := topic.Parse(t)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		r.logger.Warn("skipping undecodable snapshot", "topic", t, "error", err)
		return nil
	}

	fields := Flatten(doc)
	if len(fields) == 0 {
		return nil
	}
	r.writer.WriteSnapshot(addr.Kind, addr.ID, fields, r.now())

	r.mu.Lock()
	r.recorded++
	r.mu.Unlock()
	return nil
}

// Flatten keeps the numeric and boolean values of a decoded snapshot.
// Nested objects are inlined with an underscore-joined key:
// {"fusion": {"presence": true}} becomes {"fusion_presence": true}.
func Flatten(doc map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", doc)
	return out
}

func flattenInto(out map[string]any, prefix string, doc map[string]any) {
	for k, v := range doc {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		switch val := v.(type) {
		case float64, bool:
			out[key] = val
		case map[string]any:
			flattenInto(out, key, val)
		}
	}
}
