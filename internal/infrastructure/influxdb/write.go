package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementSnapshot is the measurement every node snapshot is written to.
const MeasurementSnapshot = "sim_snapshot"

// NewSnapshotPoint builds the point for one node snapshot. Tags identify
// the node; fields are the numeric and boolean snapshot values.
func NewSnapshotPoint(kind, id string, fields map[string]any, at time.Time) *write.Point {
	return write.NewPoint(MeasurementSnapshot,
		map[string]string{"kind": kind, "node_id": id},
		fields,
		at,
	)
}

// WriteSnapshot queues one node snapshot.
func (c *Client) WriteSnapshot(kind, id string, fields map[string]any, at time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(NewSnapshotPoint(kind, id, fields, at))
}
