package influxdb

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(context.Background(), config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, config.InfluxDBConfig{Enabled: true, URL: "http://127.0.0.1:1", Org: "o", Bucket: "b"})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	c.WriteSnapshot("led", "X", map[string]any{"brightness": 1}, time.Now())
	c.Flush()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
}

func TestNewSnapshotPoint(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	p := NewSnapshotPoint("sensor", "SENSOR000001", map[string]any{"presence": true, "temperature": int64(21)}, at)

	line := p.Name()
	if line != MeasurementSnapshot {
		t.Errorf("Name() = %q", line)
	}
	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["kind"] != "sensor" || tags["node_id"] != "SENSOR000001" {
		t.Errorf("tags = %v", tags)
	}
	if len(p.FieldList()) != 2 || !p.Time().Equal(at) {
		t.Errorf("fields = %d, time = %v", len(p.FieldList()), p.Time())
	}
}

func TestWriteSnapshot_Live(t *testing.T) {
	url := os.Getenv("GRAYLOGIC_SIM_TEST_INFLUXDB_URL")
	if url == "" {
		t.Skip("GRAYLOGIC_SIM_TEST_INFLUXDB_URL not set")
	}
	c, err := Connect(context.Background(), config.InfluxDBConfig{
		Enabled: true, URL: url, Token: os.Getenv("GRAYLOGIC_SIM_TEST_INFLUXDB_TOKEN"),
		Org: "graylogic", Bucket: "metrics", FlushInterval: 1,
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	var failures []string
	c.SetOnError(func(err error) { failures = append(failures, err.Error()) })
	c.WriteSnapshot("led", "LEDTEST00001", map[string]any{"brightness": int64(40)}, time.Now())
	c.Flush()
	if len(failures) > 0 {
		t.Errorf("write errors: %s", strings.Join(failures, "; "))
	}
}
