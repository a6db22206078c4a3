// Package influxdb writes simulator telemetry to InfluxDB v2.
//
// Each agent and group snapshot becomes one point in the sim_snapshot
// measurement, tagged with the node kind and id:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSnapshot("led", "LED4K2Q9ZP0AB", map[string]any{"brightness": 40}, time.Now())
//
// The package is optional: with influxdb.enabled false Connect returns
// ErrDisabled and the simulator runs without telemetry.
package influxdb
