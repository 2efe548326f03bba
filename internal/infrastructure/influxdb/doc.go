// Package influxdb records inventory events as time series.
//
// Every identification attempt, light command and motion report becomes a
// point, so operators can chart scan hit rates and light activity per rack
// over time. The relational store keeps the authoritative history; these
// points are best effort and dropped when InfluxDB is disabled or down.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without time series
//	}
//	client.RecordScan(device.ID, device.GroupID, "code", true)
package influxdb
