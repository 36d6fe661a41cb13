// Package influxdb provides InfluxDB connectivity for fritzcore.
//
// It wraps the official influxdb-client-go v2 library with fritzcore
// patterns for connection management, metric writing, and health
// monitoring.
//
// # Purpose
//
// This package handles time-series storage for:
//   - Phone call events from the router's call monitor
//   - Router metrics polled over TR-064 (uptime, transfer rates)
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "home",
//	    Bucket: "fritzcore",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteCallEvent("ring", "0123456789", "987654", time.Now())
//
// # Write semantics
//
// Writes are non-blocking and batched by the underlying client. Errors
// surface asynchronously through SetOnError; a lost InfluxDB never
// blocks the call event pipeline.
package influxdb
