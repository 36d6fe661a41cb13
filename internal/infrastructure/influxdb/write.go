package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteCallEvent writes one phone call event to the timeseries bucket.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Tags stay low-cardinality (event type only); the phone numbers go
// into fields.
//
// Parameters:
//   - eventType: ring, call, connect or disconnect
//   - caller: calling number, empty when the event carries none
//   - callee: called number, empty when the event carries none
//   - timestamp: the router-reported event time
//
// Example:
//
//	client.WriteCallEvent("ring", "0123456789", "987654", eventTime)
func (c *Client) WriteCallEvent(eventType, caller, callee string, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"count": 1,
	}
	if caller != "" {
		fields["caller"] = caller
	}
	if callee != "" {
		fields["callee"] = callee
	}

	point := write.NewPoint(
		"call_events",
		map[string]string{
			"event_type": eventType,
		},
		fields,
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteRouterMetric records one numeric reading about the router itself,
// such as uptime or transfer rates polled over TR-064.
//
// Example:
//
//	client.WriteRouterMetric("FRITZ!Box 7590", "uptime_seconds", 86400)
func (c *Client) WriteRouterMetric(model string, metric string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"router_metrics",
		map[string]string{
			"model":  model,
			"metric": metric,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
