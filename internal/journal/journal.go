// Package journal records phone call events into the local SQLite
// database and mirrors them to the optional MQTT and InfluxDB sinks.
//
// The journal consumes the line stream produced by the call monitor.
// Lines are parsed into structured events but the raw line is always
// stored too, so a parser gap never loses data.
package journal

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/hausnet/fritzcore/internal/fritzerr"
	"github.com/hausnet/fritzcore/internal/infrastructure/database"
	"github.com/hausnet/fritzcore/internal/infrastructure/influxdb"
	"github.com/hausnet/fritzcore/internal/infrastructure/logging"
	"github.com/hausnet/fritzcore/internal/infrastructure/mqtt"
)

// eventTimeLayout is the timestamp format on the monitor port, e.g.
// "28.08.26 10:12:23".
const eventTimeLayout = "02.01.06 15:04:05"

// Event is one parsed call monitor line.
type Event struct {
	ID        int64
	Timestamp time.Time
	Type      string
	// ConnectionID groups the RING/CALL, CONNECT and DISCONNECT lines of
	// one call.
	ConnectionID int
	Caller       string
	Callee       string
	// Extension is the local line handling the call; only CALL and
	// CONNECT events carry it.
	Extension string
	// Duration is the call length in seconds; only DISCONNECT carries it.
	Duration int
	Raw      string
}

// ParseEvent decodes one semicolon-delimited monitor line.
//
// The four layouts are:
//
//	ts;RING;connID;caller;callee;device;
//	ts;CALL;connID;extension;caller;callee;device;
//	ts;CONNECT;connID;extension;number;
//	ts;DISCONNECT;connID;duration;
func ParseEvent(line string) (*Event, error) {
	fields := strings.Split(line, ";")
	if len(fields) < 3 {
		return nil, fritzerr.New(fritzerr.KindInternal, "malformed call event %q", line)
	}

	timestamp, err := time.ParseInLocation(eventTimeLayout, fields[0], time.Local)
	if err != nil {
		return nil, fritzerr.Wrap(fritzerr.KindInternal, err, "parsing call event timestamp")
	}
	connectionID, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fritzerr.Wrap(fritzerr.KindInternal, err, "parsing call event connection id")
	}

	event := &Event{
		Timestamp:    timestamp,
		Type:         strings.ToUpper(fields[1]),
		ConnectionID: connectionID,
		Raw:          line,
	}

	switch event.Type {
	case "RING":
		if len(fields) < 5 {
			return nil, fritzerr.New(fritzerr.KindInternal, "malformed RING event %q", line)
		}
		event.Caller = fields[3]
		event.Callee = fields[4]
	case "CALL":
		if len(fields) < 6 {
			return nil, fritzerr.New(fritzerr.KindInternal, "malformed CALL event %q", line)
		}
		event.Extension = fields[3]
		event.Caller = fields[4]
		event.Callee = fields[5]
	case "CONNECT":
		if len(fields) < 5 {
			return nil, fritzerr.New(fritzerr.KindInternal, "malformed CONNECT event %q", line)
		}
		event.Extension = fields[3]
		event.Caller = fields[4]
	case "DISCONNECT":
		if len(fields) < 4 {
			return nil, fritzerr.New(fritzerr.KindInternal, "malformed DISCONNECT event %q", line)
		}
		event.Duration, _ = strconv.Atoi(fields[3])
	default:
		return nil, fritzerr.New(fritzerr.KindInternal, "unknown call event type %q", fields[1])
	}
	return event, nil
}

// Recorder drains a call event stream into the database and the
// configured sinks. The MQTT and InfluxDB sinks are optional; a nil
// client disables the corresponding mirror.
type Recorder struct {
	db     *database.DB
	mirror *mqtt.Client
	sink   *influxdb.Client
	logger *logging.Logger
}

// NewRecorder wires a recorder onto its sinks.
func NewRecorder(db *database.DB, mirror *mqtt.Client, sink *influxdb.Client, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{
		db:     db,
		mirror: mirror,
		sink:   sink,
		logger: logger.With("component", "journal"),
	}
}

// Run consumes the event channel until it closes or the context is
// cancelled. A failing sink is logged and skipped; the stream keeps
// flowing.
func (r *Recorder) Run(ctx context.Context, events <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-events:
			if !ok {
				return
			}
			r.Record(ctx, line)
		}
	}
}

// Record stores one raw monitor line and mirrors it.
func (r *Recorder) Record(ctx context.Context, line string) {
	event, err := ParseEvent(line)
	if err != nil {
		// Keep the unparseable line anyway.
		r.logger.Warn("unparseable call event", "line", line, "error", err)
		event = &Event{Timestamp: time.Now(), Type: "UNKNOWN", Raw: line}
	}

	if err := r.insert(ctx, event); err != nil {
		r.logger.Error("writing call event to journal", "error", err)
	}
	r.publish(event)
}

func (r *Recorder) insert(ctx context.Context, event *Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO call_events (received_at, event_type, connection_id, caller, callee, extension, duration, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Timestamp.UTC().Format(time.RFC3339),
		event.Type,
		event.ConnectionID,
		event.Caller,
		event.Callee,
		event.Extension,
		event.Duration,
		event.Raw,
	)
	return err
}

func (r *Recorder) publish(event *Event) {
	if r.mirror != nil {
		payload, err := json.Marshal(event)
		if err == nil {
			topic := r.mirror.Topics().CallEvent(strings.ToLower(event.Type))
			if err := r.mirror.Publish(topic, payload, 1, false); err != nil {
				r.logger.Warn("mirroring call event to mqtt", "error", err)
			}
		}
	}
	if r.sink != nil {
		r.sink.WriteCallEvent(strings.ToLower(event.Type), event.Caller, event.Callee, event.Timestamp)
	}
}

// Recent returns the newest events, most recent first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, received_at, event_type, connection_id, caller, callee, extension, duration, raw
		FROM call_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fritzerr.Wrap(fritzerr.KindInternal, err, "querying call events")
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var receivedAt string
		if err := rows.Scan(&event.ID, &receivedAt, &event.Type, &event.ConnectionID,
			&event.Caller, &event.Callee, &event.Extension, &event.Duration, &event.Raw); err != nil {
			return nil, fritzerr.Wrap(fritzerr.KindInternal, err, "scanning call event")
		}
		event.Timestamp, _ = time.Parse(time.RFC3339, receivedAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fritzerr.Wrap(fritzerr.KindInternal, err, "iterating call events")
	}
	return events, nil
}
