package events

import (
	"encoding/json"
	"time"
)

// Progress event types published by the orchestrator, scheduler and exporter.
// Consumers (CLI, GUI, log sink) subscribe to the hub; publishers never know
// who is listening.
const (
	TypeRunStarted      = "run_started"
	TypePageFetched     = "page_fetched"
	TypeRecordStored    = "record_stored"
	TypeRecordSkipped   = "record_skipped"
	TypeRunFinished     = "run_finished"
	TypeScheduleSkipped = "schedule_skipped"
	TypeExportDone      = "export_done"
)

type Event struct {
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Make serializes an event envelope. Marshal failures degrade to an empty
// data payload rather than dropping the event.
func Make(typ string, data any) string {
	var raw json.RawMessage
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			raw = b
		}
	}
	b, _ := json.Marshal(Event{Type: typ, At: time.Now().UTC(), Data: raw})
	return string(b)
}
