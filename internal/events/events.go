package events

import (
	"encoding/json"
	"time"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func Make(reqID, typ string, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   1,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}

// Job lifecycle events pushed over SSE so the UI tracks runs live.

func JobCreated(reqID, jobID string) string {
	return Make(reqID, "job_created", map[string]any{"id": jobID})
}

func JobScheduled(reqID, jobID string, runAt time.Time) string {
	return Make(reqID, "job_scheduled", map[string]any{"id": jobID, "run_at": runAt.UTC().Format(time.RFC3339)})
}

func JobCancelled(reqID, jobID string) string {
	return Make(reqID, "job_cancelled", map[string]any{"id": jobID})
}

func JobRunning(jobID string) string {
	return Make("", "job_running", map[string]any{"id": jobID})
}

func JobCompleted(jobID string, count, creditsUsed int) string {
	return Make("", "job_completed", map[string]any{"id": jobID, "count": count, "credits_used": creditsUsed})
}

func JobError(jobID, message string) string {
	return Make("", "job_error", map[string]any{"id": jobID, "error": message})
}
