package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"scrapdeouf-engine/internal/credits"
	"scrapdeouf-engine/internal/events"
	"scrapdeouf-engine/internal/queue"
	"scrapdeouf-engine/internal/store"
)

type RunHandler struct {
	DB      *sql.DB
	Hub     *events.Hub
	Queue   *queue.Queue
	Execute func(ctx context.Context, jobID string) error
}

type runRequest struct {
	JobID  string `json:"job_id"`
	Inline bool   `json:"inline"`
}

// RunNow triggers a job immediately. Inline requests block until the
// run finishes and return the full payload; otherwise the run is
// detached and the caller follows progress over SSE.
func (h RunHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	job, err := store.GetJob(r.Context(), h.DB, req.JobID)
	if errors.Is(err, store.ErrJobNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no such job")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	if !req.Inline {
		// Detach from the request context; the run outlives it.
		go func() { _ = h.Execute(context.Background(), job.ID) }()
		WriteJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "accepted": true})
		return
	}

	if err := h.Execute(r.Context(), job.ID); err != nil {
		var qe *credits.QuotaError
		if errors.As(err, &qe) {
			WriteQuotaError(w, r, qe)
			return
		}
		var perm *queue.Permanent
		if errors.As(err, &perm) {
			WriteError(w, r, http.StatusBadRequest, "invalid_config", err.Error())
			return
		}
		WriteError(w, r, http.StatusBadGateway, "run_failed", err.Error())
		return
	}

	done, err := store.GetJob(r.Context(), h.DB, job.ID)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, toPayload(done))
}

type scheduleRequest struct {
	JobID string `json:"job_id"`
	RunAt string `json:"run_at"`
}

// Schedule registers a one-time delayed run. Rescheduling replaces the
// earlier request; the run key guarantees a single live queue entry.
func (h RunHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	runAt, err := time.Parse(time.RFC3339, req.RunAt)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_run_at", "run_at must be RFC3339")
		return
	}

	job, err := store.GetJob(r.Context(), h.DB, req.JobID)
	if errors.Is(err, store.ErrJobNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no such job")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	if err := h.Queue.Schedule(job.RunKey, job.ID, runAt); err != nil {
		if errors.Is(err, queue.ErrPastSchedule) {
			WriteError(w, r, http.StatusBadRequest, "past_schedule", err.Error())
			return
		}
		WriteError(w, r, http.StatusConflict, "schedule_conflict", err.Error())
		return
	}
	if err := store.SetJobSchedule(r.Context(), h.DB, job.ID, runAt); err != nil {
		h.Queue.Cancel(job.RunKey)
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	h.Hub.Publish(events.JobScheduled(RequestIDFrom(r.Context()), job.ID, runAt))
	writeJSON(w, map[string]any{"ok": true, "job_id": job.ID, "run_at": runAt.UTC().Format(time.RFC3339)})
}

type cancelRequest struct {
	JobID string `json:"job_id"`
}

func (h RunHandler) CancelSchedule(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	job, err := store.GetJob(r.Context(), h.DB, req.JobID)
	if errors.Is(err, store.ErrJobNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no such job")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	cancelled := h.Queue.Cancel(job.RunKey)
	if err := store.ClearJobSchedule(r.Context(), h.DB, job.ID); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	if cancelled {
		h.Hub.Publish(events.JobCancelled(RequestIDFrom(r.Context()), job.ID))
	}
	writeJSON(w, map[string]any{"ok": true, "job_id": job.ID, "cancelled": cancelled})
}
