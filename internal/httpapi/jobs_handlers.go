package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"scrapdeouf-engine/internal/domain"
	"scrapdeouf-engine/internal/events"
	"scrapdeouf-engine/internal/store"
)

// DefaultAccountID is used when a request does not name an account. The
// engine is local-first; multi-account requests are for hosted setups.
const DefaultAccountID = "local"

type JobsHandler struct {
	DB       *sql.DB
	Hub      *events.Hub
	Accounts store.Accounts
}

type createJobRequest struct {
	AccountID string                       `json:"account_id"`
	Template  string                       `json:"template"`
	Map       *domain.MapSearchConfig      `json:"map,omitempty"`
	Commerce  *domain.CommerceSearchConfig `json:"commerce,omitempty"`
}

// jobPayload is the wire shape of a job: the job row plus its result
// records inlined as raw JSON.
type jobPayload struct {
	*domain.ExtractionJob
	Records json.RawMessage `json:"records"`
}

func toPayload(j *domain.ExtractionJob) jobPayload {
	records := j.ResultJSON
	if records == "" {
		records = "[]"
	}
	return jobPayload{ExtractionJob: j, Records: json.RawMessage(records)}
}

// Create registers a draft job. Nothing runs until a run-now or
// schedule request arrives.
func (h JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	tmpl, err := domain.ParseTemplate(req.Template)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_template", err.Error())
		return
	}

	accountID := strings.TrimSpace(req.AccountID)
	if accountID == "" {
		accountID = DefaultAccountID
	}

	id := uuid.NewString()
	job := &domain.ExtractionJob{
		ID:        id,
		AccountID: accountID,
		Template:  tmpl,
		Status:    domain.StatusDraft,
		Map:       req.Map,
		Commerce:  req.Commerce,
		RunKey:    "run:" + id,
		CreatedAt: time.Now().UTC(),
	}
	if err := job.Validate(); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_config", err.Error())
		return
	}

	if err := h.Accounts.EnsureAccount(r.Context(), accountID); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if err := store.CreateJob(r.Context(), h.DB, job); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	h.Hub.Publish(events.JobCreated(RequestIDFrom(r.Context()), job.ID))
	WriteJSON(w, http.StatusCreated, toPayload(job))
}

func (h JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	accountID := q.Get("account_id")
	if accountID == "" {
		accountID = DefaultAccountID
	}

	jobs, err := store.ListJobs(r.Context(), h.DB, accountID, 500)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	out := make([]jobPayload, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toPayload(j))
	}
	writeJSON(w, out)
}

func (h JobsHandler) GetByPath(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, r, http.StatusBadRequest, "invalid_id", "invalid job id")
		return
	}

	job, err := store.GetJob(r.Context(), h.DB, id)
	if errors.Is(err, store.ErrJobNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no such job")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, toPayload(job))
}
