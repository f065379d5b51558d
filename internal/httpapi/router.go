package httpapi

import (
	"net/http"
	"time"
)

type Handlers struct {
	Jobs   JobsHandler
	Runs   RunHandler
	Config ConfigHandler
	Events EventsHandler
}

func Routes(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true, "time": time.Now().UTC().Format(time.RFC3339)})
	})

	mux.HandleFunc("/jobs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  h.Jobs.List,
		http.MethodPost: h.Jobs.Create,
	}))
	mux.HandleFunc("/jobs/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: h.Jobs.GetByPath,
	}))
	mux.HandleFunc("/jobs/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: h.Runs.RunNow,
	}))
	mux.HandleFunc("/jobs/schedule", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: h.Runs.Schedule,
	}))
	mux.HandleFunc("/jobs/cancel", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: h.Runs.CancelSchedule,
	}))

	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: h.Config.Get,
		http.MethodPut: h.Config.Put,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: h.Config.Validate,
	}))

	mux.HandleFunc("/events", h.Events.Stream)
	return mux
}
