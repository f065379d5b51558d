package httpapi

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"scrapdeouf-engine/internal/config"
)

type ConfigHandler struct {
	CfgVal      *atomic.Value // stores config.Config
	UserCfgPath string
	LoadCfg     func() (config.Config, error)
}

func (h ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cur := h.CfgVal.Load().(config.Config)
	writeJSON(w, cur)
}

// Put validates, saves and hot-reloads the engine config. Running jobs
// keep the settings they started with; new runs pick up the change.
func (h ConfigHandler) Put(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var incoming config.Config
	if err := dec.Decode(&incoming); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	normalized, vr := config.NormalizeAndValidate(incoming)
	if !vr.OK() {
		// Structured errors so the UI can show them per field.
		WriteJSON(w, http.StatusBadRequest, vr)
		return
	}

	if err := config.SaveAtomic(h.UserCfgPath, normalized); err != nil {
		WriteError(w, r, http.StatusBadRequest, "save_failed", err.Error())
		return
	}

	saved, err := h.LoadCfg()
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "reload_failed", "saved but reload failed: "+err.Error())
		return
	}
	h.CfgVal.Store(saved)
	writeJSON(w, saved)
}

func (h ConfigHandler) Validate(w http.ResponseWriter, r *http.Request) {
	cur := h.CfgVal.Load().(config.Config)
	_, vr := config.NormalizeAndValidate(cur)
	writeJSON(w, vr)
}
