package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edgeflow/conductor/internal/controlplane"
	"github.com/edgeflow/conductor/internal/task"
)

type scenarioRequest struct {
	Data task.Task `json:"data"`
}

// NewSchedulerRouter builds the internal Scheduler HTTP surface: the
// scenario feed a Controller posts a finished task's observed delay to,
// and the resource snapshot the control plane keeps from /system_parameters-
// style updates.
func NewSchedulerRouter(cp *controlplane.ControlPlane, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	common(r, log)

	r.Post("/scenario", func(w http.ResponseWriter, req *http.Request) {
		var body scenarioRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		cp.RegisterSource(body.Data.SourceID)
		delay := body.Data.ComputeDuration("total").Seconds()
		cp.UpdateScenario(body.Data.SourceID, delay)
		writeOK(w, "scenario recorded")
	})

	r.Get("/resource", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, cp.ResourceSnapshot())
	})

	return r
}
