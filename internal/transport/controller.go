package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edgeflow/conductor/internal/controller"
	"github.com/edgeflow/conductor/internal/task"
)

// NewControllerRouter builds the node-to-node Controller HTTP surface:
// the single endpoint a peer's forward() call lands on. The body is the
// Task itself (not wrapped), matching controller.go's forward(), which
// posts the Task directly via resty's SetBody.
func NewControllerRouter(c *controller.Controller, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	common(r, log)

	r.Post("/task", func(w http.ResponseWriter, req *http.Request) {
		var tk task.Task
		if err := json.NewDecoder(req.Body).Decode(&tk); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := c.Receive(req.Context(), &tk); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeOK(w, "received")
	})

	return r
}
