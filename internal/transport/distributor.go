package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/edgeflow/conductor/internal/distributor"
)

// resultRequest is the POST /result body: a polling cursor plus the
// requested batch size.
type resultRequest struct {
	TimeTicket float64 `json:"time_ticket"`
	Size       int     `json:"size"`
}

type resultResponse struct {
	Result     []json.RawMessage `json:"result"`
	TimeTicket float64           `json:"time_ticket"`
	Size       int               `json:"size"`
}

type fileRequest struct {
	File string `json:"file"`
}

// NewDistributorRouter builds the internal Distributor HTTP surface:
// incremental result polling, raw file streaming, a full dump, and a
// destructive clear.
func NewDistributorRouter(store *distributor.Store, fileBaseDir string, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	common(r, log)

	r.Post("/result", func(w http.ResponseWriter, req *http.Request) {
		var body resultRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		records, cursor, size, err := store.QuerySince(req.Context(), body.TimeTicket, body.Size)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		payloads := make([]json.RawMessage, len(records))
		for i, rec := range records {
			payloads[i] = rec.Payload
		}
		writeJSON(w, http.StatusOK, resultResponse{Result: payloads, TimeTicket: cursor, Size: size})
	})

	r.Get("/all_result", func(w http.ResponseWriter, req *http.Request) {
		records, err := store.QueryAll(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		payloads := make([]json.RawMessage, len(records))
		for i, rec := range records {
			payloads[i] = rec.Payload
		}
		writeJSON(w, http.StatusOK, resultResponse{Result: payloads, Size: len(payloads)})
	})

	r.Post("/clear", func(w http.ResponseWriter, req *http.Request) {
		if err := store.Clear(req.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeOK(w, "cleared")
	})

	r.Get("/file", func(w http.ResponseWriter, req *http.Request) {
		var body fileRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		path, err := resolveUnderBase(fileBaseDir, body.File)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		http.ServeFile(w, req, path)
	})

	return r
}

// resolveUnderBase joins base and name, rejecting any path that escapes
// base (e.g. via "../"), since /file serves caller-chosen filenames.
func resolveUnderBase(base, name string) (string, error) {
	joined := filepath.Join(base, name)
	rel, err := filepath.Rel(base, joined)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", errors.New("transport: file path escapes base directory")
	}
	return joined, nil
}
