package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-yaml"

	"github.com/edgeflow/conductor/internal/backendstate"
	"github.com/edgeflow/conductor/internal/distributor"
	"github.com/edgeflow/conductor/internal/priority"
	"github.com/edgeflow/conductor/internal/task"
)

// BackendDeps bundles everything the operator-facing Backend router reads
// from or writes to.
type BackendDeps struct {
	Registry *backendstate.Registry
	Results  *distributor.Store
	// Queues holds one priority.Queue per node, keyed by node name, for
	// GET /priority_queue?node=<n>.
	Queues map[string]*priority.Queue

	// VisualizationConfigDir holds one YAML file per source id, written
	// by POST /visualization_config and read back by the matching GET.
	VisualizationConfigDir string
	LogFilePath            string
}

type dagRequest struct {
	DAGName string   `json:"dag_name"`
	DAG     task.DAG `json:"dag"`
}

type dagDeleteRequest struct {
	DAGID string `json:"dag_id"`
}

type datasourceDeleteRequest struct {
	SourceLabel string `json:"source_label"`
}

type installRequest struct {
	SourceConfigLabel string                       `json:"source_config_label"`
	PolicyID          string                       `json:"policy_id"`
	Source            []backendstate.SourceInstall `json:"source"`
}

type querySubmitRequest struct {
	SourceLabel string `json:"source_label"`
}

// NewBackendRouter builds the operator-facing Backend HTTP surface listed
// in spec.md §6.
func NewBackendRouter(deps BackendDeps, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	common(r, log)

	r.Get("/policy", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, deps.Registry.Policies())
	})

	r.Get("/services", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, deps.Registry.Services())
	})

	r.Get("/edge_nodes", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, deps.Registry.EdgeNodes())
	})

	r.Get("/source_list", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, deps.Registry.SourceList())
	})

	r.Get("/system_parameters", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, deps.Registry.SystemParameters())
	})

	r.Get("/installed", func(w http.ResponseWriter, req *http.Request) {
		state, sources := deps.Registry.InstallState()
		writeJSON(w, http.StatusOK, map[string]any{"state": state, "source": sources})
	})

	r.Get("/install_state", func(w http.ResponseWriter, req *http.Request) {
		state, _ := deps.Registry.InstallState()
		writeJSON(w, http.StatusOK, map[string]any{"state": state})
	})

	r.Get("/query_state", func(w http.ResponseWriter, req *http.Request) {
		state, label := deps.Registry.QueryState()
		writeJSON(w, http.StatusOK, map[string]any{"state": state, "source_label": label})
	})

	r.Get("/datasource_state", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, deps.Registry.Datasources())
	})

	r.Get("/dag", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, deps.Registry.DAGNames())
	})

	r.Post("/dag", func(w http.ResponseWriter, req *http.Request) {
		var body dagRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := deps.Registry.UpsertDAG(body.DAGName, &body.DAG); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeOK(w, "dag accepted")
	})

	r.Delete("/dag", func(w http.ResponseWriter, req *http.Request) {
		var body dagDeleteRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		deps.Registry.DeleteDAG(body.DAGID)
		writeOK(w, "dag removed")
	})

	r.Post("/datasource", func(w http.ResponseWriter, req *http.Request) {
		file, header, err := req.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		defer file.Close()

		raw, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var cfg map[string]any
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("parse datasource yaml: %w", err))
			return
		}
		label := sourceLabelFromFilename(header.Filename)
		if l, ok := cfg["source_label"].(string); ok && l != "" {
			label = l
		}
		deps.Registry.UpsertDatasource(label, cfg)
		writeOK(w, "datasource registered")
	})

	r.Delete("/datasource", func(w http.ResponseWriter, req *http.Request) {
		var body datasourceDeleteRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		deps.Registry.DeleteDatasource(body.SourceLabel)
		writeOK(w, "datasource removed")
	})

	r.Post("/install", func(w http.ResponseWriter, req *http.Request) {
		var body installRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		deps.Registry.Install(body.PolicyID, body.Source)
		writeOK(w, "installed")
	})

	r.Post("/uninstall", func(w http.ResponseWriter, req *http.Request) {
		deps.Registry.Uninstall()
		writeOK(w, "uninstalled")
	})

	r.Post("/query/submit", func(w http.ResponseWriter, req *http.Request) {
		var body querySubmitRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if state, _ := deps.Registry.QueryState(); state == backendstate.QueryStateOpen {
			writeError(w, http.StatusConflict, fmt.Errorf("a result stream is already open"))
			return
		}
		deps.Registry.OpenQuery(body.SourceLabel)
		writeOK(w, "query opened")
	})

	r.Post("/query/stop", func(w http.ResponseWriter, req *http.Request) {
		deps.Registry.CloseQuery()
		writeOK(w, "query closed")
	})

	r.Get("/task_result", func(w http.ResponseWriter, req *http.Request) {
		state, _ := deps.Registry.QueryState()
		if state != backendstate.QueryStateOpen {
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		records, err := deps.Results.QueryAll(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		const recentLimit = 20
		if len(records) > recentLimit {
			records = records[len(records)-recentLimit:]
		}
		bySource := make(map[int][]json.RawMessage)
		for _, rec := range records {
			bySource[rec.SourceID] = append(bySource[rec.SourceID], rec.Payload)
		}
		writeJSON(w, http.StatusOK, bySource)
	})

	r.Get("/event_result", func(w http.ResponseWriter, req *http.Request) {
		state, _ := deps.Registry.QueryState()
		if state != backendstate.QueryStateOpen {
			writeJSON(w, http.StatusOK, []backendstate.Event{})
			return
		}
		writeJSON(w, http.StatusOK, deps.Registry.DrainUnreadEvents())
	})

	r.Get("/event_detail", func(w http.ResponseWriter, req *http.Request) {
		state, _ := deps.Registry.QueryState()
		if state != backendstate.QueryStateOpen {
			writeJSON(w, http.StatusOK, []backendstate.Event{})
			return
		}
		writeJSON(w, http.StatusOK, deps.Registry.DrainAllEvents())
	})

	r.Get("/priority_info", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"nodes":        deps.Registry.EdgeNodes(),
			"services":     deps.Registry.Services(),
			"priority_num": deps.Registry.PriorityLevels(),
		})
	})

	r.Get("/priority_queue", func(w http.ResponseWriter, req *http.Request) {
		node := req.URL.Query().Get("node")
		q, ok := deps.Queues[node]
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("unknown node %q", node))
			return
		}
		writeJSON(w, http.StatusOK, q.Snapshot(time.Now(), 0, 0))
	})

	r.Get("/log", func(w http.ResponseWriter, req *http.Request) {
		if deps.LogFilePath == "" {
			writeError(w, http.StatusNotFound, fmt.Errorf("no log file configured"))
			return
		}
		http.ServeFile(w, req, deps.LogFilePath)
	})

	r.Get("/visualization_config", func(w http.ResponseWriter, req *http.Request) {
		sourceID := req.URL.Query().Get("source_id")
		path, err := visualizationConfigPath(deps.VisualizationConfigDir, sourceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		http.ServeFile(w, req, path)
	})

	r.Post("/visualization_config", func(w http.ResponseWriter, req *http.Request) {
		sourceID := req.URL.Query().Get("source_id")
		path, err := visualizationConfigPath(deps.VisualizationConfigDir, sourceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var probe map[string]any
		if err := yaml.Unmarshal(raw, &probe); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("parse visualization config yaml: %w", err))
			return
		}
		if err := os.MkdirAll(deps.VisualizationConfigDir, 0755); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if err := os.WriteFile(path, raw, 0644); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeOK(w, "visualization config stored")
	})

	return r
}

func sourceLabelFromFilename(filename string) string {
	base := filepath.Base(filename)
	return base[:len(base)-len(filepath.Ext(base))]
}

func visualizationConfigPath(dir, sourceID string) (string, error) {
	if sourceID == "" {
		return "", fmt.Errorf("source_id is required")
	}
	return filepath.Join(dir, sourceID+".yaml"), nil
}
