package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgeflow/conductor/internal/backendstate"
	"github.com/edgeflow/conductor/internal/priority"
	"github.com/edgeflow/conductor/internal/task"
)

func newTestBackendDeps(t *testing.T) (BackendDeps, *httptest.Server) {
	t.Helper()
	registry := backendstate.New(
		[]backendstate.Policy{{PolicyID: "p1", PolicyName: "low-latency"}},
		backendstate.Topology{
			ServiceTopology: map[string][]string{"edge-1": {"svc-a"}},
			SourceList:      []int{1},
			PriorityLevels:  5,
			SystemParams:    map[string]any{"fps": 30},
		},
	)
	store := openTestStore(t)
	logPath := filepath.Join(t.TempDir(), "log.json")
	require.NoError(t, os.WriteFile(logPath, []byte(`{"ok":true}`), 0644))

	deps := BackendDeps{
		Registry:               registry,
		Results:                store,
		Queues:                 map[string]*priority.Queue{"edge-1": priority.NewQueue(5)},
		VisualizationConfigDir: t.TempDir(),
		LogFilePath:            logPath,
	}
	srv := httptest.NewServer(NewBackendRouter(deps, nil))
	t.Cleanup(srv.Close)
	return deps, srv
}

func TestBackendRouter_Policy(t *testing.T) {
	_, srv := newTestBackendDeps(t)
	resp, err := http.Get(srv.URL + "/policy")
	require.NoError(t, err)
	defer resp.Body.Close()
	var policies []backendstate.Policy
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&policies))
	require.Len(t, policies, 1)
	require.Equal(t, "p1", policies[0].PolicyID)
}

func TestBackendRouter_DAGCRUDValidates(t *testing.T) {
	_, srv := newTestBackendDeps(t)

	bad := task.DAG{
		Start: []string{"A"},
		Stages: map[string]*task.Stage{
			"A": {ID: "A", Succ: []string{"B"}, Service: task.Service{Output: "x"}},
			"B": {ID: "B", Prev: []string{"A"}, Service: task.Service{Input: "y"}},
		},
	}
	body, _ := json.Marshal(map[string]any{"dag_name": "bad", "dag": bad})
	resp, err := http.Post(srv.URL+"/dag", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	good := task.DAG{
		Start: []string{"A"},
		Stages: map[string]*task.Stage{
			"A": {ID: "A", Succ: []string{"B"}, Service: task.Service{Output: "x"}},
			"B": {ID: "B", Prev: []string{"A"}, Service: task.Service{Input: "x"}},
		},
	}
	body, _ = json.Marshal(map[string]any{"dag_name": "good", "dag": good})
	resp, err = http.Post(srv.URL+"/dag", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/dag")
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	resp.Body.Close()
	require.Contains(t, names, "good")

	delBody, _ := json.Marshal(map[string]string{"dag_id": "good"})
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/dag", bytes.NewReader(delBody))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBackendRouter_InstallUninstall(t *testing.T) {
	_, srv := newTestBackendDeps(t)

	body, _ := json.Marshal(map[string]any{
		"source_config_label": "cam-cfg",
		"policy_id":            "p1",
		"source":               []map[string]any{{"id": 1, "dag_selected": "good"}},
	})
	resp, err := http.Post(srv.URL+"/install", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/installed")
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	require.Equal(t, "install", out["state"])

	resp, err = http.Post(srv.URL+"/uninstall", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBackendRouter_QuerySubmitGatesTaskResult(t *testing.T) {
	deps, srv := newTestBackendDeps(t)
	tk := task.New(1, 1, &task.DAG{}, nil, nil, "", 0, task.PriorityCoefficients{})
	require.NoError(t, deps.Results.Save(context.Background(), tk))

	resp, err := http.Get(srv.URL + "/task_result")
	require.NoError(t, err)
	var closedOut map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&closedOut))
	resp.Body.Close()
	require.Empty(t, closedOut)

	body, _ := json.Marshal(map[string]string{"source_label": "cam-1"})
	resp, err = http.Post(srv.URL+"/query/submit", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/task_result")
	require.NoError(t, err)
	var openOut map[string][]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&openOut))
	resp.Body.Close()
	require.Contains(t, openOut, "1")

	resp, err = http.Post(srv.URL+"/query/stop", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
}

func TestBackendRouter_DatasourceUpload(t *testing.T) {
	_, srv := newTestBackendDeps(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "cam-1.yaml")
	require.NoError(t, err)
	_, err = part.Write([]byte("source_label: cam-1\nprotocol: http\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/datasource", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/datasource_state")
	require.NoError(t, err)
	var out map[string]map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	require.Contains(t, out, "cam-1")
}

func TestBackendRouter_PriorityInfoAndQueue(t *testing.T) {
	deps, srv := newTestBackendDeps(t)
	deps.Queues["edge-1"].Enqueue("svc-a", 0, task.New(1, 1, &task.DAG{}, nil, nil, "", 0, task.PriorityCoefficients{}))

	resp, err := http.Get(srv.URL + "/priority_info")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	resp.Body.Close()
	require.Equal(t, float64(5), info["priority_num"])

	resp, err = http.Get(srv.URL + "/priority_queue?node=edge-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/priority_queue?node=unknown")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestBackendRouter_VisualizationConfigRoundTrip(t *testing.T) {
	_, srv := newTestBackendDeps(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/visualization_config?source_id=1",
		bytes.NewReader([]byte("layout: grid\n")))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/visualization_config?source_id=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBackendRouter_LogDownload(t *testing.T) {
	_, srv := newTestBackendDeps(t)
	resp, err := http.Get(srv.URL + "/log")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
