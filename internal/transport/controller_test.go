package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgeflow/conductor/internal/controller"
	"github.com/edgeflow/conductor/internal/task"
)

type echoProcessor struct{ suffix string }

func (p echoProcessor) Process(ctx context.Context, stage *task.Stage, input any) (any, error) {
	s, _ := input.(string)
	return s + p.suffix, nil
}

func chainDAG() *task.DAG {
	return &task.DAG{
		Start: []string{"A"},
		Stages: map[string]*task.Stage{
			"A": {ID: "A", Succ: []string{"B"}, Service: task.Service{Name: "svc-a", Output: "x"}},
			"B": {ID: "B", Prev: []string{"A"}, Service: task.Service{Name: "svc-b", Input: "x"}},
		},
	}
}

func TestControllerRouter_ReceivesAndRunsPipeline(t *testing.T) {
	var terminal *task.Task
	var mu sync.Mutex

	c := controller.New(controller.Config{
		LocalDevice: "edge-1",
		Processors: map[string]controller.Processor{
			"svc-a": echoProcessor{suffix: "-a"},
			"svc-b": echoProcessor{suffix: "-b"},
		},
		Resolver: func(t *task.Task, stageID string) (string, error) { return "edge-1", nil },
		OnTerminal: func(ctx context.Context, t *task.Task) error {
			mu.Lock()
			defer mu.Unlock()
			terminal = t
			return nil
		},
	})

	r := NewControllerRouter(c, nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	tk := task.New(1, 1, chainDAG(), nil, nil, "", 0, task.PriorityCoefficients{})
	body, err := json.Marshal(tk)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/task", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, terminal)
	require.Equal(t, "-a-b", terminal.GetLastContent())
}
