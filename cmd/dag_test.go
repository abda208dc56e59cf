package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validDAGYAML = `
stages:
  A:
    id: A
    succ: ["B"]
    service:
      name: svc-a
      output: x
  B:
    id: B
    prev: ["A"]
    service:
      name: svc-b
      input: x
_start: ["A"]
`

const mismatchedDAGYAML = `
stages:
  A:
    id: A
    succ: ["B"]
    service:
      name: svc-a
      output: x
  B:
    id: B
    prev: ["A"]
    service:
      name: svc-b
      input: y
_start: ["A"]
`

func writeTempDAG(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunDagValidate_AcceptsCompatibleChain(t *testing.T) {
	require.NoError(t, runDagValidate(writeTempDAG(t, validDAGYAML)))
}

func TestRunDagValidate_RejectsOutputInputMismatch(t *testing.T) {
	err := runDagValidate(writeTempDAG(t, mismatchedDAGYAML))
	require.Error(t, err)
	require.Equal(t, exitValidation, exitCode(err))
}

func TestRunDagValidate_RejectsMissingFile(t *testing.T) {
	err := runDagValidate(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Equal(t, exitValidation, exitCode(err))
}
