package task

import "errors"

// Error kinds shared across the control plane. Callers can test for them
// with errors.Is; the HTTP handlers do not, and answer with a fixed
// status for each endpoint.
var (
	// ErrValidation covers a bad DAG (cycle, type mismatch, unknown node),
	// malformed input, or an unknown source/policy id.
	ErrValidation = errors.New("validation error")

	// ErrNotAChain is returned by ExtractPipeline when the DAG is not a
	// simple chain (some stage has in-degree or out-degree > 1, excluding
	// the synthetic start set).
	ErrNotAChain = errors.New("dag is not a chain")

	// ErrDuplicateRecord names a (source_id, task_id) pair that already
	// exists in the distributor store. The store's Save does not return it:
	// it logs the duplicate, keeps the existing row and returns nil.
	ErrDuplicateRecord = errors.New("duplicate record")

	// ErrCycle indicates the DAG submitted for validation contains a cycle.
	ErrCycle = errors.New("dag contains a cycle")

	// ErrTypeMismatch indicates an edge (parent, child) where
	// parent.Service.Output != child.Service.Input.
	ErrTypeMismatch = errors.New("service input/output type mismatch")

	// ErrUnknownService indicates a stage names a successor stage id that
	// is not defined in the DAG.
	ErrUnknownService = errors.New("unknown service")
)
