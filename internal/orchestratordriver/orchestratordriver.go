// Package orchestratordriver defines the narrow collaborator interface
// used to apply, delete, and health-check the container workloads a
// scenario's generator/controller/processor/scheduler/distributor
// components run in. The concrete cluster-talking implementation
// (Kubernetes custom resources, docker-compose, …) is external to this
// module.
package orchestratordriver

import "context"

// Manifest is one set of workload definitions to apply as a unit (the
// "first stage" / "second stage" component groups a scenario installs
// together).
type Manifest struct {
	Namespace string
	Documents []map[string]any
}

// Driver applies, removes, and health-checks manifests against a backing
// container orchestrator.
type Driver interface {
	// Apply installs documents and returns once accepted; it does not
	// wait for workloads to become ready — call Healthy for that.
	Apply(ctx context.Context, m Manifest) error
	// Delete removes documents previously applied via Apply.
	Delete(ctx context.Context, m Manifest) error
	// Healthy reports whether every workload in namespace is running.
	Healthy(ctx context.Context, namespace string) (bool, error)
}
