package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/edgeflow/conductor/internal/task"
)

func dagCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dag",
		Short: "Inspect and validate DAG templates.",
	}
	root.AddCommand(dagValidateCmd())
	return root
}

func dagValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check that a DAG template file is acyclic and I/O-compatible stage to stage.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initialize(cmd); err != nil {
				return err
			}
			return runDagValidate(args[0])
		},
	}
}

func runDagValidate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newCLIError(exitValidation, fmt.Errorf("read %q: %w", path, err))
	}

	var dag task.DAG
	if err := yaml.Unmarshal(data, &dag); err != nil {
		return newCLIError(exitValidation, fmt.Errorf("parse %q: %w", path, err))
	}

	if err := task.CheckDAG(&dag); err != nil {
		return newCLIError(exitValidation, fmt.Errorf("%q is invalid: %w", path, err))
	}

	fmt.Printf("%s: ok (%d stages)\n", path, len(dag.Stages))
	return nil
}
