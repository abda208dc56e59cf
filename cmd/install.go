package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edgeflow/conductor/internal/backendstate"
	"github.com/edgeflow/conductor/internal/transport"
)

func installCmd() *cobra.Command {
	var (
		policyID    string
		sourceLabel string
		sources     []string
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install a schedule policy and the DAG each source runs under it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initialize(cmd); err != nil {
				return err
			}
			installs, err := parseSourceInstalls(sources)
			if err != nil {
				return newCLIError(exitValidation, err)
			}
			return runInstall(policyID, sourceLabel, installs)
		},
	}

	cmd.Flags().StringVar(&policyID, "policy", "", "policy_id to install (required)")
	cmd.Flags().StringVar(&sourceLabel, "source-label", "", "installed datasource config label")
	cmd.Flags().StringArrayVar(&sources, "source", nil,
		"source_id=dag_name pair; repeatable")
	_ = cmd.MarkFlagRequired("policy")

	return cmd
}

func uninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Tear down the currently installed policy.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initialize(cmd); err != nil {
				return err
			}
			return runUninstall()
		},
	}
}

func parseSourceInstalls(raw []string) ([]backendstate.SourceInstall, error) {
	out := make([]backendstate.SourceInstall, 0, len(raw))
	for _, s := range raw {
		id, dag, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("--source %q: expected source_id=dag_name", s)
		}
		sourceID, err := strconv.Atoi(id)
		if err != nil {
			return nil, fmt.Errorf("--source %q: source_id must be an integer: %w", s, err)
		}
		out = append(out, backendstate.SourceInstall{ID: sourceID, DAGSelected: dag})
	}
	return out, nil
}

func runInstall(policyID, sourceLabel string, sources []backendstate.SourceInstall) error {
	body := map[string]any{
		"policy_id":           policyID,
		"source_config_label": sourceLabel,
		"source":              sources,
	}
	var out transport.Envelope
	resp, err := newAPIClient().R().
		SetBody(body).
		SetResult(&out).
		Post(backendBaseURL(appConfig.BackendAddr) + "/install")
	if err != nil {
		return newCLIError(classifyHTTPErr(err), err)
	}
	if resp.IsError() {
		return newCLIError(exitOrchestrator, fmt.Errorf("install: %s", out.Msg))
	}
	fmt.Println(out.Msg)
	return nil
}

func runUninstall() error {
	var out transport.Envelope
	resp, err := newAPIClient().R().
		SetResult(&out).
		Post(backendBaseURL(appConfig.BackendAddr) + "/uninstall")
	if err != nil {
		return newCLIError(classifyHTTPErr(err), err)
	}
	if resp.IsError() {
		return newCLIError(exitOrchestrator, fmt.Errorf("uninstall: %s", out.Msg))
	}
	fmt.Println(out.Msg)
	return nil
}
