package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/edgeflow/conductor/internal/backendstate"
)

func policyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "List the schedule policies the Backend knows about.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initialize(cmd); err != nil {
				return err
			}
			return runPolicy()
		},
	}
}

func runPolicy() error {
	var policies []backendstate.Policy
	if _, err := newAPIClient().R().SetResult(&policies).
		Get(backendBaseURL(appConfig.BackendAddr) + "/policy"); err != nil {
		return newCLIError(classifyHTTPErr(err), err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Policy ID", "Policy Name"})
	for _, p := range policies {
		t.AppendRow(table.Row{p.PolicyID, p.PolicyName})
	}
	t.Render()
	return nil
}

func sourceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "source-list",
		Short: "List the registered source IDs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initialize(cmd); err != nil {
				return err
			}
			return runSourceList()
		},
	}
}

func runSourceList() error {
	var sources []int
	if _, err := newAPIClient().R().SetResult(&sources).
		Get(backendBaseURL(appConfig.BackendAddr) + "/source_list"); err != nil {
		return newCLIError(classifyHTTPErr(err), err)
	}
	sort.Ints(sources)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source ID"})
	for _, id := range sources {
		t.AppendRow(table.Row{id})
	}
	t.Render()
	return nil
}

func priorityInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "priority-info",
		Short: "Show edge nodes, installed services and the priority-level count.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initialize(cmd); err != nil {
				return err
			}
			return runPriorityInfo()
		},
	}
}

func runPriorityInfo() error {
	var info struct {
		Nodes       []string            `json:"nodes"`
		Services    map[string][]string `json:"services"`
		PriorityNum int                 `json:"priority_num"`
	}
	if _, err := newAPIClient().R().SetResult(&info).
		Get(backendBaseURL(appConfig.BackendAddr) + "/priority_info"); err != nil {
		return newCLIError(classifyHTTPErr(err), err)
	}

	fmt.Printf("priority levels: %d\n", info.PriorityNum)
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Node", "Services"})
	for _, node := range info.Nodes {
		t.AppendRow(table.Row{node, info.Services[node]})
	}
	t.Render()
	return nil
}
