// Package cmd defines the crewloop CLI.
package cmd

import (
	"github.com/spf13/cobra"
)

var version = "dev"

// NewRootCmd creates the root cobra command for crewloop. Bare invocation
// opens the workspace.
func NewRootCmd(v string) *cobra.Command {
	version = v

	root := &cobra.Command{
		Use:   "crewloop",
		Short: "Crewloop — terminal workspace for your AI team",
		Long:  "Crewloop connects to a hub, joins a project, and opens a live workspace: chat channels, agent roster, and task board kept current over one realtime connection.",
		RunE:  runOpen,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newOpenCmd())
	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringP("config", "c", "crewloop.json", "path to config file")
	root.PersistentFlags().String("project", "", "project id (overrides config)")

	return root
}
