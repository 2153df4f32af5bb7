package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/crewloop-ai/crewloop/internal/api"
	"github.com/crewloop-ai/crewloop/internal/config"
	"github.com/crewloop-ai/crewloop/internal/realtime"
	"github.com/crewloop-ai/crewloop/internal/shell"
	workspaceui "github.com/crewloop-ai/crewloop/internal/tui/workspace"
)

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open the project workspace",
		RunE:  runOpen,
	}
}

func runOpen(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	projectID, _ := cmd.Flags().GetString("project")
	if projectID == "" {
		projectID = cfg.Workspace.ProjectID
	}
	if projectID == "" {
		return fmt.Errorf("no project id: set workspace.project_id or pass --project")
	}

	logger := newLogger(cfg.Workspace.LogLevel)

	endpoint, err := realtime.EndpointURL(cfg.Hub.URL)
	if err != nil {
		return err
	}

	hub := realtime.NewController(realtime.Options{
		URL:              endpoint,
		ReconnectBase:    cfg.Hub.ReconnectBase.Duration,
		MaxReconnectWait: cfg.Hub.MaxReconnectWait.Duration,
		MaxAttempts:      cfg.Hub.MaxReconnectAttempts,
		TLSSkipVerify:    cfg.Hub.TLSSkipVerify,
		Logger:           logger,
	})

	ws := shell.New(hub, api.NewClient(cfg.Hub.URL), projectID, logger)
	return workspaceui.Run(ws)
}

// newLogger writes JSON logs to a file rather than stdout, which belongs
// to the TUI.
func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	f, err := os.OpenFile("crewloop.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	}
	return slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: logLevel}))
}
