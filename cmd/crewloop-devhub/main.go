// crewloop-devhub is a self-contained hub for local development: it serves
// the REST fixtures and the realtime WebSocket endpoint with a scripted
// team of personas chatting, changing status, and moving tasks, so the
// workspace client can be exercised without a real backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func main() {
	addr := flag.String("addr", ":8787", "listen address")
	project := flag.String("project", "demo", "fixture project id")
	interval := flag.Duration("interval", 3*time.Second, "delay between scripted events")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	hub := newDevHub(*project, logger)

	mux := chi.NewRouter()
	mux.Use(chimw.Recoverer)
	mux.Use(chimw.RealIP)

	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	mux.Get("/ws/client", hub.handleWS)

	mux.Get("/api/projects/{projectID}/channels", hub.handleListChannels)
	mux.Get("/api/projects/{projectID}/agents", hub.handleListAgents)
	mux.Get("/api/projects/{projectID}/tasks", hub.handleListTasks)
	mux.Get("/api/channels/{channelID}/messages", hub.handleListMessages)
	mux.Post("/api/channels/{channelID}/messages", hub.handlePostMessage)

	go hub.runScript(context.Background(), *interval)

	logger.Info("devhub listening", "addr", *addr, "project", *project)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
