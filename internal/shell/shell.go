// Package shell wires the realtime hub, the view-state stores, and the
// REST client into one explicitly constructed composition root. The shell
// owns the single Controller instance for the whole process; nothing in
// this repository holds connection state in a package-level variable.
package shell

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crewloop-ai/crewloop/internal/api"
	"github.com/crewloop-ai/crewloop/internal/realtime"
	"github.com/crewloop-ai/crewloop/internal/store"
	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

const resyncTimeout = 30 * time.Second

// Workspace is the client-side state of one open project: connection,
// caches, and subscription bookkeeping.
type Workspace struct {
	hub       *realtime.Controller
	client    api.Hub
	logger    *slog.Logger
	projectID string

	Messages *store.Messages
	Agents   *store.Agents
	Tasks    *store.Tasks
	Channels *store.Channels

	mu       sync.Mutex
	started  bool
	removals []func()          // registered dispatcher handlers
	open     map[string]int    // channel id → open view count
	releases map[string]func() // channel id → topic release
}

// New assembles a workspace around an existing controller and REST client.
// The caller keeps ownership of the controller's lifetime.
func New(hub *realtime.Controller, client api.Hub, projectID string, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		hub:       hub,
		client:    client,
		logger:    logger.With("component", "workspace"),
		projectID: projectID,
		Messages:  store.NewMessages(),
		Agents:    store.NewAgents(),
		Tasks:     store.NewTasks(),
		Channels:  store.NewChannels(),
		open:      make(map[string]int),
		releases:  make(map[string]func()),
	}
}

// Start binds the store handlers to the event dispatcher, subscribes to the
// project topic, and opens the connection. Idempotent.
func (w *Workspace) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true

	w.removals = append(w.removals,
		w.hub.OnEvent(w.Messages.Apply),
		w.hub.OnEvent(w.Agents.Apply),
		w.hub.OnEvent(w.Tasks.Apply),
		w.hub.OnEvent(w.Channels.Apply),
		w.hub.OnEvent(w.onEvent),
		w.hub.Subscribe(protocol.TopicProject, w.projectID),
	)
	w.mu.Unlock()

	w.hub.Start()
}

// Stop closes the connection and unbinds all handlers.
func (w *Workspace) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	removals := w.removals
	w.removals = nil
	w.mu.Unlock()

	w.hub.Stop()
	for _, remove := range removals {
		remove()
	}
}

// Hub exposes the realtime controller for state and event observation.
func (w *Workspace) Hub() *realtime.Controller { return w.hub }

// ProjectID returns the open project.
func (w *Workspace) ProjectID() string { return w.projectID }

// OpenChannel subscribes to a channel's realtime topic and backfills its
// history. The returned close function is idempotent; the underlying topic
// subscription is released when the last open view of the channel closes.
func (w *Workspace) OpenChannel(channelID string) func() {
	w.mu.Lock()
	w.open[channelID]++
	if w.open[channelID] == 1 {
		w.releases[channelID] = w.hub.Subscribe(protocol.TopicChannel, channelID)
	}
	w.mu.Unlock()

	go w.backfillChannel(channelID)

	var once sync.Once
	return func() {
		once.Do(func() { w.closeChannel(channelID) })
	}
}

func (w *Workspace) closeChannel(channelID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, ok := w.open[channelID]
	if !ok {
		return
	}
	n--
	if n > 0 {
		w.open[channelID] = n
		return
	}
	delete(w.open, channelID)
	if release := w.releases[channelID]; release != nil {
		release()
	}
	delete(w.releases, channelID)
}

// SendMessage posts a message through the REST layer. The hub echoes it
// back as a message:new event; applying the response here just makes it
// visible before the echo arrives, and the echo is a no-op by idempotence.
func (w *Workspace) SendMessage(ctx context.Context, channelID, content string) error {
	msg, err := w.client.PostMessage(ctx, channelID, content)
	if err != nil {
		return err
	}
	w.Messages.Merge(channelID, []protocol.Message{msg})
	return nil
}

// onEvent watches for connection-level events. A "connected" event means
// the realtime stream restarted: anything that happened during the
// disconnect window was never delivered, so pull fresh snapshots and merge
// them under the stores' newer-wins rule.
func (w *Workspace) onEvent(ev protocol.Event) {
	if ev.Kind != protocol.KindConnected {
		return
	}
	go w.resync()
}

func (w *Workspace) resync() {
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()

	asOf := time.Now()

	if roster, err := w.client.ListAgents(ctx, w.projectID); err != nil {
		w.logger.Warn("agent resync failed", "error", err)
	} else {
		w.Agents.Merge(w.projectID, roster, asOf)
	}

	if tasks, err := w.client.ListTasks(ctx, w.projectID); err != nil {
		w.logger.Warn("task resync failed", "error", err)
	} else {
		w.Tasks.Merge(w.projectID, tasks)
	}

	if channels, err := w.client.ListChannels(ctx, w.projectID); err != nil {
		w.logger.Warn("channel resync failed", "error", err)
	} else {
		w.Channels.Merge(w.projectID, channels)
	}

	w.mu.Lock()
	openChannels := make([]string, 0, len(w.open))
	for id := range w.open {
		openChannels = append(openChannels, id)
	}
	w.mu.Unlock()

	for _, id := range openChannels {
		w.backfillChannel(id)
	}
}

func (w *Workspace) backfillChannel(channelID string) {
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()

	msgs, err := w.client.ListMessages(ctx, channelID)
	if err != nil {
		w.logger.Warn("message backfill failed", "channel", channelID, "error", err)
		return
	}
	w.Messages.Merge(channelID, msgs)
}
