package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Local development tool; accept any origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// devHub holds the fixture workspace and the connected clients.
type devHub struct {
	projectID string
	logger    *slog.Logger

	mu       sync.Mutex
	channels []protocol.Channel
	agents   []protocol.AgentStatus
	tasks    []protocol.Task
	messages map[string][]protocol.Message // channel id → messages
	clients  map[string]*client            // conn id → client
	step     int
}

type client struct {
	id     string
	conn   *websocket.Conn
	mu     sync.Mutex // serializes writes
	topics map[string]bool
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func newDevHub(projectID string, logger *slog.Logger) *devHub {
	h := &devHub{
		projectID: projectID,
		logger:    logger.With("component", "devhub"),
		messages:  make(map[string][]protocol.Message),
		clients:   make(map[string]*client),
	}

	h.channels = []protocol.Channel{
		{ID: "ch-general", ProjectID: projectID, Name: "general"},
		{ID: "ch-standup", ProjectID: projectID, Name: "standup"},
	}
	h.agents = []protocol.AgentStatus{
		{AgentID: "ag-dev", ProjectID: projectID, Name: "Devlin", Role: "developer", Status: "idle"},
		{AgentID: "ag-qa", ProjectID: projectID, Name: "Quinn", Role: "qa", Status: "idle"},
		{AgentID: "ag-pm", ProjectID: projectID, Name: "Parker", Role: "pm", Status: "idle"},
	}
	h.tasks = []protocol.Task{
		{ID: "t-1", ProjectID: projectID, Title: "Scaffold the service", Status: "todo", AssigneeID: "ag-dev", UpdatedAt: time.Now()},
		{ID: "t-2", ProjectID: projectID, Title: "Write the test plan", Status: "todo", AssigneeID: "ag-qa", UpdatedAt: time.Now()},
	}
	return h
}

// --- WebSocket side ---

func (h *devHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}

	c := &client{
		id:     uuid.NewString(),
		conn:   conn,
		topics: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Info("client connected", "conn", c.id)

	frame, _ := protocol.EncodeEvent(protocol.Event{
		Kind:      protocol.KindConnected,
		Timestamp: time.Now(),
	})
	c.mu.Lock()
	c.conn.WriteMessage(websocket.TextMessage, frame)
	c.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
		conn.Close()
		h.logger.Info("client disconnected", "conn", c.id)
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var ctl protocol.Control
		if err := json.Unmarshal(msg, &ctl); err != nil {
			h.logger.Warn("invalid control frame", "conn", c.id, "error", err)
			continue
		}
		h.handleControl(c, ctl)
	}
}

func (h *devHub) handleControl(c *client, ctl protocol.Control) {
	var topic string
	subscribe := false
	switch ctl.Action {
	case protocol.ActionSubscribeProject:
		topic, subscribe = "project:"+ctl.ID, true
	case protocol.ActionUnsubscribeProject:
		topic = "project:" + ctl.ID
	case protocol.ActionSubscribeChannel:
		topic, subscribe = "channel:"+ctl.ID, true
	case protocol.ActionUnsubscribeChannel:
		topic = "channel:" + ctl.ID
	default:
		h.logger.Warn("unknown action", "action", ctl.Action)
		return
	}

	h.mu.Lock()
	if subscribe {
		c.topics[topic] = true
	} else {
		delete(c.topics, topic)
	}
	h.mu.Unlock()
	h.logger.Debug("subscription changed", "conn", c.id, "topic", topic, "subscribed", subscribe)
}

// broadcast sends an event to every client subscribed to its topic.
func (h *devHub) broadcast(ev protocol.Event) {
	frame, err := protocol.EncodeEvent(ev)
	if err != nil {
		h.logger.Error("encode event", "error", err)
		return
	}

	topic := ""
	switch {
	case ev.ChannelID != "":
		topic = "channel:" + ev.ChannelID
	case ev.ProjectID != "":
		topic = "project:" + ev.ProjectID
	}

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		if topic == "" || c.topics[topic] {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.mu.Lock()
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.logger.Warn("broadcast failed", "conn", c.id, "error", err)
		}
		c.mu.Unlock()
	}
}

// runScript drives the fixture team until ctx is canceled: personas cycle
// through statuses, post standup messages, and move tasks across the board.
func (h *devHub) runScript(ctx context.Context, interval time.Duration) {
	statuses := []string{"thinking", "working", "idle"}
	lines := []string{
		"Picking up the next task now.",
		"Tests are green on my branch.",
		"I pushed a draft, review when you can.",
		"Blocked on the API contract, anyone?",
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		h.mu.Lock()
		step := h.step
		h.step++
		agent := h.agents[step%len(h.agents)]
		agent.Status = statuses[step%len(statuses)]
		h.agents[step%len(h.agents)] = agent

		msg := protocol.Message{
			ID:        uuid.NewString(),
			ChannelID: h.channels[step%len(h.channels)].ID,
			AuthorID:  agent.AgentID,
			Content:   lines[step%len(lines)],
			CreatedAt: time.Now(),
		}
		h.messages[msg.ChannelID] = append(h.messages[msg.ChannelID], msg)

		task := h.tasks[step%len(h.tasks)]
		task.Status = nextColumn(task.Status)
		task.UpdatedAt = time.Now()
		h.tasks[step%len(h.tasks)] = task
		h.mu.Unlock()

		now := time.Now()
		h.broadcast(protocol.Event{
			Kind: protocol.KindAgentStatus, Timestamp: now,
			ProjectID: h.projectID, Payload: &agent,
		})
		h.broadcast(protocol.Event{
			Kind: protocol.KindMessageNew, Timestamp: now,
			ChannelID: msg.ChannelID, Payload: &msg,
		})
		h.broadcast(protocol.Event{
			Kind: protocol.KindTaskUpdate, Timestamp: now,
			ProjectID: h.projectID, Payload: &task,
		})
	}
}

func nextColumn(status string) string {
	switch status {
	case "todo":
		return "in_progress"
	case "in_progress":
		return "review"
	case "review":
		return "done"
	default:
		return "todo"
	}
}

// --- REST side ---

func (h *devHub) handleListChannels(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	out := append([]protocol.Channel(nil), h.channels...)
	h.mu.Unlock()
	writeJSON(w, out)
}

func (h *devHub) handleListAgents(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	out := append([]protocol.AgentStatus(nil), h.agents...)
	h.mu.Unlock()
	writeJSON(w, out)
}

func (h *devHub) handleListTasks(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	out := append([]protocol.Task(nil), h.tasks...)
	h.mu.Unlock()
	writeJSON(w, out)
}

func (h *devHub) handleListMessages(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	h.mu.Lock()
	out := append([]protocol.Message(nil), h.messages[channelID]...)
	h.mu.Unlock()
	writeJSON(w, out)
}

func (h *devHub) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")

	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Content == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	msg := protocol.Message{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		AuthorID:  "you",
		Content:   body.Content,
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	h.messages[channelID] = append(h.messages[channelID], msg)
	h.mu.Unlock()

	// Echo to realtime subscribers, like the production hub does.
	h.broadcast(protocol.Event{
		Kind:      protocol.KindMessageNew,
		Timestamp: msg.CreatedAt,
		ChannelID: channelID,
		Payload:   &msg,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(msg)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
