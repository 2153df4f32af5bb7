package shell

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/crewloop-ai/crewloop/internal/realtime"
	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

// fakeConn is a scriptable realtime.Conn.
type fakeConn struct {
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	writes []protocol.Control
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var ctl protocol.Control
	if err := json.Unmarshal(data, &ctl); err != nil {
		return err
	}
	c.mu.Lock()
	c.writes = append(c.writes, ctl)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) deliver(t *testing.T, ev protocol.Event) {
	t.Helper()
	frame, err := protocol.EncodeEvent(ev)
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}
	c.frames <- frame
}

func (c *fakeConn) controls() []protocol.Control {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Control, len(c.writes))
	copy(out, c.writes)
	return out
}

// fakeHub serves fixture snapshots in place of the REST layer.
type fakeHub struct {
	mu       sync.Mutex
	agents   []protocol.AgentStatus
	tasks    []protocol.Task
	channels []protocol.Channel
	messages map[string][]protocol.Message
	posted   []protocol.Message
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		agents: []protocol.AgentStatus{
			{AgentID: "ag-dev", Name: "Devlin", Role: "developer", Status: "idle"},
		},
		tasks: []protocol.Task{
			{ID: "t1", Title: "Ship it", Status: "todo", UpdatedAt: time.Now()},
		},
		channels: []protocol.Channel{
			{ID: "c1", Name: "general"},
		},
		messages: map[string][]protocol.Message{
			"c1": {{ID: "m0", ChannelID: "c1", AuthorID: "ag-dev", Content: "welcome", CreatedAt: time.Now().Add(-time.Hour)}},
		},
	}
}

func (f *fakeHub) ListChannels(_ context.Context, _ string) ([]protocol.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Channel(nil), f.channels...), nil
}

func (f *fakeHub) ListMessages(_ context.Context, channelID string) ([]protocol.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Message(nil), f.messages[channelID]...), nil
}

func (f *fakeHub) ListAgents(_ context.Context, _ string) ([]protocol.AgentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.AgentStatus(nil), f.agents...), nil
}

func (f *fakeHub) ListTasks(_ context.Context, _ string) ([]protocol.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Task(nil), f.tasks...), nil
}

func (f *fakeHub) PostMessage(_ context.Context, channelID, content string) (protocol.Message, error) {
	msg := protocol.Message{ID: "posted-1", ChannelID: channelID, AuthorID: "you", Content: content, CreatedAt: time.Now()}
	f.mu.Lock()
	f.posted = append(f.posted, msg)
	f.mu.Unlock()
	return msg, nil
}

func newTestWorkspace(t *testing.T) (*Workspace, *fakeConn, *fakeHub) {
	t.Helper()

	conn := newFakeConn()
	hub := realtime.NewController(realtime.Options{
		URL: "ws://hub.test/ws/client",
		Dialer: func(ctx context.Context, _ string) (realtime.Conn, error) {
			return conn, nil
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	rest := newFakeHub()
	ws := New(hub, rest, "p1", slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(ws.Stop)
	return ws, conn, rest
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestEndToEndMessageFlow(t *testing.T) {
	ws, conn, _ := newTestWorkspace(t)

	ws.Start()
	waitFor(t, func() bool { return ws.Hub().State() == realtime.StateConnected })

	// The project topic is subscribed as part of startup.
	waitFor(t, func() bool {
		for _, ctl := range conn.controls() {
			if ctl.Action == protocol.ActionSubscribeProject && ctl.ID == "p1" {
				return true
			}
		}
		return false
	})

	release := ws.OpenChannel("c1")
	defer release()

	// Backfill from the REST fixture.
	waitFor(t, func() bool { return len(ws.Messages.Channel("c1")) == 1 })

	ev := protocol.Event{
		Kind:      protocol.KindMessageNew,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ChannelID: "c1",
		Payload:   &protocol.Message{ID: "m1", ChannelID: "c1", Content: "hi"},
	}
	conn.deliver(t, ev)

	waitFor(t, func() bool { return len(ws.Messages.Channel("c1")) == 2 })

	// Duplicate delivery is a no-op.
	conn.deliver(t, ev)
	time.Sleep(30 * time.Millisecond)

	msgs := ws.Messages.Channel("c1")
	if len(msgs) != 2 {
		t.Fatalf("channel has %d messages, want 2", len(msgs))
	}
	found := false
	for _, m := range msgs {
		if m.ID == "m1" && m.Content == "hi" {
			found = true
		}
	}
	if !found {
		t.Fatalf("m1 not in channel: %+v", msgs)
	}
}

func TestConnectedEventTriggersResync(t *testing.T) {
	ws, conn, _ := newTestWorkspace(t)

	ws.Start()
	waitFor(t, func() bool { return ws.Hub().State() == realtime.StateConnected })

	conn.deliver(t, protocol.Event{Kind: protocol.KindConnected, Timestamp: time.Now()})

	waitFor(t, func() bool { return len(ws.Channels.Project("p1")) == 1 })
	waitFor(t, func() bool { return len(ws.Agents.Project("p1")) == 1 })
	waitFor(t, func() bool { return len(ws.Tasks.Project("p1")) == 1 })

	if got := ws.Agents.Project("p1")[0]; got.Name != "Devlin" || got.Status != "idle" {
		t.Errorf("agent = %+v", got)
	}
}

func TestResyncMergesWithNewerEventState(t *testing.T) {
	ws, conn, _ := newTestWorkspace(t)

	ws.Start()
	waitFor(t, func() bool { return ws.Hub().State() == realtime.StateConnected })

	// A status event newer than any snapshot the fake hub will return.
	conn.deliver(t, protocol.Event{
		Kind:      protocol.KindAgentStatus,
		Timestamp: time.Now().Add(time.Hour),
		ProjectID: "p1",
		Payload:   &protocol.AgentStatus{AgentID: "ag-dev", Status: "working"},
	})
	waitFor(t, func() bool {
		agents := ws.Agents.Project("p1")
		return len(agents) == 1 && agents[0].Status == "working"
	})

	conn.deliver(t, protocol.Event{Kind: protocol.KindConnected, Timestamp: time.Now()})
	waitFor(t, func() bool { return len(ws.Tasks.Project("p1")) == 1 })

	// The snapshot's "idle" must not clobber the newer event.
	if got := ws.Agents.Project("p1")[0].Status; got != "working" {
		t.Errorf("status = %q, want working", got)
	}
}

func TestOpenChannelRefCounted(t *testing.T) {
	ws, conn, _ := newTestWorkspace(t)

	ws.Start()
	waitFor(t, func() bool { return ws.Hub().State() == realtime.StateConnected })

	rel1 := ws.OpenChannel("c1")
	rel2 := ws.OpenChannel("c1")

	subCount := func() int {
		n := 0
		for _, ctl := range conn.controls() {
			if ctl.Action == protocol.ActionSubscribeChannel && ctl.ID == "c1" {
				n++
			}
		}
		return n
	}
	unsubCount := func() int {
		n := 0
		for _, ctl := range conn.controls() {
			if ctl.Action == protocol.ActionUnsubscribeChannel && ctl.ID == "c1" {
				n++
			}
		}
		return n
	}

	waitFor(t, func() bool { return subCount() == 1 })

	rel1()
	rel1() // idempotent
	time.Sleep(20 * time.Millisecond)
	if unsubCount() != 0 {
		t.Fatal("unsubscribed while a view was still open")
	}

	rel2()
	waitFor(t, func() bool { return unsubCount() == 1 })
}

func TestSendMessageAppliesLocally(t *testing.T) {
	ws, _, rest := newTestWorkspace(t)

	ws.Start()
	waitFor(t, func() bool { return ws.Hub().State() == realtime.StateConnected })

	if err := ws.SendMessage(context.Background(), "c1", "shipping now"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	rest.mu.Lock()
	posted := len(rest.posted)
	rest.mu.Unlock()
	if posted != 1 {
		t.Fatalf("posted %d messages, want 1", posted)
	}

	msgs := ws.Messages.Channel("c1")
	if len(msgs) != 1 || msgs[0].Content != "shipping now" {
		t.Fatalf("messages = %+v", msgs)
	}
}
