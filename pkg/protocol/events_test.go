package protocol

import (
	"testing"
	"time"
)

func TestDecodeMessageEvent(t *testing.T) {
	frame := []byte(`{
		"type": "message:new",
		"data": {"id": "m1", "channel_id": "c1", "author_id": "ag-dev", "content": "hi"},
		"timestamp": "2024-01-01T00:00:00Z",
		"channelId": "c1"
	}`)

	ev, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}

	if ev.Kind != KindMessageNew {
		t.Errorf("kind = %q, want message:new", ev.Kind)
	}
	if ev.ChannelID != "c1" {
		t.Errorf("channel hint = %q, want c1", ev.ChannelID)
	}
	if want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); !ev.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", ev.Timestamp, want)
	}

	msg, ok := ev.Payload.(*Message)
	if !ok {
		t.Fatalf("payload = %T, want *Message", ev.Payload)
	}
	if msg.ID != "m1" || msg.ChannelID != "c1" || msg.Content != "hi" {
		t.Errorf("payload = %+v", msg)
	}
}

func TestDecodePayloadKinds(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, ev Event)
	}{
		{
			name:  "agent status",
			frame: `{"type":"agent:status","data":{"agent_id":"ag-qa","status":"working"},"timestamp":"2024-01-01T00:00:00Z","projectId":"p1"}`,
			check: func(t *testing.T, ev Event) {
				st, ok := ev.Payload.(*AgentStatus)
				if !ok {
					t.Fatalf("payload = %T", ev.Payload)
				}
				if st.AgentID != "ag-qa" || st.Status != "working" {
					t.Errorf("payload = %+v", st)
				}
			},
		},
		{
			name:  "agent typing",
			frame: `{"type":"agent:typing","data":{"agent_id":"ag-qa","typing":true},"timestamp":"2024-01-01T00:00:00Z"}`,
			check: func(t *testing.T, ev Event) {
				ty, ok := ev.Payload.(*AgentTyping)
				if !ok {
					t.Fatalf("payload = %T", ev.Payload)
				}
				if !ty.Typing {
					t.Error("typing = false, want true")
				}
			},
		},
		{
			name:  "task update",
			frame: `{"type":"task:update","data":{"id":"t1","title":"Ship it","status":"review"},"timestamp":"2024-01-01T00:00:00Z"}`,
			check: func(t *testing.T, ev Event) {
				task, ok := ev.Payload.(*Task)
				if !ok {
					t.Fatalf("payload = %T", ev.Payload)
				}
				if task.Status != "review" {
					t.Errorf("status = %q", task.Status)
				}
			},
		},
		{
			name:  "channel new",
			frame: `{"type":"channel:new","data":{"id":"c2","name":"bugs"},"timestamp":"2024-01-01T00:00:00Z"}`,
			check: func(t *testing.T, ev Event) {
				ch, ok := ev.Payload.(*Channel)
				if !ok {
					t.Fatalf("payload = %T", ev.Payload)
				}
				if ch.Name != "bugs" {
					t.Errorf("name = %q", ch.Name)
				}
			},
		},
		{
			name:  "connected has no payload",
			frame: `{"type":"connected","timestamp":"2024-01-01T00:00:00Z"}`,
			check: func(t *testing.T, ev Event) {
				if ev.Payload != nil {
					t.Errorf("payload = %+v, want nil", ev.Payload)
				}
			},
		},
		{
			name:  "error",
			frame: `{"type":"error","data":{"message":"nope"},"timestamp":"2024-01-01T00:00:00Z"}`,
			check: func(t *testing.T, ev Event) {
				info, ok := ev.Payload.(*ErrorInfo)
				if !ok {
					t.Fatalf("payload = %T", ev.Payload)
				}
				if info.Message != "nope" {
					t.Errorf("message = %q", info.Message)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tt.frame))
			if err != nil {
				t.Fatalf("DecodeEvent: %v", err)
			}
			tt.check(t, ev)
		})
	}
}

func TestDecodeUnknownKindPreserved(t *testing.T) {
	frame := []byte(`{"type":"files:generated","data":{"path":"main.go"},"timestamp":"2024-01-01T00:00:00Z"}`)

	ev, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Kind.Known() {
		t.Errorf("kind %q reported as known", ev.Kind)
	}
	if ev.Kind != "files:generated" {
		t.Errorf("kind = %q, want files:generated", ev.Kind)
	}
	if ev.Payload != nil {
		t.Errorf("payload = %+v, want nil", ev.Payload)
	}
	if string(ev.Raw) != `{"path":"main.go"}` {
		t.Errorf("raw = %s, want original data", ev.Raw)
	}
}

func TestDecodeMalformedEnvelope(t *testing.T) {
	if _, err := DecodeEvent([]byte("{broken")); err == nil {
		t.Fatal("expected error for malformed envelope")
	}
}

func TestDecodeBadPayloadKeepsRaw(t *testing.T) {
	// Envelope parses but the payload does not match the kind's shape.
	frame := []byte(`{"type":"message:new","data":[1,2,3],"timestamp":"2024-01-01T00:00:00Z"}`)

	ev, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Payload != nil {
		t.Errorf("payload = %+v, want nil for undecodable data", ev.Payload)
	}
	if string(ev.Raw) != "[1,2,3]" {
		t.Errorf("raw = %s", ev.Raw)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := Event{
		Kind:      KindTaskUpdate,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		ProjectID: "p1",
		Payload:   &Task{ID: "t1", Title: "Review the diff", Status: "in_progress"},
	}

	frame, err := EncodeEvent(src)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	got, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}

	if got.Kind != src.Kind || got.ProjectID != "p1" {
		t.Errorf("envelope = %+v", got)
	}
	task, ok := got.Payload.(*Task)
	if !ok {
		t.Fatalf("payload = %T", got.Payload)
	}
	if task.Title != "Review the diff" || task.Status != "in_progress" {
		t.Errorf("payload = %+v", task)
	}
}
