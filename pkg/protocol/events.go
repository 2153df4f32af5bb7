package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the wire "type" of an event. Unrecognized values are preserved
// as-is so new server-side event types survive older clients.
type Kind string

const (
	KindMessageNew    Kind = "message:new"
	KindMessageUpdate Kind = "message:update"
	KindAgentStatus   Kind = "agent:status"
	KindAgentTyping   Kind = "agent:typing"
	KindTaskNew       Kind = "task:new"
	KindTaskUpdate    Kind = "task:update"
	KindChannelNew    Kind = "channel:new"
	KindConnected     Kind = "connected"
	KindError         Kind = "error"
)

// Known reports whether the kind is one this client version understands.
func (k Kind) Known() bool {
	switch k {
	case KindMessageNew, KindMessageUpdate, KindAgentStatus, KindAgentTyping,
		KindTaskNew, KindTaskUpdate, KindChannelNew, KindConnected, KindError:
		return true
	}
	return false
}

// Event is a decoded inbound event. The payload is decoded exactly once, at
// the connection boundary; consumers type-switch on Payload rather than
// re-parsing raw JSON.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	ProjectID string
	ChannelID string

	// Payload is the kind-specific payload struct, nil for kinds that
	// carry no payload (such as "connected") and for unknown kinds.
	Payload Payload

	// Raw is the undecoded payload, retained for unknown kinds.
	Raw json.RawMessage
}

// Payload is implemented by every kind-specific payload struct.
type Payload interface {
	payloadKind() Kind
}

// Message is the payload of message:new and message:update.
type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	AuthorID  string    `json:"author_id,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Message) payloadKind() Kind { return KindMessageNew }

// AgentStatus is the payload of agent:status.
type AgentStatus struct {
	AgentID   string `json:"agent_id"`
	ProjectID string `json:"project_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	Status    string `json:"status"`
}

func (AgentStatus) payloadKind() Kind { return KindAgentStatus }

// AgentTyping is the payload of agent:typing.
type AgentTyping struct {
	AgentID   string `json:"agent_id"`
	ChannelID string `json:"channel_id,omitempty"`
	Typing    bool   `json:"typing"`
}

func (AgentTyping) payloadKind() Kind { return KindAgentTyping }

// Task is the payload of task:new and task:update.
type Task struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id,omitempty"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	AssigneeID string    `json:"assignee_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Task) payloadKind() Kind { return KindTaskNew }

// Channel is the payload of channel:new.
type Channel struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id,omitempty"`
	Name      string `json:"name"`
}

func (Channel) payloadKind() Kind { return KindChannelNew }

// ErrorInfo is the payload of error events, including the synthetic one the
// client emits when reconnection gives up.
type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (ErrorInfo) payloadKind() Kind { return KindError }

// DecodeEvent parses one inbound frame into a typed Event. A frame whose
// envelope is not valid JSON is an error; a frame with an unknown type, or a
// known type whose payload fails to decode, is returned with a nil Payload
// and the raw data preserved.
func DecodeEvent(frame []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Event{}, fmt.Errorf("decode envelope: %w", err)
	}

	ev := Event{
		Kind:      Kind(env.Type),
		Timestamp: env.Timestamp,
		ProjectID: env.ProjectID,
		ChannelID: env.ChannelID,
		Raw:       env.Data,
	}

	decode := func(dst Payload) {
		if len(env.Data) == 0 {
			return
		}
		if err := json.Unmarshal(env.Data, dst); err == nil {
			ev.Payload = dst
		}
	}

	switch ev.Kind {
	case KindMessageNew, KindMessageUpdate:
		decode(&Message{})
	case KindAgentStatus:
		decode(&AgentStatus{})
	case KindAgentTyping:
		decode(&AgentTyping{})
	case KindTaskNew, KindTaskUpdate:
		decode(&Task{})
	case KindChannelNew:
		decode(&Channel{})
	case KindError:
		decode(&ErrorInfo{})
	case KindConnected:
		// No payload.
	}

	return ev, nil
}

// EncodeEvent marshals an event back into its wire frame. Used by the dev
// hub and by tests.
func EncodeEvent(ev Event) ([]byte, error) {
	env := Envelope{
		Type:      string(ev.Kind),
		Timestamp: ev.Timestamp,
		ProjectID: ev.ProjectID,
		ChannelID: ev.ChannelID,
	}
	if ev.Payload != nil {
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		env.Data = data
	} else if len(ev.Raw) > 0 {
		env.Data = ev.Raw
	}
	return json.Marshal(env)
}
