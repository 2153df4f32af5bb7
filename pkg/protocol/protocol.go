// Package protocol defines the wire format exchanged between the workspace
// client and the hub over the realtime WebSocket.
//
// All frames are JSON. Inbound frames share a common envelope with a "type"
// field that determines the payload structure; outbound control frames carry
// an "action" field.
package protocol

import (
	"encoding/json"
	"time"
)

// Envelope is the top-level format of every inbound frame.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`

	// Optional topic hints, set when the event is scoped to a project
	// or channel. Independent of the payload contents.
	ProjectID string `json:"projectId,omitempty"`
	ChannelID string `json:"channelId,omitempty"`
}

// Control actions (client → hub).
const (
	ActionSubscribeProject   = "subscribe_project"
	ActionUnsubscribeProject = "unsubscribe_project"
	ActionSubscribeChannel   = "subscribe_channel"
	ActionUnsubscribeChannel = "unsubscribe_channel"
)

// Control is an outbound subscription control frame.
type Control struct {
	Action string `json:"action"`
	ID     string `json:"id"`
}

// TopicType identifies what a subscription is scoped to.
type TopicType string

const (
	TopicProject TopicType = "project"
	TopicChannel TopicType = "channel"
)

// SubscribeAction returns the control action that subscribes to t.
func (t TopicType) SubscribeAction() string {
	if t == TopicChannel {
		return ActionSubscribeChannel
	}
	return ActionSubscribeProject
}

// UnsubscribeAction returns the control action that unsubscribes from t.
func (t TopicType) UnsubscribeAction() string {
	if t == TopicChannel {
		return ActionUnsubscribeChannel
	}
	return ActionUnsubscribeProject
}
