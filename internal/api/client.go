// Package api is the thin REST client for the hub's pull-based endpoints.
// The realtime layer keeps the view-state stores current; this client only
// backfills snapshots (initial load and post-reconnect resync) and submits
// user actions.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

// Hub is the pull-based surface the workspace shell depends on.
type Hub interface {
	ListChannels(ctx context.Context, projectID string) ([]protocol.Channel, error)
	ListMessages(ctx context.Context, channelID string) ([]protocol.Message, error)
	ListAgents(ctx context.Context, projectID string) ([]protocol.AgentStatus, error)
	ListTasks(ctx context.Context, projectID string) ([]protocol.Task, error)
	PostMessage(ctx context.Context, channelID, content string) (protocol.Message, error)
}

// Client talks JSON over HTTP to the hub. It implements Hub.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a REST client for the hub at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) ListChannels(ctx context.Context, projectID string) ([]protocol.Channel, error) {
	var out []protocol.Channel
	err := c.getJSON(ctx, "/api/projects/"+projectID+"/channels", &out)
	return out, err
}

func (c *Client) ListMessages(ctx context.Context, channelID string) ([]protocol.Message, error) {
	var out []protocol.Message
	err := c.getJSON(ctx, "/api/channels/"+channelID+"/messages", &out)
	return out, err
}

func (c *Client) ListAgents(ctx context.Context, projectID string) ([]protocol.AgentStatus, error) {
	var out []protocol.AgentStatus
	err := c.getJSON(ctx, "/api/projects/"+projectID+"/agents", &out)
	return out, err
}

func (c *Client) ListTasks(ctx context.Context, projectID string) ([]protocol.Task, error) {
	var out []protocol.Task
	err := c.getJSON(ctx, "/api/projects/"+projectID+"/tasks", &out)
	return out, err
}

func (c *Client) PostMessage(ctx context.Context, channelID, content string) (protocol.Message, error) {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return protocol.Message{}, fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/channels/"+channelID+"/messages", bytes.NewReader(body))
	if err != nil {
		return protocol.Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out protocol.Message
	if err := c.do(req, &out); err != nil {
		return protocol.Message{}, fmt.Errorf("post message: %w", err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if err := c.do(req, out); err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("hub returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
