// Package openai issues streamed chat-completion requests and reassembles
// the incremental response into a single logical reply.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/relaybots/chatrelay/internal/convo"
)

const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

// StatusError reports a non-success status from the completions endpoint.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openai: status %d: %s", e.Status, e.Body)
}

// Params are the sampling parameters for one completion call.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
	User        string
}

// Result is the reassembled outcome of one streamed completion.
type Result struct {
	// Raw is the response body as received, kept for the audit trail.
	Raw string
	// Text is the accumulated assistant reply.
	Text string
	// Role is the role marker from the stream, normally "assistant".
	Role convo.Role
	// RequestID is the provider's identifier for this completion.
	RequestID string
}

type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: 120 * time.Second},
	}
}

// NewClientWithEndpoint points the client at a custom base, used by tests
// and OpenAI-compatible gateways.
func NewClientWithEndpoint(apiKey, endpoint string) *Client {
	c := NewClient(apiKey)
	c.endpoint = endpoint
	return c
}

type chatRequest struct {
	Model       string          `json:"model"`
	Messages    []convo.Message `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature float64         `json:"temperature"`
	N           int             `json:"n"`
	User        string          `json:"user"`
	MaxTokens   int             `json:"max_tokens"`
}

type streamEvent struct {
	ID      string `json:"id"`
	Choices []struct {
		Delta struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Complete sends the conversation and folds the event stream into a Result.
// Malformed or empty lines are skipped; the [DONE] sentinel ends consumption.
// No retry on failure; that policy belongs to the caller.
func (c *Client) Complete(ctx context.Context, messages []convo.Message, p Params) (*Result, error) {
	body, err := json.Marshal(chatRequest{
		Model:       p.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: p.Temperature,
		N:           1,
		User:        p.User,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{Status: resp.StatusCode, Body: string(respBody)}
	}

	return consumeStream(resp.Body)
}

// consumeStream folds the SSE lines into an immutable Result.
func consumeStream(body io.Reader) (*Result, error) {
	res := &Result{Role: convo.RoleAssistant}
	var raw strings.Builder

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		raw.WriteString(line)
		raw.WriteString("\n")

		if line == "" {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			// Malformed event; skip it rather than abort the whole reply.
			continue
		}
		if ev.ID != "" {
			res.RequestID = ev.ID
		}
		if len(ev.Choices) == 0 {
			continue
		}
		delta := ev.Choices[0].Delta
		if delta.Role != "" {
			res.Role = convo.Role(delta.Role)
		}
		res.Text += delta.Content
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}

	res.Raw = raw.String()
	return res, nil
}
