package provider

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

	"textlens-backend/internal/shared/telemetry"
)

// maxEventLine bounds a single SSE event line. Provider deltas are small; a
// generous cap protects against unbounded lines without truncating real data.
const maxEventLine = 1 << 20

// Config holds per-provider credentials and models.
type Config struct {
	APIKeys map[Provider]string
	Models  map[Provider]string
	Timeout time.Duration
}

// Client turns one (provider, message list) pair into a stream of text
// increments, hiding per-vendor auth, request shape, and SSE framing.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient constructs a streaming client. Timeout covers the whole call
// including the streamed body read; a hung provider fails the call instead of
// hanging the job.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// StreamResult reports the outcome of one streaming call.
type StreamResult struct {
	Content    string
	Increments int
}

// Stream performs one streaming completion call against p. Each decoded text
// increment is passed to onDelta (when non-nil) at the moment it arrives and
// accumulated into the returned result. The stream is finite and not
// restartable; transport failures surface before any increment is produced.
func (c *Client) Stream(ctx context.Context, p Provider, messages []Message, onDelta func(string)) (StreamResult, error) {
	v, ok := variants[p]
	if !ok {
		return StreamResult{}, fmt.Errorf("unsupported provider %q", p)
	}
	apiKey := strings.TrimSpace(c.config.APIKeys[p])
	if apiKey == "" {
		return StreamResult{}, fmt.Errorf("%w: %s", ErrNoCredential, p)
	}

	payload, err := json.Marshal(v.buildBody(c.config.Models[p], v.maxTokens, messages))
	if err != nil {
		return StreamResult{}, fmt.Errorf("marshal %s request: %w", p, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(payload))
	if err != nil {
		return StreamResult{}, fmt.Errorf("build %s request: %w", p, err)
	}
	req.Header.Set("Content-Type", "application/json")
	v.setAuth(req, apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return StreamResult{}, fmt.Errorf("%s request: %w", p, err)
	}
	if resp.Body == nil {
		return StreamResult{}, ErrStreamUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return StreamResult{}, &HTTPError{Provider: p, Status: resp.StatusCode, Body: string(body)}
	}
	if resp.Body == http.NoBody {
		return StreamResult{}, ErrStreamUnavailable
	}

	return c.consume(p, v, resp.Body, onDelta)
}

// consume decodes the vendor's newline-delimited event framing. The scanner
// buffers partial lines across network reads, so an event split between two
// chunks is reassembled before parsing. "[DONE]" ends the stream cleanly; a
// malformed JSON payload on one line is skipped, never fatal.
func (c *Client) consume(p Provider, v *variant, body io.Reader, onDelta func(string)) (StreamResult, error) {
	var result StreamResult
	var content strings.Builder

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxEventLine)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}
		if !json.Valid([]byte(data)) {
			telemetry.Error("provider.malformed_event", map[string]any{
				"provider": string(p),
				"length":   len(data),
			})
			continue
		}
		delta, ok := v.extract([]byte(data))
		if !ok || delta == "" {
			continue
		}
		result.Increments++
		content.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	if err := scanner.Err(); err != nil {
		return StreamResult{}, fmt.Errorf("read %s stream: %w", p, err)
	}

	result.Content = content.String()
	return result, nil
}

func openAIBody(model string, _ int, messages []Message) any {
	return map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   true,
	}
}

func anthropicBody(model string, maxTokens int, messages []Message) any {
	// Anthropic carries the system prompt as a top-level field.
	var system string
	chat := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		chat = append(chat, m)
	}
	body := map[string]any{
		"model":      model,
		"max_tokens": maxTokens,
		"messages":   chat,
		"stream":     true,
	}
	if system != "" {
		body["system"] = system
	}
	return body
}

// extractChoicesDelta pulls incremental text from the OpenAI-style
// choices[0].delta.content path.
func extractChoicesDelta(payload []byte) (string, bool) {
	var event struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", false
	}
	if len(event.Choices) == 0 {
		return "", false
	}
	return event.Choices[0].Delta.Content, event.Choices[0].Delta.Content != ""
}

// extractContentBlockDelta pulls incremental text from Anthropic's
// discriminated event stream; only content_block_delta events carry text.
func extractContentBlockDelta(payload []byte) (string, bool) {
	var event struct {
		Type  string `json:"type"`
		Delta struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"delta"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", false
	}
	if event.Type != "content_block_delta" || event.Delta.Text == "" {
		return "", false
	}
	return event.Delta.Text, true
}
