package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// withEndpoint redirects a provider variant at a test server for the test's
// duration.
func withEndpoint(t *testing.T, p Provider, url string) {
	t.Helper()
	orig := variants[p].endpoint
	variants[p].endpoint = url
	t.Cleanup(func() { variants[p].endpoint = orig })
}

func testClient(p Provider) *Client {
	return NewClient(Config{
		APIKeys: map[Provider]string{p: "test-key"},
		Models:  map[Provider]string{p: "test-model"},
		Timeout: 5 * time.Second,
	})
}

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
			flusher.Flush()
		}
	}))
}

func openAIChunk(content string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`, content)
}

func TestStreamAccumulatesDeltas(t *testing.T) {
	srv := sseServer(t, []string{
		openAIChunk("Hello"),
		"",
		openAIChunk(" world"),
		"",
		"data: [DONE]",
	})
	defer srv.Close()
	withEndpoint(t, OpenAI, srv.URL)

	var seen []string
	result, err := testClient(OpenAI).Stream(context.Background(), OpenAI,
		[]Message{{Role: "user", Content: "hi"}},
		func(delta string) { seen = append(seen, delta) })
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if result.Content != "Hello world" {
		t.Fatalf("content = %q", result.Content)
	}
	if result.Increments != 2 {
		t.Fatalf("increments = %d, want 2", result.Increments)
	}
	if strings.Join(seen, "") != "Hello world" {
		t.Fatalf("onDelta saw %q", strings.Join(seen, ""))
	}
}

func TestStreamSkipsMalformedFrames(t *testing.T) {
	srv := sseServer(t, []string{
		openAIChunk("keep"),
		`data: {"choices":[{"delta":{"content":`, // truncated JSON
		"data: not json at all",
		": comment line",
		"event: noise",
		openAIChunk(" going"),
		"data: [DONE]",
	})
	defer srv.Close()
	withEndpoint(t, OpenAI, srv.URL)

	result, err := testClient(OpenAI).Stream(context.Background(), OpenAI,
		[]Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if result.Content != "keep going" {
		t.Fatalf("content = %q, want %q", result.Content, "keep going")
	}
	if result.Increments != 2 {
		t.Fatalf("increments = %d, want 2", result.Increments)
	}
}

func TestStreamStopsAtDone(t *testing.T) {
	srv := sseServer(t, []string{
		openAIChunk("before"),
		"data: [DONE]",
		openAIChunk("after"),
	})
	defer srv.Close()
	withEndpoint(t, OpenAI, srv.URL)

	result, err := testClient(OpenAI).Stream(context.Background(), OpenAI,
		[]Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if result.Content != "before" {
		t.Fatalf("content = %q, want %q", result.Content, "before")
	}
}

func TestStreamEmptyBodyYieldsZeroIncrements(t *testing.T) {
	srv := sseServer(t, []string{"data: [DONE]"})
	defer srv.Close()
	withEndpoint(t, OpenAI, srv.URL)

	result, err := testClient(OpenAI).Stream(context.Background(), OpenAI,
		[]Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if result.Increments != 0 || result.Content != "" {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestStreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()
	withEndpoint(t, Groq, srv.URL)

	_, err := testClient(Groq).Stream(context.Background(), Groq,
		[]Message{{Role: "user", Content: "hi"}}, nil)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Status != http.StatusTooManyRequests {
		t.Fatalf("status = %d", httpErr.Status)
	}
	if httpErr.Provider != Groq {
		t.Fatalf("provider = %s", httpErr.Provider)
	}
}

func TestStreamMissingCredential(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Stream(context.Background(), OpenAI,
		[]Message{{Role: "user", Content: "hi"}}, nil)
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestStreamUnsupportedProvider(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Stream(context.Background(), Provider("mystery"), nil, nil)
	if err == nil {
		t.Fatalf("expected error for unsupported provider")
	}
}

func TestStreamAnthropicFraming(t *testing.T) {
	var gotAuth, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\n")
		fmt.Fprint(w, `data: {"type":"message_start"}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Claude"}}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"content_block_delta","delta":{"type":"text_delta","text":" says"}}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"message_stop"}`+"\n")
	}))
	defer srv.Close()
	withEndpoint(t, Anthropic, srv.URL)

	result, err := testClient(Anthropic).Stream(context.Background(), Anthropic,
		[]Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
		}, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if result.Content != "Claude says" {
		t.Fatalf("content = %q", result.Content)
	}
	if gotAuth != "test-key" {
		t.Fatalf("x-api-key = %q", gotAuth)
	}
	if gotVersion == "" {
		t.Fatalf("missing anthropic-version header")
	}
}

func TestNormalizeProvider(t *testing.T) {
	tests := []struct {
		in   string
		want Provider
	}{
		{"openai", OpenAI},
		{"groq", Groq},
		{"openrouter", OpenRouter},
		{"anthropic", Anthropic},
		{"", OpenAI},
		{"unknown-vendor", OpenAI},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
