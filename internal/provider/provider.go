package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Provider identifies one supported LLM vendor.
type Provider string

const (
	OpenAI     Provider = "openai"
	Groq       Provider = "groq"
	OpenRouter Provider = "openrouter"
	Anthropic  Provider = "anthropic"
)

// ErrNoCredential indicates the provider's API key is not configured. This is
// a configuration fault raised before any network activity.
var ErrNoCredential = errors.New("provider credential not configured")

// ErrStreamUnavailable indicates the provider returned a response with no
// readable body.
var ErrStreamUnavailable = errors.New("provider stream unavailable")

// HTTPError is returned when a provider answers with a non-success status
// before any increments are produced.
type HTTPError struct {
	Provider Provider
	Status   int
	Body     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s request failed with status %d: %s", e.Provider, e.Status, e.Body)
}

// Message is one role-tagged entry of a chat prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Known reports whether p is a member of the supported provider set.
func Known(p Provider) bool {
	_, ok := variants[p]
	return ok
}

// Normalize maps an empty or unknown provider tag to the default.
func Normalize(raw string) Provider {
	p := Provider(raw)
	if Known(p) {
		return p
	}
	return OpenAI
}

// variant captures the per-vendor request and response shape. Adding a
// provider means adding one entry here; nothing downstream changes.
type variant struct {
	endpoint  string
	maxTokens int
	setAuth   func(req *http.Request, apiKey string)
	buildBody func(model string, maxTokens int, messages []Message) any
	extract   func(payload []byte) (string, bool)
}

var variants = map[Provider]*variant{
	OpenAI: {
		endpoint:  "https://api.openai.com/v1/chat/completions",
		setAuth:   bearerAuth,
		buildBody: openAIBody,
		extract:   extractChoicesDelta,
	},
	Groq: {
		endpoint:  "https://api.groq.com/openai/v1/chat/completions",
		setAuth:   bearerAuth,
		buildBody: openAIBody,
		extract:   extractChoicesDelta,
	},
	OpenRouter: {
		endpoint:  "https://openrouter.ai/api/v1/chat/completions",
		setAuth:   bearerAuth,
		buildBody: openAIBody,
		extract:   extractChoicesDelta,
	},
	Anthropic: {
		endpoint:  "https://api.anthropic.com/v1/messages",
		maxTokens: 8192,
		setAuth: func(req *http.Request, apiKey string) {
			req.Header.Set("x-api-key", apiKey)
			req.Header.Set("anthropic-version", "2023-06-01")
		},
		buildBody: anthropicBody,
		extract:   extractContentBlockDelta,
	},
}

func bearerAuth(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}
