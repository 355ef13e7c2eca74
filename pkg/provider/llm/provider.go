// Package llm defines the Provider interface for Large Language Model
// backends.
//
// The dubbing pipeline uses an LLM for two jobs: translating the joined
// utterance script into the target language, and attributing speaker labels
// and genders to transcribed utterances. Both are single-shot
// request/response completions — no streaming, no tool calling — so the
// interface is deliberately small. Implementations wrap a concrete SDK
// (OpenAI, or any backend reachable through any-llm-go such as Gemini,
// Anthropic or a local Ollama) behind this uniform contract.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Request carries one completion request.
type Request struct {
	// System is the high-priority instruction injected before the prompt
	// (e.g. the translation system instructions). May be empty.
	System string

	// Prompt is the user-role message content driving the completion.
	Prompt string

	// Temperature controls output randomness in [0.0, 2.0]. Zero requests
	// the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// Provider is the abstraction over any completion-capable LLM backend.
type Provider interface {
	// Complete submits the request and returns the model's text response.
	// The call blocks until the backend responds; failures are returned
	// synchronously and are not retried here.
	Complete(ctx context.Context, req Request) (string, error)
}
