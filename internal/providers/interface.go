package providers

import (
	"context"
)

// Message is one entry in a chat-shaped generation request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamRequest describes a streamed generation call.
type StreamRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float32  `json:"temperature,omitempty"`
}

// StreamChunk is one incremental piece of a streamed response.
type StreamChunk struct {
	Delta        string `json:"delta,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// StreamResult is the final outcome of a streamed call. FinishReason is
// "stop", "length", or empty when the provider reported none.
type StreamResult struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// ChunkHandler receives chunks in the order the provider emitted them.
type ChunkHandler func(chunk StreamChunk)

// Provider is the capability a backing text-generation service must offer.
// Implementations only encode messages and run the raw streaming call;
// truncation detection and continuation live in StreamWithCompletion.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Stream issues one streamed generation call, forwarding every chunk
	// to onChunk before returning the accumulated result.
	Stream(ctx context.Context, req StreamRequest, onChunk ChunkHandler) (*StreamResult, error)

	// ValidateConfig validates the provider configuration.
	ValidateConfig() error
}
