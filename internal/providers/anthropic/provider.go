package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/trilogue/trilogue-backend/internal/config"
	"github.com/trilogue/trilogue-backend/internal/providers"
)

const (
	anthropicAPIURL  = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// Provider implements the Anthropic provider
type Provider struct {
	id     string
	config config.ProviderConfig
	client *http.Client
}

// anthropicRequest represents a request to Anthropic's API
type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
	System      string             `json:"system,omitempty"`
}

// anthropicMessage represents a message in Anthropic format
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicStreamEvent represents a streaming event
type anthropicStreamEvent struct {
	Type  string                `json:"type"`
	Index int                   `json:"index,omitempty"`
	Delta *anthropicStreamDelta `json:"delta,omitempty"`
}

// anthropicStreamDelta represents a delta in streaming
type anthropicStreamDelta struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

// NewProvider creates a new Anthropic provider
func NewProvider(id string, cfg config.ProviderConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	return &Provider{
		id:     id,
		config: cfg,
		client: &http.Client{},
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.config.Name
}

// ValidateConfig validates the provider configuration
func (p *Provider) ValidateConfig() error {
	if p.config.APIKey == "" {
		return errors.New("Anthropic API key is required")
	}
	return nil
}

// Stream issues one streamed messages call, forwarding each text delta to
// onChunk in arrival order.
func (p *Provider) Stream(ctx context.Context, req providers.StreamRequest, onChunk providers.ChunkHandler) (*providers.StreamResult, error) {
	anthropicReq := p.convertRequest(req)
	anthropicReq.Stream = true

	body, err := json.Marshal(anthropicReq)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.apiURL(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	p.setHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Anthropic API error: %s - %s", resp.Status, string(bodyBytes))
	}

	var text strings.Builder
	finishReason := ""

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta != nil && event.Delta.Text != "" {
				text.WriteString(event.Delta.Text)
				if onChunk != nil {
					onChunk(providers.StreamChunk{Delta: event.Delta.Text})
				}
			}
		case "message_delta":
			if event.Delta != nil && event.Delta.StopReason != "" {
				finishReason = convertStopReason(event.Delta.StopReason)
			}
		case "message_stop":
			if finishReason == "" {
				finishReason = "stop"
			}
		}
	}

	if onChunk != nil && finishReason != "" {
		onChunk(providers.StreamChunk{FinishReason: finishReason})
	}

	return &providers.StreamResult{Text: text.String(), FinishReason: finishReason}, nil
}

func (p *Provider) convertRequest(req providers.StreamRequest) anthropicRequest {
	model := req.Model
	if model == "" {
		model = p.config.DefaultModel
	}

	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, anthropicMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return anthropicRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      req.System,
	}
}

func (p *Provider) apiURL() string {
	if p.config.BaseURL != "" {
		return p.config.BaseURL + "/v1/messages"
	}
	return anthropicAPIURL
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}

// convertStopReason maps Anthropic stop reasons onto the shared
// "stop"/"length" vocabulary the completion policy understands.
func convertStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	}
	return reason
}
