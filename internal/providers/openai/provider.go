package openai

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/trilogue/trilogue-backend/internal/config"
	"github.com/trilogue/trilogue-backend/internal/providers"
)

// Provider implements the OpenAI provider
type Provider struct {
	id     string
	config config.ProviderConfig
	client *openai.Client
}

// NewProvider creates a new OpenAI provider
func NewProvider(id string, cfg config.ProviderConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Provider{
		id:     id,
		config: cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.config.Name
}

// ValidateConfig validates the provider configuration
func (p *Provider) ValidateConfig() error {
	if p.config.APIKey == "" {
		return errors.New("OpenAI API key is required")
	}
	return nil
}

// Stream issues one streamed chat completion, forwarding each content
// delta to onChunk in arrival order.
func (p *Provider) Stream(ctx context.Context, req providers.StreamRequest, onChunk providers.ChunkHandler) (*providers.StreamResult, error) {
	openAIReq := p.convertRequest(req)

	stream, err := p.client.CreateChatCompletionStream(ctx, openAIReq)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var text strings.Builder
	finishReason := ""

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		for _, choice := range response.Choices {
			if choice.Delta.Content != "" {
				text.WriteString(choice.Delta.Content)
				if onChunk != nil {
					onChunk(providers.StreamChunk{Delta: choice.Delta.Content})
				}
			}
			if choice.FinishReason != "" {
				finishReason = string(choice.FinishReason)
			}
		}
	}

	if onChunk != nil && finishReason != "" {
		onChunk(providers.StreamChunk{FinishReason: finishReason})
	}

	return &providers.StreamResult{Text: text.String(), FinishReason: finishReason}, nil
}

func (p *Provider) convertRequest(req providers.StreamRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.config.DefaultModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	openAIReq := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
		Stream:    true,
	}
	if req.Temperature != nil {
		openAIReq.Temperature = *req.Temperature
	}
	return openAIReq
}
