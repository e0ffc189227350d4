package factory

import (
	"fmt"

	"github.com/trilogue/trilogue-backend/internal/config"
	"github.com/trilogue/trilogue-backend/internal/providers"
	"github.com/trilogue/trilogue-backend/internal/providers/anthropic"
	"github.com/trilogue/trilogue-backend/internal/providers/openai"
)

// CreateProvider creates a provider instance based on configuration
func CreateProvider(id string, cfg config.ProviderConfig) (providers.Provider, error) {
	switch cfg.Type {
	case "openai":
		return openai.NewProvider(id, cfg)
	case "anthropic":
		return anthropic.NewProvider(id, cfg)
	case "openai-compatible", "ollama":
		// Local OpenAI-compatible servers accept any key.
		if cfg.APIKey == "" {
			cfg.APIKey = "not-needed"
		}
		return openai.NewProvider(id, cfg)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}
