package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

type Config struct {
	Server          ServerConfig              `json:"server"`
	Database        DatabaseConfig            `json:"database"`
	Providers       map[string]ProviderConfig `json:"providers"`
	DefaultProvider string                    `json:"default_provider"`
	Dialogue        DialogueConfig            `json:"dialogue"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslmode"`
}

type ProviderConfig struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	BaseURL      string `json:"base_url,omitempty"`
	APIKey       string `json:"api_key,omitempty"`
	DefaultModel string `json:"default_model"`
}

// DialogueConfig tunes round execution. The completion thresholds mirror
// providers.CompletionConfig; they were tuned against the default persona
// prompts and are exposed here rather than hard-coded.
type DialogueConfig struct {
	MaxTokens              int     `json:"max_tokens"`
	Temperature            float32 `json:"temperature"`
	SummaryThresholdTokens int     `json:"summary_threshold_tokens"`

	CharsPerToken         float64 `json:"chars_per_token"`
	BudgetUsedRatio       float64 `json:"budget_used_ratio"`
	ShortStopChars        int     `json:"short_stop_chars"`
	VeryShortChars        int     `json:"very_short_chars"`
	MidSentenceChars      int     `json:"mid_sentence_chars"`
	LongStopRatio         float64 `json:"long_stop_ratio"`
	LongStopMinChars      int     `json:"long_stop_min_chars"`
	MinContinuationTokens int     `json:"min_continuation_tokens"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".trilogue"))
	}

	// Set defaults
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "trilogue")
	viper.SetDefault("database.database", "trilogue")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("default_provider", "openai")
	viper.SetDefault("dialogue.max_tokens", 1024)
	viper.SetDefault("dialogue.temperature", 0.7)
	viper.SetDefault("dialogue.summary_threshold_tokens", 6000)
	viper.SetDefault("dialogue.chars_per_token", 3.5)
	viper.SetDefault("dialogue.budget_used_ratio", 0.55)
	viper.SetDefault("dialogue.short_stop_chars", 1200)
	viper.SetDefault("dialogue.very_short_chars", 600)
	viper.SetDefault("dialogue.mid_sentence_chars", 200)
	viper.SetDefault("dialogue.long_stop_ratio", 0.5)
	viper.SetDefault("dialogue.long_stop_min_chars", 500)
	viper.SetDefault("dialogue.min_continuation_tokens", 50)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createDefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvOverrides(&cfg)

	return &cfg, nil
}

func createDefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 3000,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "trilogue",
			Password: "",
			Database: "trilogue",
			SSLMode:  "disable",
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Type:         "openai",
				Name:         "OpenAI",
				DefaultModel: "gpt-4",
			},
			"anthropic": {
				Type:         "anthropic",
				Name:         "Anthropic",
				DefaultModel: "claude-3-sonnet-20240229",
			},
		},
		DefaultProvider: "openai",
		Dialogue: DialogueConfig{
			MaxTokens:              1024,
			Temperature:            0.7,
			SummaryThresholdTokens: 6000,
			CharsPerToken:          3.5,
			BudgetUsedRatio:        0.55,
			ShortStopChars:         1200,
			VeryShortChars:         600,
			MidSentenceChars:       200,
			LongStopRatio:          0.5,
			LongStopMinChars:       500,
			MinContinuationTokens:  50,
		},
	}
	loadEnvOverrides(cfg)
	return cfg
}

func loadEnvOverrides(cfg *Config) {
	if port := os.Getenv("TRILOGUE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if host := os.Getenv("TRILOGUE_HOST"); host != "" {
		cfg.Server.Host = host
	}

	// Database overrides
	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = port
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}

	// Provider API keys
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if p, ok := cfg.Providers["openai"]; ok {
			p.APIKey = key
			cfg.Providers["openai"] = p
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		if p, ok := cfg.Providers["anthropic"]; ok {
			p.APIKey = key
			cfg.Providers["anthropic"] = p
		}
	}
}
