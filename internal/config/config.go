// Package config loads the relay's secrets and tunables from the environment
package config

import (
	"errors"
	"time"

	"formscan-relay/internal/shared"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Secrets
	OpenAIKey      string `env:"OPENAI_API_KEY,required,notEmpty"`
	BackendURL     string `env:"SUPABASE_URL,required,notEmpty"`
	BackendAnonKey string `env:"SUPABASE_ANON_KEY,required,notEmpty"`
	OpenAIBaseURL  string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`

	// Models
	VisionModel        string `env:"VISION_MODEL" envDefault:"gpt-4o"`
	TranscriptionModel string `env:"TRANSCRIPTION_MODEL" envDefault:"whisper-1"`
	ChatModel          string `env:"CHAT_MODEL" envDefault:"gpt-4o-mini"`
	VisionMaxTokens    int    `env:"VISION_MAX_TOKENS" envDefault:"2048"`
	ChatMaxTokens      int    `env:"CHAT_MAX_TOKENS" envDefault:"1024"`

	// Reject vision output that does not match the field descriptor schema
	StrictFormSchema bool `env:"STRICT_FORM_SCHEMA" envDefault:"false"`

	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"180s"`
	MaxBodySize string        `env:"MAX_BODY_SIZE" envDefault:"25M"`
}

// Load reads the configuration. Any failure is a ConfigurationError and
// should stop the process before it serves traffic.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Join(shared.NewConfiguration("parse config"), err)
	}
	if cfg.VisionMaxTokens <= 0 || cfg.ChatMaxTokens <= 0 {
		return nil, shared.NewConfiguration("max tokens must be positive")
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, shared.NewConfiguration("http timeout must be positive")
	}
	return cfg, nil
}
