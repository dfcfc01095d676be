package embedder

import (
	"slices"
	"time"

	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/lang"
)

// Type is the embedding backend
type Type string

const (
	OpenAI Type = "openai"
	Gemini Type = "gemini"
	Ollama Type = "ollama"
)

var supportedTypes = []Type{OpenAI, Gemini, Ollama}

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "ragreview/0.1.0 (https://github.com/maxbolgarin/ragreview)"

	defaultOpenAIModel = "text-embedding-3-small"
	defaultGeminiModel = "text-embedding-004"
	defaultOllamaModel = "nomic-embed-text"
	defaultOllamaURL   = "http://localhost:11434"
)

type Config struct {
	Type   Type   `yaml:"type" env:"EMBEDDER_TYPE"`
	APIKey string `yaml:"api_key" env:"EMBEDDER_API_KEY"`
	Model  string `yaml:"model" env:"EMBEDDER_MODEL"`

	// BaseURL points to Azure OpenAI, an OpenAI compatible server or Ollama
	BaseURL   string        `yaml:"base_url" env:"EMBEDDER_BASE_URL"`
	ProxyURL  string        `yaml:"proxy_url" env:"EMBEDDER_PROXY_URL"`
	Timeout   time.Duration `yaml:"timeout" env:"EMBEDDER_TIMEOUT"`
	UserAgent string        `yaml:"user_agent" env:"EMBEDDER_USER_AGENT"`

	// Dimension, when set, is the expected vector size; other sizes are rejected
	Dimension int `yaml:"dimension" env:"EMBEDDER_DIMENSION"`
}

func (c *Config) PrepareAndValidate() error {
	c.Type = lang.Check(c.Type, OpenAI)
	if !slices.Contains(supportedTypes, c.Type) {
		return erro.New("invalid embedder type: %s", c.Type)
	}
	if c.APIKey == "" && c.Type != Ollama {
		return erro.New("api key is required for %s embedder", c.Type)
	}
	if c.Dimension < 0 {
		return erro.New("dimension must not be negative, got %d", c.Dimension)
	}

	switch c.Type {
	case OpenAI:
		c.Model = lang.Check(c.Model, defaultOpenAIModel)
	case Gemini:
		c.Model = lang.Check(c.Model, defaultGeminiModel)
	case Ollama:
		c.Model = lang.Check(c.Model, defaultOllamaModel)
		c.BaseURL = lang.Check(c.BaseURL, defaultOllamaURL)
	}

	c.Timeout = lang.Check(c.Timeout, defaultTimeout)
	c.UserAgent = lang.Check(c.UserAgent, defaultUserAgent)

	return nil
}
