package app

import (
	"errors"
	"io/fs"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/agent"
	"github.com/maxbolgarin/ragreview/internal/embedder"
	"github.com/maxbolgarin/ragreview/internal/provider"
	"github.com/maxbolgarin/ragreview/internal/rag"
	"github.com/maxbolgarin/ragreview/internal/reviewer"
	"github.com/maxbolgarin/ragreview/internal/server"
	"github.com/maxbolgarin/ragreview/internal/storage/postgres"
)

// Config is the whole application configuration. Every section is read from
// the YAML file and can be overridden by environment variables.
type Config struct {
	Provider provider.Config `yaml:"provider"`
	Agent    agent.Config    `yaml:"agent"`
	Embedder embedder.Config `yaml:"embedder"`
	RAG      rag.Config      `yaml:"rag"`
	Reviewer reviewer.Config `yaml:"reviewer"`
	Server   server.Config   `yaml:"server"`
	Postgres postgres.Config `yaml:"postgres"`
}

// LoadConfig reads .env into the environment, then the config file at path.
// An empty path reads the environment only.
func LoadConfig(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logze.Warn("cannot load .env file", "error", err)
	}

	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, erro.Wrap(err, "read env")
		}
		return cfg, nil
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return Config{}, erro.Wrap(err, "read config", "path", path)
	}
	return cfg, nil
}
