package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/maxbolgarin/ragreview/internal/provider"
)

const testConfig = `
provider:
  type: github
  token: secret-token
  bot_username: review-bot
embedder:
  type: ollama
  dimension: 768
rag:
  chunk_size: 80
  excluded_paths:
    - vendor/
server:
  endpoint: /hooks/review
postgres:
  dsn: postgres://localhost/ragreview
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Provider.Type != provider.GitHub || cfg.Provider.Token != "secret-token" || cfg.Provider.BotUsername != "review-bot" {
		t.Fatalf("unexpected provider config %+v", cfg.Provider)
	}
	if cfg.Embedder.Dimension != 768 || cfg.RAG.ChunkSize != 80 {
		t.Fatalf("unexpected rag config %+v %+v", cfg.Embedder, cfg.RAG)
	}
	if len(cfg.RAG.ExcludedPaths) != 1 || cfg.RAG.ExcludedPaths[0] != "vendor/" {
		t.Fatalf("unexpected excluded paths %v", cfg.RAG.ExcludedPaths)
	}
	if cfg.Server.Endpoint != "/hooks/review" || !cfg.Postgres.IsEnabled() {
		t.Fatalf("unexpected server or postgres config %+v %+v", cfg.Server, cfg.Postgres)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
