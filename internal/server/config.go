package server

import (
	"crypto/tls"
	"strings"
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
)

const (
	defaultAddress       = "0.0.0.0:8080"
	defaultEndpoint      = "/webhook"
	defaultIndexEndpoint = "/api/index"
	defaultTimeout       = 30 * time.Second
)

// Config of the webhook and index HTTP server
type Config struct {
	Address  string        `yaml:"address" env:"SERVER_ADDRESS"`
	Endpoint string        `yaml:"endpoint" env:"SERVER_ENDPOINT"`
	Timeout  time.Duration `yaml:"timeout" env:"SERVER_TIMEOUT"`

	// IndexEndpoint serves manual indexing, empty means /api/index
	IndexEndpoint   string `yaml:"index_endpoint" env:"SERVER_INDEX_ENDPOINT"`
	DisableIndexAPI bool   `yaml:"disable_index_api" env:"SERVER_DISABLE_INDEX_API"`

	CertFilePath string `yaml:"cert_file_path" env:"CERT_FILE_PATH"`
	KeyFilePath  string `yaml:"key_file_path" env:"KEY_FILE_PATH"`
	EnableHTTPS  bool   `yaml:"enable_https" env:"SERVER_ENABLE_HTTPS"`

	Certificate tls.Certificate `yaml:"-"`
}

func (cfg *Config) PrepareAndValidate() error {
	cfg.Address = lang.Check(cfg.Address, defaultAddress)
	cfg.Endpoint = lang.Check(cfg.Endpoint, defaultEndpoint)
	cfg.IndexEndpoint = lang.Check(cfg.IndexEndpoint, defaultIndexEndpoint)
	cfg.Timeout = lang.Check(cfg.Timeout, defaultTimeout)

	if !strings.HasPrefix(cfg.Endpoint, "/") || !strings.HasPrefix(cfg.IndexEndpoint, "/") {
		return errm.New("endpoints must start with /")
	}
	if cfg.Endpoint == cfg.IndexEndpoint {
		return errm.New("webhook and index endpoints must differ")
	}

	if cfg.EnableHTTPS {
		if cfg.CertFilePath == "" || cfg.KeyFilePath == "" {
			return errm.New("cert_file_path and key_file_path must be set when enable_https is true")
		}
		cert, err := tls.LoadX509KeyPair(cfg.CertFilePath, cfg.KeyFilePath)
		if err != nil {
			return errm.Wrap(err, "load certificate and key pair")
		}
		cfg.Certificate = cert
	}

	return nil
}
