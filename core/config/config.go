package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"phalerts.app/server/internal/service"
)

type Config struct {
	Server      ServerConfig
	Phabricator PhabricatorConfig
	Reconcile   ReconcileConfig
	Telemetry   TelemetryConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Environment string
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type PhabricatorConfig struct {
	// BaseURL is the Phabricator root, e.g. https://phabricator.company.tld.
	BaseURL string
	// Token is the Conduit API token, attached to every outbound call.
	Token string
}

type ReconcileConfig struct {
	// TitleTemplate is the default task title template; requests may
	// override it per call.
	TitleTemplate string
	// SearchResultCap bounds how many exact-title matches a search may
	// scan before giving up with a pagination-limit error.
	SearchResultCap int
	// ProjectCacheTTL expires cached project name resolutions. Zero
	// means cache for the process lifetime.
	ProjectCacheTTL time.Duration
}

type TelemetryConfig struct {
	// OTLPEndpoint enables the OTLP log/trace pipeline when set.
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from the environment. A local .env file is
// honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getEnvInt("PORT", 8292)
	if err != nil {
		return nil, err
	}
	resultCap, err := getEnvInt("SEARCH_RESULT_CAP", service.DefaultSearchResultCap)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getEnvDuration("PROJECT_CACHE_TTL", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("BIND_HOST", "localhost"),
			Port:        port,
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Phabricator: PhabricatorConfig{
			BaseURL: os.Getenv("PHABRICATOR_URL"),
			Token:   os.Getenv("PHABRICATOR_TOKEN"),
		},
		Reconcile: ReconcileConfig{
			TitleTemplate:   getEnv("TITLE_TEMPLATE", service.DefaultTitleTemplate),
			SearchResultCap: resultCap,
			ProjectCacheTTL: cacheTTL,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
			ServiceName:  getEnv("SERVICE_NAME", "phalerts"),
		},
	}

	if cfg.Phabricator.BaseURL == "" {
		return nil, fmt.Errorf("PHABRICATOR_URL is required")
	}
	if cfg.Phabricator.Token == "" {
		return nil, fmt.Errorf("PHABRICATOR_TOKEN is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}
