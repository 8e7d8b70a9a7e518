package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	defaultHTTPPort        = "8080"
	defaultTemporalAddress = "localhost:7233"
	defaultTemporalNS      = "default"
	defaultTaskQueue       = "acceptance-task-queue"
	defaultMinioEndpoint   = "localhost:9000"
	defaultFixturesDir     = "testdata"
	defaultLauncher        = "remote-task"
)

const DefaultTaskTimeoutSec = 90 * 60

type Config struct {
	HTTPPort          string
	PostgresDSN       string
	TemporalAddress   string
	TemporalNamespace string
	TemporalTaskQueue string
	MinioEndpoint     string
	MinioAccessKey    string
	MinioSecretKey    string
	MinioUseSSL       bool
	MinioBucket       string
	WorkflowIDPrefix  string
	FixturesDir       string
	Launcher          string
	TaskTimeoutSec    int
	KeepOutputs       bool
	CatalogURL        string
}

func Load() (Config, error) {
	cfg := Config{
		HTTPPort:          getenv("HTTP_PORT", defaultHTTPPort),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		TemporalAddress:   getenv("TEMPORAL_ADDRESS", defaultTemporalAddress),
		TemporalNamespace: getenv("TEMPORAL_NAMESPACE", defaultTemporalNS),
		TemporalTaskQueue: getenv("TEMPORAL_TASK_QUEUE", defaultTaskQueue),
		MinioEndpoint:     getenv("MINIO_ENDPOINT", defaultMinioEndpoint),
		MinioAccessKey:    os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:    os.Getenv("MINIO_SECRET_KEY"),
		MinioUseSSL:       getenvBool("MINIO_USE_SSL", false),
		MinioBucket:       os.Getenv("MINIO_BUCKET"),
		WorkflowIDPrefix:  getenv("WORKFLOW_ID_PREFIX", "acceptance"),
		FixturesDir:       getenv("ACCEPTANCE_FIXTURES_DIR", defaultFixturesDir),
		Launcher:          getenv("ACCEPTANCE_LAUNCHER", defaultLauncher),
		TaskTimeoutSec:    getenvInt("ACCEPTANCE_TASK_TIMEOUT_SEC", DefaultTaskTimeoutSec),
		KeepOutputs:       getenvBool("ACCEPTANCE_KEEP_OUTPUTS", false),
		CatalogURL:        os.Getenv("ACCEPTANCE_CATALOG_URL"),
	}

	if cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("POSTGRES_DSN is required")
	}

	return cfg, nil
}

func getenv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
