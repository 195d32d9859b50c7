package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3100"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".orderline/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"orderline/"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
}

type CatalogEnv struct {
	// Path to the menu catalog YAML. The file is watched and hot-reloaded.
	CatalogPath string `envconfig:"CATALOG_PATH" default:"catalog.yaml"`
	WatchReload bool   `envconfig:"CATALOG_WATCH" default:"true"`
}

type FallbackEnv struct {
	// Empty API key disables the fallback interpreter; unrecognized
	// utterances then degrade straight to a re-prompt.
	GenAIAPIKey string        `envconfig:"GENAI_API_KEY"`
	GenAIModel  string        `envconfig:"GENAI_MODEL" default:"gemini-2.0-flash"`
	Timeout     time.Duration `envconfig:"FALLBACK_TIMEOUT" default:"10s"`
}

type VAPIDEnv struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDContact    string `envconfig:"VAPID_CONTACT" default:"mailto:orders@example.com"`
}

type Env struct {
	BaseEnv
	StorageEnv
	CatalogEnv
	FallbackEnv
	VAPIDEnv
}

const namespace = "ORDERLINE"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func BaseEnvFromEnv(env *Env) *BaseEnv {
	return &env.BaseEnv
}

func StorageEnvFromEnv(env *Env) *StorageEnv {
	return &env.StorageEnv
}

func CatalogEnvFromEnv(env *Env) *CatalogEnv {
	return &env.CatalogEnv
}

func FallbackEnvFromEnv(env *Env) *FallbackEnv {
	return &env.FallbackEnv
}

func VAPIDEnvFromEnv(env *Env) *VAPIDEnv {
	return &env.VAPIDEnv
}
