package config

import "time"

// Config holds the configuration of the application.
// Use LoadConfig to create a new instance.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Models  ModelsConfig  `mapstructure:"models"`
	Backend BackendConfig `mapstructure:"backend"`
	Otel    OtelConfig    `mapstructure:"otel"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// MaxRequestSize is the largest accepted request body, in bytes.
	MaxRequestSize int64 `mapstructure:"max_request_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	Secret   string `mapstructure:"secret"`
	Required bool   `mapstructure:"required"`
}

// ModelsConfig names the models that are loaded into the handler registries
// at startup.
type ModelsConfig struct {
	// BaseURL is the knowledge base location passed to every model.
	BaseURL string `mapstructure:"base_url"`
	// WikiVersion identifies the knowledge base version, e.g. wiki_2019.
	WikiVersion string `mapstructure:"wiki_version"`
	// EDModel is the entity disambiguation model shared by all handlers.
	EDModel            string   `mapstructure:"ed_model"`
	NERModels          []string `mapstructure:"ner_models"`
	ConversationModels []string `mapstructure:"conversation_models"`
}

// BackendConfig points at the inference server hosting the models.
type BackendConfig struct {
	URL string `mapstructure:"url"`
	// Timeout bounds a single backend call. Zero means no timeout.
	Timeout     time.Duration `mapstructure:"timeout"`
	RetryMax    int           `mapstructure:"retry_max"`
	LoadRetries int           `mapstructure:"load_retries"`
}

type OtelConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}
