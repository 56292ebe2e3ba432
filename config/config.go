package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getzep/entitylink/internal"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var log = internal.GetLogger()

const (
	DefaultPort           = 5555
	DefaultHost           = "0.0.0.0"
	DefaultEDModel        = "ed-wiki-2019"
	DefaultNERModel       = "ner-fast"
	DefaultConvModel      = "default"
	DefaultMaxRequestSize = 5 << 20 // 5MB
	DefaultLoadRetries    = 5
)

var (
	ErrBaseURLNotSet     = errors.New("models.base_url must be set")
	ErrWikiVersionNotSet = errors.New("models.wiki_version must be set")
	ErrEDModelNotSet     = errors.New("models.ed_model must be set")
	ErrNoNERModels       = errors.New("models.ner_models must name at least one model")
	ErrBackendURLNotSet  = errors.New("backend.url must be set")
)

func setDefaults() {
	viper.SetDefault("server.host", DefaultHost)
	viper.SetDefault("server.port", DefaultPort)
	viper.SetDefault("server.max_request_size", DefaultMaxRequestSize)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("models.ed_model", DefaultEDModel)
	viper.SetDefault("models.ner_models", []string{DefaultNERModel})
	viper.SetDefault("models.conversation_models", []string{DefaultConvModel})
	viper.SetDefault("backend.retry_max", 0)
	viper.SetDefault("backend.load_retries", DefaultLoadRetries)
}

// LoadConfig loads the config file and ENV variables into a Config struct.
// When configFile is empty a config.yaml in the working directory is used if
// present; its absence is not an error.
func LoadConfig(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	viper.SetConfigType("yaml")

	// .env values are exported before viper reads the environment
	loadDotEnv()

	viper.SetEnvPrefix("ENTITYLINK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Debug("no config file found, using defaults and environment")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that everything needed to populate the handler registries
// is present.
func (c *Config) Validate() error {
	var errs []error
	if c.Models.BaseURL == "" {
		errs = append(errs, ErrBaseURLNotSet)
	}
	if c.Models.WikiVersion == "" {
		errs = append(errs, ErrWikiVersionNotSet)
	}
	if c.Models.EDModel == "" {
		errs = append(errs, ErrEDModelNotSet)
	}
	if len(c.Models.NERModels) == 0 {
		errs = append(errs, ErrNoNERModels)
	}
	if c.Backend.URL == "" {
		errs = append(errs, ErrBackendURLNotSet)
	}
	return errors.Join(errs...)
}

// loadDotEnv loads environment variables from .env file
func loadDotEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Debug(".env file not found or unable to load")
	}
}

// SetLogLevel sets the log level based on the config file. Defaults to INFO if not set or invalid
func SetLogLevel(cfg *Config) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	internal.SetLogLevel(level)
	internal.GetLogger().Info("Log level set to: ", level)
}
