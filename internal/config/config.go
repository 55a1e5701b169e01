package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"flickrsearch/internal/flickr"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	FlickrAPIKey     string        `mapstructure:"FLICKR_API_KEY"`
	FlickrEndpoint   string        `mapstructure:"FLICKR_ENDPOINT"`
	BadgerDBPath     string        `mapstructure:"BADGERDB_PATH"`
	TelegramBotToken string        `mapstructure:"TELEGRAM_BOT_TOKEN"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	FetchWorkers     int           `mapstructure:"FETCH_WORKERS"`
	GCInterval       time.Duration `mapstructure:"GC_INTERVAL"`
}

// LoadConfig reads configuration from path/config.yaml and environment variables.
// Environment variables win over the file; the file is optional.
// FLICKR_API_KEY must be set.
func LoadConfig(path string) (Config, error) {
	config, err := LoadStoreConfig(path)
	if err != nil {
		return Config{}, err
	}
	if config.FlickrAPIKey == "" {
		return Config{}, fmt.Errorf("FLICKR_API_KEY is not set")
	}
	return config, nil
}

// LoadStoreConfig is LoadConfig for commands that never call Flickr, such as
// listing favorites. FLICKR_API_KEY may be empty.
func LoadStoreConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Defaults also register the keys, which AutomaticEnv needs for Unmarshal.
	v.SetDefault("FLICKR_API_KEY", "")
	v.SetDefault("FLICKR_ENDPOINT", flickr.DefaultEndpoint)
	v.SetDefault("BADGERDB_PATH", "./badger_data")
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("FETCH_WORKERS", 0)
	v.SetDefault("GC_INTERVAL", 5*time.Minute)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) validate() error {
	if c.FlickrEndpoint == "" {
		return fmt.Errorf("FLICKR_ENDPOINT must not be empty")
	}
	if c.FetchWorkers < 0 {
		return fmt.Errorf("FETCH_WORKERS must not be negative, got %d", c.FetchWorkers)
	}
	if c.GCInterval <= 0 {
		return fmt.Errorf("GC_INTERVAL must be positive, got %s", c.GCInterval)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// Level returns the configured logrus level. LoadConfig has already validated it.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
