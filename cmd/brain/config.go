package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/AmitS1009/Constructure-AI/pkg/client"
)

// Environment variables that override the config file.
const (
	envBaseURL = "BRAIN_BASE_URL"
	envToken   = "BRAIN_TOKEN"
)

// Config is the brain CLI configuration file.
type Config struct {
	BaseURL   string        `yaml:"base_url"`
	Token     string        `yaml:"token"`
	Transport string        `yaml:"transport"`
	Timeout   time.Duration `yaml:"timeout"`
	StorePath string        `yaml:"store_path"`
	LogLevel  string        `yaml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		BaseURL:   "http://localhost:8000",
		Transport: client.TransportHTTP,
		Timeout:   client.DefaultTimeout,
		LogLevel:  "warn",
	}
}

// defaultConfigDir is where the config file and thread store live unless
// configured otherwise.
func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".brain"
	}
	return filepath.Join(dir, "brain")
}

// loadConfig reads the config file at path. An empty path means the default
// location, which may be absent.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(defaultConfigDir(), "config.yaml")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if v := os.Getenv(envBaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv(envToken); v != "" {
		cfg.Token = v
	}
	if cfg.StorePath == "" {
		cfg.StorePath = filepath.Join(defaultConfigDir(), "threads.db")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("config log_level: %w", err)
	}
	return cfg, nil
}

func (c Config) clientConfig(logger logrus.FieldLogger) client.Config {
	return client.Config{
		BaseURL:   c.BaseURL,
		Token:     c.Token,
		Timeout:   c.Timeout,
		Transport: c.Transport,
		Logger:    logger,
	}
}

func newLogger(level string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}
