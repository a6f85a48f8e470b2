// Package config содержит логику чтения конфигурации сервиса договоров.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mmeshcher/realty-contracts/internal/lifecycle"
)

// Storage содержит параметры S3-совместимого хранилища вложений.
type Storage struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"contract-documents"`
	UseSSL    bool   `env:"USE_SSL"`
	PublicURL string `env:"PUBLIC_URL"`
}

// Config содержит параметры конфигурации сервиса договоров.
type Config struct {
	RunAddress       string `env:"RUN_ADDRESS"`
	DatabaseURI      string `env:"DATABASE_URI"`
	DirectoryAddress string `env:"DIRECTORY_ADDRESS"`

	Storage Storage `envPrefix:"STORAGE_"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	// Списки статусов через запятую, "*" означает все неконечные.
	CancelFrom    string `env:"CONTRACT_CANCEL_FROM"`
	TerminateFrom string `env:"CONTRACT_TERMINATE_FROM"`

	AddressSyncInterval time.Duration `env:"ADDRESS_SYNC_INTERVAL" envDefault:"10m"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envDirectoryAddress := cfg.DirectoryAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.DirectoryAddress, "r", "", "property and customer directory address")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envDirectoryAddress != "" {
		cfg.DirectoryAddress = envDirectoryAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if _, err := cfg.Policy(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Policy собирает политику переходов. Незаданный список берётся из политики по умолчанию.
func (c *Config) Policy() (lifecycle.Policy, error) {
	p := lifecycle.DefaultPolicy()

	cancel, err := lifecycle.ParseStatusList(c.CancelFrom)
	if err != nil {
		return lifecycle.Policy{}, fmt.Errorf("parse CONTRACT_CANCEL_FROM: %w", err)
	}
	if len(cancel) > 0 {
		p.CancelFrom = cancel
	}

	terminate, err := lifecycle.ParseStatusList(c.TerminateFrom)
	if err != nil {
		return lifecycle.Policy{}, fmt.Errorf("parse CONTRACT_TERMINATE_FROM: %w", err)
	}
	if len(terminate) > 0 {
		p.TerminateFrom = terminate
	}

	return p, nil
}

// StorageEnabled сообщает, настроено ли хранилище вложений.
func (c *Config) StorageEnabled() bool {
	return c.Storage.Endpoint != ""
}
