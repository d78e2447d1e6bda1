package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Database DatabaseConfig `mapstructure:"database"`
	Lock     LockConfig     `mapstructure:"lock"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Review   ReviewConfig   `mapstructure:"review"`
	Report   ReportConfig   `mapstructure:"report"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port" validate:"min=1,max=65535"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StoreConfig selects where schedule records are kept.
type StoreConfig struct {
	Driver    string `mapstructure:"driver" validate:"oneof=memory yaml mysql"`
	Directory string `mapstructure:"directory" validate:"required_if=Driver yaml"`
}

type DatabaseConfig struct {
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Database        string            `mapstructure:"database"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration     `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration     `mapstructure:"conn_max_idle_time"`
}

// LockConfig selects how reviews of the same concept are serialized.
// Use redis when several server instances share one store.
type LockConfig struct {
	Driver      string        `mapstructure:"driver" validate:"oneof=local redis"`
	TTL         time.Duration `mapstructure:"ttl" validate:"gt=0"`
	WaitTimeout time.Duration `mapstructure:"wait_timeout" validate:"gt=0"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// CatalogConfig selects where learners' concept catalogs are read from.
type CatalogConfig struct {
	Driver           string        `mapstructure:"driver" validate:"oneof=none yaml http"`
	Directory        string        `mapstructure:"directory" validate:"required_if=Driver yaml"`
	BaseURL          string        `mapstructure:"base_url" validate:"required_if=Driver http,omitempty,url"`
	Token            string        `mapstructure:"token"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetryAttempts uint          `mapstructure:"max_retry_attempts"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	// SyncSchedule is a cron expression; reviewer-server synchronizes SyncLearners on it when set.
	SyncSchedule string   `mapstructure:"sync_schedule" validate:"omitempty,cron"`
	SyncLearners []string `mapstructure:"sync_learners" validate:"required_with=SyncSchedule,dive,required"`
}

type ReviewConfig struct {
	ConflictRetries uint `mapstructure:"conflict_retries"`
}

type ReportConfig struct {
	Template        string `mapstructure:"template" validate:"omitempty,file"`
	OutputDirectory string `mapstructure:"output_directory"`
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
}

func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/reviewer")
	}

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
	}, nil
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("store.driver", "yaml")
	v.SetDefault("store.directory", filepath.Join("data", "schedules"))
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.database", "reviewer")
	v.SetDefault("database.username", "user")
	v.SetDefault("lock.driver", "local")
	v.SetDefault("lock.ttl", 10*time.Second)
	v.SetDefault("lock.wait_timeout", 5*time.Second)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.prefix", "reviewer:lock:")
	v.SetDefault("catalog.driver", "yaml")
	v.SetDefault("catalog.directory", filepath.Join("data", "catalogs"))
	v.SetDefault("catalog.timeout", 30*time.Second)
	v.SetDefault("catalog.max_retry_attempts", 3)
	v.SetDefault("catalog.retry_delay", time.Second)
	v.SetDefault("review.conflict_retries", 5)
	v.SetDefault("report.template", "")
	v.SetDefault("report.output_directory", filepath.Join("outputs", "reports"))

	// Secrets are bound to environment variables
	if err := v.BindEnv("database.password", "DB_PASSWORD"); err != nil {
		return nil, fmt.Errorf("failed to bind DB_PASSWORD environment variable: %w", err)
	}
	if err := v.BindEnv("redis.password", "REDIS_PASSWORD"); err != nil {
		return nil, fmt.Errorf("failed to bind REDIS_PASSWORD environment variable: %w", err)
	}
	if err := v.BindEnv("catalog.token", "CATALOG_API_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind CATALOG_API_TOKEN environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := loader.validator.Struct(cfg); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMsgs []string
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, e.Translate(loader.translator))
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}

	return &cfg, nil
}
