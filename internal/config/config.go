package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	SMTP       SMTPConfig
	SMS        SMSConfig
	Dispatcher DispatcherConfig
	Janitor    JanitorConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

type SMSConfig struct {
	APIBaseURL string `mapstructure:"api_base_url"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
}

// DispatcherConfig tunes the worker loop. Values can also be overridden from
// the environment (DISPATCHER_* variables) for per-instance tuning without a
// config file rollout.
type DispatcherConfig struct {
	BatchSize           int `mapstructure:"batch_size" envconfig:"BATCH_SIZE"`
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" envconfig:"POLL_INTERVAL_SECONDS"`
	SendTimeoutSeconds  int `mapstructure:"send_timeout_seconds" envconfig:"SEND_TIMEOUT_SECONDS"`
}

func (c DispatcherConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c DispatcherConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

type JanitorConfig struct {
	IntervalSeconds   int `mapstructure:"interval_seconds"`
	StuckAfterMinutes int `mapstructure:"stuck_after_minutes"`
	RetentionDays     int `mapstructure:"retention_days"`
	RetrySweepHours   int `mapstructure:"retry_sweep_hours"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Environment beats file for dispatcher tuning.
	if err := envconfig.Process("DISPATCHER", &config.Dispatcher); err != nil {
		return nil, fmt.Errorf("failed to process dispatcher env overrides: %w", err)
	}

	return &config, nil
}
