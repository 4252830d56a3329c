package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	SMTP         SMTPConfig         `mapstructure:"smtp"`
	Surveillance SurveillanceConfig `mapstructure:"surveillance"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	RateLimitRPS   int `mapstructure:"rate_limit_rps"`
	RateLimitBurst int `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
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
}

// SurveillanceConfig is the scheduling policy. Days-based settings apply
// uniformly across protocols; per-item windows come from the items
// themselves.
type SurveillanceConfig struct {
	ProtocolFile          string `mapstructure:"protocol_file"`
	ReminderDaysBefore    int    `mapstructure:"reminder_days_before"`
	EscalationDaysOverdue int    `mapstructure:"escalation_days_overdue"`
	GraceDaysOverdue      int    `mapstructure:"grace_days_overdue"`
	NotifyTimeoutSeconds  int    `mapstructure:"notify_timeout_seconds"`
}

func (c SurveillanceConfig) NotifyTimeout() time.Duration {
	if c.NotifyTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.NotifyTimeoutSeconds) * time.Second
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeout_seconds", 30)
	viper.SetDefault("server.rate_limit_rps", 100)
	viper.SetDefault("server.rate_limit_burst", 200)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("surveillance.protocol_file", "config/protocols.json")
	viper.SetDefault("surveillance.reminder_days_before", 14)
	viper.SetDefault("surveillance.escalation_days_overdue", 30)
	viper.SetDefault("surveillance.grace_days_overdue", 30)
	viper.SetDefault("surveillance.notify_timeout_seconds", 10)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
