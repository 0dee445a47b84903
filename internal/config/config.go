// Package config loads hearth's configuration from a YAML file and
// environment variables, with ENV taking priority over the file.
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	Assistant AssistantConfig `yaml:"assistant"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Telephony TelephonyConfig `yaml:"telephony"`
	Digest    DigestConfig    `yaml:"digest"`
	Backup    BackupConfig    `yaml:"backup"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Addr returns the host:port the server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Backend       string `yaml:"backend"        env:"STORE_BACKEND"        env-default:"sqlite"`
	SQLitePath    string `yaml:"sqlite_path"    env:"STORE_SQLITE_PATH"    env-default:"./hearth.db"`
	RedisAddr     string `yaml:"redis_addr"     env:"STORE_REDIS_ADDR"     env-default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" env:"STORE_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db"       env:"STORE_REDIS_DB"       env-default:"0"`
}

// AuthConfig holds the shared dashboard password and the cron token.
type AuthConfig struct {
	DashboardPassword string `yaml:"dashboard_password" env:"HEARTH_PASSWORD" env-required:"true"`
	CronToken         string `yaml:"cron_token"         env:"CRON_TOKEN"`
}

// AssistantConfig holds Gemini settings for the calendar assistant.
type AssistantConfig struct {
	APIKey string `yaml:"api_key" env:"GEMINI_API_KEY"`
	Model  string `yaml:"model"   env:"GEMINI_MODEL"   env-default:"gemini-2.0-flash"`
}

// Enabled reports whether the assistant can be started.
func (a AssistantConfig) Enabled() bool { return a.APIKey != "" }

// TelegramConfig holds Telegram bot credentials for the family channel.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `yaml:"chat_id"   env:"TELEGRAM_CHAT_ID"`
}

// TelephonyConfig holds SMS/voice provider credentials.
type TelephonyConfig struct {
	AccountSID string `yaml:"account_sid" env:"TELEPHONY_ACCOUNT_SID"`
	AuthToken  string `yaml:"auth_token"  env:"TELEPHONY_AUTH_TOKEN"`
	FromNumber string `yaml:"from_number" env:"TELEPHONY_FROM_NUMBER"`
	ToNumber   string `yaml:"to_number"   env:"TELEPHONY_TO_NUMBER"`
}

// DigestConfig controls the morning digest window.
type DigestConfig struct {
	Hour     int    `yaml:"hour"     env:"DIGEST_HOUR"     env-default:"7"`
	Timezone string `yaml:"timezone" env:"DIGEST_TIMEZONE" env-default:"Local"`
}

// BackupConfig holds S3-compatible snapshot storage settings.
type BackupConfig struct {
	Endpoint   string `yaml:"endpoint"   env:"BACKUP_S3_ENDPOINT"`
	Bucket     string `yaml:"bucket"     env:"BACKUP_S3_BUCKET"`
	Region     string `yaml:"region"     env:"BACKUP_S3_REGION" env-default:"auto"`
	AccessKey  string `yaml:"access_key" env:"BACKUP_S3_ACCESS_KEY"`
	SecretKey  string `yaml:"secret_key" env:"BACKUP_S3_SECRET_KEY"`
	Prefix     string `yaml:"prefix"     env:"BACKUP_S3_PREFIX" env-default:"backups/"`
	Passphrase string `yaml:"passphrase" env:"BACKUP_PASSPHRASE"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}
