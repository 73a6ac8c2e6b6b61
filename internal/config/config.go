package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Database  DatabaseConfig `mapstructure:"database"`
	Mail      MailConfig     `mapstructure:"mail"`
	JWTSecret string         `mapstructure:"jwt_secret"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
}

// MailConfig drives grant notifications. Sink is "smtp" or "webhook";
// SiteURL builds the resource links in message bodies, AdminEmail receives
// a copy of every notice when set.
type MailConfig struct {
	Sink       string `mapstructure:"sink"`
	SMTPAddr   string `mapstructure:"smtp_addr"`
	From       string `mapstructure:"from"`
	WebhookURL string `mapstructure:"webhook_url"`
	SiteTitle  string `mapstructure:"site_title"`
	SiteURL    string `mapstructure:"site_url"`
	AdminEmail string `mapstructure:"admin_email"`
}

// ConnString returns the PostgreSQL connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../..")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.pool_size", 10)
	viper.SetDefault("jwt_secret", "changeme-secret")
	viper.SetDefault("mail.sink", "smtp")
	viper.SetDefault("mail.smtp_addr", "localhost:25")
	viper.SetDefault("mail.from", "noreply@localhost")
	viper.SetDefault("mail.site_title", "Data Portal")
	viper.SetDefault("mail.site_url", "http://localhost:8080")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
