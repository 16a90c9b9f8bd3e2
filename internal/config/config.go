package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"drivelens/internal/logging"
	"drivelens/internal/preview"
	"drivelens/internal/service/drive"
	"drivelens/internal/service/s3"
)

const envPrefix = "DRIVELENS"

type Config struct {
	Server    ServerConfig    `mapstructure:"Server"`
	Drive     DriveConfig     `mapstructure:"Drive"`
	Logging   logging.Config  `mapstructure:"Logging"`
	Resources ResourcesConfig `mapstructure:"Resources"`
	Sessions  SessionsConfig  `mapstructure:"Sessions"`
	Preview   PreviewConfig   `mapstructure:"Preview"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"Port" validate:"required,numeric"`
	GRPCPort        string        `mapstructure:"GRPCPort" validate:"required,numeric"`
	BaseURL         string        `mapstructure:"BaseURL" validate:"required,url"`
	ShutdownTimeout time.Duration `mapstructure:"ShutdownTimeout" validate:"gt=0"`
	SessionTTL      time.Duration `mapstructure:"SessionTTL" validate:"gt=0"`
	AllowedOrigins  []string      `mapstructure:"AllowedOrigins"`
}

type DriveConfig struct {
	drive.Config      `mapstructure:",squash"`
	DocumentViewerURL string `mapstructure:"DocumentViewerURL" validate:"required,contains=%s"`
	SlideViewerURL    string `mapstructure:"SlideViewerURL" validate:"required,contains=%s"`
}

// Viewer returns the embedded viewer templates.
func (c DriveConfig) Viewer() preview.Viewer {
	return preview.Viewer{DocumentURL: c.DocumentViewerURL, SlideURL: c.SlideViewerURL}
}

type ResourcesConfig struct {
	Backend string     `mapstructure:"Backend" validate:"oneof=memory s3"`
	S3      *s3.Config `mapstructure:"S3"`
}

type SessionsConfig struct {
	Backend       string          `mapstructure:"Backend" validate:"oneof=memory postgres badger"`
	Postgres      *DatabaseConfig `mapstructure:"Postgres"`
	BadgerDir     string          `mapstructure:"BadgerDir"`
	MigrationsDir string          `mapstructure:"MigrationsDir"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host" validate:"required"`
	Port     string `mapstructure:"Port" validate:"required,numeric"`
	User     string `mapstructure:"User" validate:"required"`
	Password string `mapstructure:"Password" validate:"required"`
	Name     string `mapstructure:"Name" validate:"required"`
	SSLMode  string `mapstructure:"SSLMode"`
}

type PreviewConfig struct {
	OptimizeImages bool `mapstructure:"OptimizeImages"`
	MaxImageSize   int  `mapstructure:"MaxImageSize" validate:"gte=16,lte=8192"`
}

// NewConfig loads path (YAML, optional) and DRIVELENS_* environment
// variables, applies defaults and validates the result.
func NewConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindOptionalEnv(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Warning: config file %s not found, using defaults and environment\n", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if p := cfg.Sessions.Postgres; p != nil && p.SSLMode == "" {
		p.SSLMode = "disable"
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := drive.DefaultConfig()

	v.SetDefault("Server.Port", "2525")
	v.SetDefault("Server.GRPCPort", "50051")
	v.SetDefault("Server.BaseURL", "http://localhost:2525")
	v.SetDefault("Server.ShutdownTimeout", 30*time.Second)
	v.SetDefault("Server.SessionTTL", time.Hour)
	v.SetDefault("Server.AllowedOrigins", []string{})

	v.SetDefault("Drive.BaseURL", d.BaseURL)
	v.SetDefault("Drive.PageSize", d.PageSize)
	v.SetDefault("Drive.Timeout", d.Timeout)
	v.SetDefault("Drive.MaxContentBytes", d.MaxContentBytes)
	v.SetDefault("Drive.Retry.MaxAttempts", d.Retry.MaxAttempts)
	v.SetDefault("Drive.Retry.InitialWait", d.Retry.InitialWait)
	v.SetDefault("Drive.Retry.MaxWait", d.Retry.MaxWait)
	v.SetDefault("Drive.Retry.Multiplier", d.Retry.Multiplier)
	v.SetDefault("Drive.Retry.Jitter", d.Retry.Jitter)
	v.SetDefault("Drive.DocumentViewerURL", preview.DefaultDocumentViewerURL)
	v.SetDefault("Drive.SlideViewerURL", preview.DefaultSlideViewerURL)

	v.SetDefault("Logging.Level", "info")
	v.SetDefault("Logging.Format", "json")
	v.SetDefault("Logging.Output", "stdout")

	v.SetDefault("Resources.Backend", "memory")

	v.SetDefault("Sessions.Backend", "memory")
	v.SetDefault("Sessions.BadgerDir", "/var/lib/drivelens/sessions")
	v.SetDefault("Sessions.MigrationsDir", "migrations")

	v.SetDefault("Preview.OptimizeImages", false)
	v.SetDefault("Preview.MaxImageSize", 1024)
}

// bindOptionalEnv binds keys of sections that have no defaults, so they stay
// unset unless the environment provides them. The Postgres keys also accept
// the plain DATABASE_* names.
func bindOptionalEnv(v *viper.Viper) {
	for _, key := range []string{"AccessKeyID", "SecretAccessKey", "Bucket", "Region", "Endpoint", "Prefix", "PresignTTL"} {
		v.BindEnv("Resources.S3."+key, envName("Resources.S3."+key))
	}
	for _, key := range []string{"Host", "Port", "User", "Password", "Name", "SSLMode"} {
		v.BindEnv("Sessions.Postgres."+key, envName("Sessions.Postgres."+key), "DATABASE_"+strings.ToUpper(key))
	}
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// MigrationURL is the golang-migrate form of the connection string.
func (c *DatabaseConfig) MigrationURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}
