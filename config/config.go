// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	configPath = pflag.String("config", "", "Path to the config.toml file")

	validLogLevels     = []string{"debug", "info", "warn", "error", "fatal"}
	validLogFormats    = []string{"console", "json"}
	validStorageDrvs   = []string{"json", "sqlite", "postgres"}
	validQueueDrivers  = []string{"memory", "redis"}
	validUserRoles     = []string{"user", "admin"}
	defaultDataDirName = "data"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Host     HostConfig     `mapstructure:"host"`
	Security SecurityConfig `mapstructure:"security"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Data     DataConfig     `mapstructure:"data"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Encoder  EncoderConfig  `mapstructure:"encoder"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Mirror   MirrorConfig   `mapstructure:"mirror"`
}

type AppConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

type HostConfig struct {
	Port int      `mapstructure:"port"`
	CORS []string `mapstructure:"cors"`
}

type SecurityConfig struct {
	// Requests per second per client ip, 0 disables limiting
	RateLimit       int    `mapstructure:"rate_limit"`
	TurnstileSecret string `mapstructure:"turnstile_secret"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type User struct {
	ID           string `mapstructure:"id"`
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"`
}

type AuthConfig struct {
	Users []User `mapstructure:"users"`
}

type DataConfig struct {
	Dir string `mapstructure:"dir"`

	UploadsDir string `mapstructure:"-"`
	OutputsDir string `mapstructure:"-"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

type UploadConfig struct {
	// MiB
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`

	MaxBytes int64 `mapstructure:"-"`
}

type EncoderConfig struct {
	Path         string        `mapstructure:"path"`
	VideoCodec   string        `mapstructure:"video_codec"`
	Preset       string        `mapstructure:"preset"`
	CRF          int           `mapstructure:"crf"`
	AudioCodec   string        `mapstructure:"audio_codec"`
	AudioBitrate string        `mapstructure:"audio_bitrate"`
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	MaxDuration  time.Duration `mapstructure:"max_duration"`
}

type QueueConfig struct {
	Driver          string `mapstructure:"driver"`
	RedisAddr       string `mapstructure:"redis_addr"`
	RequeueInterval string `mapstructure:"requeue_interval"`
}

type MirrorConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup parses the command line and loads the configuration into the
// global viper instance. It returns an error if something is critically
// wrong and the application can't run because of that.
func Setup() (*Config, error) {
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)

	return Load(viper.GetViper(), *configPath)
}

// Load reads path (or config.toml in the working directory when path is
// empty), applies env overrides and defaults and validates the result
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetConfigType("toml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "APP_LOG_LEVEL")
	v.BindEnv("app.log_format", "APP_LOG_FORMAT")

	v.BindEnv("host.port", "HOST_PORT")
	v.BindEnv("host.cors", "HOST_CORS")

	v.BindEnv("security.rate_limit", "SECURITY_RATE_LIMIT")
	v.BindEnv("security.turnstile_secret", "SECURITY_TURNSTILE_SECRET")

	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.ttl", "JWT_TTL")

	v.BindEnv("data.dir", "DATA_DIR")

	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.path", "STORAGE_PATH")
	v.BindEnv("storage.dsn", "STORAGE_DSN")

	v.BindEnv("upload.max_size", "UPLOAD_MAX_SIZE")
	v.BindEnv("upload.allowed_types", "UPLOAD_ALLOWED_TYPES")

	v.BindEnv("encoder.path", "ENCODER_PATH")
	v.BindEnv("encoder.workers", "ENCODER_WORKERS")
	v.BindEnv("encoder.max_duration", "ENCODER_MAX_DURATION")

	v.BindEnv("queue.driver", "QUEUE_DRIVER")
	v.BindEnv("queue.redis_addr", "QUEUE_REDIS_ADDR")

	v.BindEnv("mirror.enabled", "MIRROR_ENABLED")
	v.BindEnv("mirror.bucket", "MIRROR_BUCKET")
	v.BindEnv("mirror.region", "MIRROR_REGION")
	v.BindEnv("mirror.endpoint", "MIRROR_ENDPOINT")
	v.BindEnv("mirror.access_key_id", "MIRROR_ACCESS_KEY_ID")
	v.BindEnv("mirror.secret_access_key", "MIRROR_SECRET_ACCESS_KEY")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.cors", []string{})

	v.SetDefault("security.rate_limit", 20)

	v.SetDefault("jwt.ttl", "2h")

	v.SetDefault("data.dir", defaultDataDirName)

	v.SetDefault("storage.driver", "json")

	v.SetDefault("upload.max_size", 1024)
	v.SetDefault("upload.allowed_types", []string{})

	v.SetDefault("encoder.path", "ffmpeg")
	v.SetDefault("encoder.video_codec", "libx264")
	v.SetDefault("encoder.preset", "veryslow")
	v.SetDefault("encoder.crf", 23)
	v.SetDefault("encoder.audio_codec", "aac")
	v.SetDefault("encoder.audio_bitrate", "128k")
	v.SetDefault("encoder.workers", runtime.NumCPU())
	v.SetDefault("encoder.queue_size", 64)
	v.SetDefault("encoder.max_duration", "0s")

	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.requeue_interval", "@every 30s")

	v.SetDefault("mirror.enabled", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file, %w", err)
		}

		zap.L().Warn("No config.toml found, running on defaults and environment")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config, %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	c.Data.UploadsDir = filepath.Join(c.Data.Dir, "uploads")
	c.Data.OutputsDir = filepath.Join(c.Data.Dir, "outputs")

	if c.Storage.Path == "" {
		switch c.Storage.Driver {
		case "json":
			c.Storage.Path = filepath.Join(c.Data.Dir, "db.json")
		case "sqlite":
			c.Storage.Path = filepath.Join(c.Data.Dir, "database.db")
		}
	}

	c.Upload.MaxBytes = c.Upload.MaxSize << 20

	return &c, nil
}

func (c *Config) validate() error {
	if !slices.Contains(validLogLevels, c.App.LogLevel) {
		return errors.New("invalid log level provided")
	}

	if !slices.Contains(validLogFormats, c.App.LogFormat) {
		return errors.New("invalid log format provided")
	}

	if c.Host.Port <= 0 || c.Host.Port > 65535 {
		return errors.New("invalid port provided")
	}

	if c.Security.RateLimit < 0 {
		return errors.New("security.rate_limit can't be negative")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("no jwt.secret set. Set it in config.toml or the JWT_SECRET environment variable, for example:\n\n%s", genSecret())
	}

	if c.JWT.TTL <= 0 {
		return errors.New("jwt.ttl must be bigger than 0")
	}

	seen := make(map[string]bool, len(c.Auth.Users))
	for i, u := range c.Auth.Users {
		if u.ID == "" || u.Username == "" || u.PasswordHash == "" {
			return fmt.Errorf("auth.users[%d] needs an id, username and password_hash", i)
		}

		if seen[u.Username] {
			return fmt.Errorf("duplicate username %q in auth.users", u.Username)
		}
		seen[u.Username] = true

		if u.Role == "" {
			c.Auth.Users[i].Role = "user"
		} else if !slices.Contains(validUserRoles, u.Role) {
			return fmt.Errorf("invalid role %q for user %q", u.Role, u.Username)
		}
	}

	if len(c.Auth.Users) == 0 {
		zap.L().Warn("No auth.users configured, nobody will be able to log in")
	}

	if c.Data.Dir == "" {
		return errors.New("data.dir can't be empty")
	}

	if !slices.Contains(validStorageDrvs, c.Storage.Driver) {
		return errors.New("invalid storage driver provided")
	}

	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return errors.New("storage.dsn is required for the postgres driver")
	}

	if c.Upload.MaxSize <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}

	if len(c.Upload.AllowedTypes) == 0 {
		zap.L().Debug("No upload.allowed_types specified, any video/* type will be accepted")
	}

	if c.Encoder.Path == "" {
		return errors.New("encoder.path can't be empty")
	}

	if c.Encoder.CRF < 0 || c.Encoder.CRF > 51 {
		return errors.New("encoder.crf must be between 0 and 51")
	}

	if c.Encoder.Workers < 1 {
		return errors.New("encoder.workers must be at least 1")
	}

	if c.Encoder.QueueSize < 1 {
		return errors.New("encoder.queue_size must be at least 1")
	}

	if c.Encoder.MaxDuration < 0 {
		return errors.New("encoder.max_duration can't be negative")
	}

	if !slices.Contains(validQueueDrivers, c.Queue.Driver) {
		return errors.New("invalid queue driver provided")
	}

	if c.Queue.Driver == "redis" && c.Queue.RedisAddr == "" {
		return errors.New("queue.redis_addr is required for the redis driver")
	}

	if c.Queue.RequeueInterval == "" {
		return errors.New("queue.requeue_interval can't be empty")
	}

	if c.Mirror.Enabled && c.Mirror.Bucket == "" {
		return errors.New("mirror.bucket can't be empty when the mirror is enabled")
	}

	if c.Security.TurnstileSecret == "" {
		zap.L().Debug("Turnstile is disabled, the login endpoint won't be guarded against bots")
	}

	return nil
}
