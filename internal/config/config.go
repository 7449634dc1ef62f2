package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Postgres   DBConfig
	Redis      RedisConfig
	S3         S3Config
	Prediction PredictionConfig
	Poller     PollerConfig
	Compositor CompositorConfig
	Webhook    WebhookConfig
	Logger     Logger
}

type ServerConfig struct {
	AppVersion string
	Port       string
	Mode       string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	PgDriver string
}

type RedisConfig struct {
	RedisAddr     string
	RedisPassword string
	DB            int
	MinIdleConns  int
	PoolSize      int
	PoolTimeout   int
	ProgressKey   string
}

type S3Config struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	OutputBucket string
}

type PredictionConfig struct {
	BaseURL        string
	APIToken       string
	Model          string
	UpscaleModel   string
	RequestTimeout time.Duration
}

type PollerConfig struct {
	Interval    time.Duration
	Concurrency int
}

type CompositorConfig struct {
	TempDir     string
	Preset      string
	CRF         int
	MaxCPUUsage float64
}

type WebhookConfig struct {
	Secret      string
	CallbackURL string
}

type Logger struct {
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
	Encoding          string
	Level             string
}

func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.AddConfigPath(".")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFound) {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if c.Poller.Interval <= 0 {
		c.Poller.Interval = 10 * time.Second
	}
	if c.Poller.Concurrency <= 0 {
		c.Poller.Concurrency = 8
	}
	if c.Prediction.RequestTimeout <= 0 {
		c.Prediction.RequestTimeout = 30 * time.Second
	}
	if c.Redis.ProgressKey == "" {
		c.Redis.ProgressKey = "job:progress:"
	}
	return &c, nil
}
