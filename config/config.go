package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	SDB      SDBConfig      `yaml:"sdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Channels ChannelsConfig `yaml:"channels"`
	Storage  StorageConfig  `yaml:"storage"`
	Capture  CaptureConfig  `yaml:"capture"`
	Export   ExportConfig   `yaml:"export"`
}

type SDBConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type ChannelsConfig struct {
	RawBuffer    int `yaml:"raw_buffer"`
	RecordBuffer int `yaml:"record_buffer"`
}

type StorageConfig struct {
	Dir     string      `yaml:"dir"`
	DeepDir bool        `yaml:"deep_dir"`
	S3      S3Config    `yaml:"s3"`
	Kafka   KafkaConfig `yaml:"kafka"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type CaptureConfig struct {
	URL       string             `yaml:"url"`
	Exchange  string             `yaml:"exchange"`
	TZName    string             `yaml:"tz_name"`
	Symbols   []InstrumentConfig `yaml:"symbols"`
	Candles   CandlesConfig      `yaml:"candles"`
	RateLimit RateLimitConfig    `yaml:"rate_limit"`
	Reconnect ReconnectConfig    `yaml:"reconnect"`
}

type InstrumentConfig struct {
	Symbol     string  `yaml:"symbol"`
	Instrument string  `yaml:"instrument"`
	SecID      int64   `yaml:"secid"`
	Depth      uint8   `yaml:"depth"`
	PxStep     float64 `yaml:"px_step"`
}

type CandlesConfig struct {
	Resolutions []int `yaml:"resolutions"` // seconds per candle
	StartTime   int   `yaml:"start_time"`  // seconds since midnight
	EndTime     int   `yaml:"end_time"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type ReconnectConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

type ExportConfig struct {
	Parquet ParquetConfig `yaml:"parquet"`
}

type ParquetConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Dir         string `yaml:"dir"`
	Compression string `yaml:"compression"`
}

var envPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// expandEnv substitutes ${VAR} references in the raw YAML with environment
// variable values before parsing.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, "config/config.yml", map[string]string{
		environmentProduction: "config/config.prod.yml",
		environmentStaging:    "config/config.stag.yml",
	})

	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Logging:  LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Channels: ChannelsConfig{RawBuffer: 1024, RecordBuffer: 1024},
	}
	if err := yaml.Unmarshal(expandEnv(data), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.SDB.Name == "" {
		return fmt.Errorf("sdb.name is required")
	}
	if cfg.SDB.Version == "" {
		return fmt.Errorf("sdb.version is required")
	}

	if cfg.Channels.RawBuffer <= 0 {
		return fmt.Errorf("channels.raw_buffer must be greater than 0")
	}
	if cfg.Channels.RecordBuffer <= 0 {
		return fmt.Errorf("channels.record_buffer must be greater than 0")
	}

	if cfg.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}

	for i, s := range cfg.Capture.Symbols {
		if s.Symbol == "" || s.Instrument == "" {
			return fmt.Errorf("capture.symbols[%d]: symbol and instrument are required", i)
		}
		if s.Depth == 0 || s.Depth > 15 {
			return fmt.Errorf("capture.symbols[%d]: depth must be in 1..15", i)
		}
		if s.PxStep <= 0 {
			return fmt.Errorf("capture.symbols[%d]: px_step must be positive", i)
		}
	}

	c := cfg.Capture.Candles
	if len(c.Resolutions) > 0 {
		if c.EndTime <= c.StartTime {
			return fmt.Errorf("capture.candles.end_time must be after start_time")
		}
		for _, r := range c.Resolutions {
			if r <= 0 || r > 65535 {
				return fmt.Errorf("capture.candles resolution %d out of range", r)
			}
		}
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	if cfg.Storage.Kafka.Enabled && len(cfg.Storage.Kafka.Brokers) == 0 {
		return fmt.Errorf("storage.kafka.brokers is required when kafka is enabled")
	}

	return nil
}

var s3BucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	return s3BucketPattern.MatchString(name)
}
