package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"impactradar"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers             []string `yaml:"brokers"`
		RecommendationTopic string   `yaml:"recommendation_topic" default:"impact.retrain.recommendations"`
		CalibrationTopic    string   `yaml:"calibration_topic" default:"impact.calibration.metrics"`
		OutcomeTopic        string   `yaml:"outcome_topic" default:"impact.outcomes.labeled"`
		LogTopic            string   `yaml:"log_topic" default:"impact.logs.aggregated"`
		RequiredAcks        int      `yaml:"required_acks" default:"1"`
		Compression         string   `yaml:"compression" default:"snappy"`
		Producer            struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"impactradar-scoring"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Artifacts struct {
		Dir string `yaml:"dir" default:"artifacts"`
	} `yaml:"artifacts"`
	Scoring struct {
		FeatureVersion  string        `yaml:"feature_version" default:"v1"`
		CoverageLevels  []float64     `yaml:"coverage_levels"`
		DefaultCoverage float64       `yaml:"default_coverage" default:"0.8"`
		MinTrainSamples int           `yaml:"min_train_samples" default:"100"`
		QueryTimeout    time.Duration `yaml:"query_timeout" default:"30s"`
	} `yaml:"scoring"`
	Monitor struct {
		MaxModelAgeDays int           `yaml:"max_model_age_days" default:"30"`
		MinNewSamples   int           `yaml:"min_new_samples" default:"200"`
		MaxAccuracyDrop float64       `yaml:"max_accuracy_drop" default:"0.05"`
		AccuracyWindow  time.Duration `yaml:"accuracy_window" default:"720h"`
		DriftWindow     time.Duration `yaml:"drift_window" default:"720h"`
		PSIBins         int           `yaml:"psi_bins" default:"10"`
		KeyFeatures     []string      `yaml:"key_features"`
	} `yaml:"monitor"`
	Queue struct {
		Workers    int           `yaml:"workers" default:"2"`
		QueueSize  int           `yaml:"queue_size" default:"64"`
		RetryLimit int           `yaml:"retry_limit" default:"2"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
		LockTTL    time.Duration `yaml:"lock_ttl" default:"30m"`
		StatusTTL  time.Duration `yaml:"status_ttl" default:"24h"`
	} `yaml:"queue"`
}

// Load reads and parses a YAML configuration file, applying defaults first.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(c.Scoring.CoverageLevels) == 0 {
		c.Scoring.CoverageLevels = []float64{0.8, 0.9}
	}
	if len(c.Monitor.KeyFeatures) == 0 {
		c.Monitor.KeyFeatures = []string{"base_score", "market_vol", "sentiment", "surprise"}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("ARTIFACT_DIR"); v != "" {
		c.Artifacts.Dir = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	for _, l := range c.Scoring.CoverageLevels {
		if l <= 0 || l >= 1 {
			return fmt.Errorf("scoring.coverage_levels must be in (0, 1), got %v", l)
		}
	}
	if c.Monitor.PSIBins < 2 {
		return fmt.Errorf("monitor.psi_bins must be at least 2, got %d", c.Monitor.PSIBins)
	}
	return nil
}
