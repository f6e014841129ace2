package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig is one AI provider entry; list order is fallback order.
type ProviderConfig struct {
	Name    string `yaml:"name"` // openai | anthropic
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseURL,omitempty"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	AI struct {
		Providers       []ProviderConfig `yaml:"providers"`
		CallTimeoutSecs int              `yaml:"callTimeoutSeconds"`
		MaxRetries      int              `yaml:"maxRetries"`
		BackoffBaseMS   int              `yaml:"backoffBaseMs"`
		BackoffFactor   float64          `yaml:"backoffFactor"`
		JitterFraction  float64          `yaml:"jitterFraction"`
	} `yaml:"ai"`

	Pipeline struct {
		SegmentMaxTokens    int      `yaml:"segmentMaxTokens"`
		Concurrency         int      `yaml:"concurrency"`
		JobTimeoutSecs      int      `yaml:"jobTimeoutSeconds"`
		SimilarityThreshold float64  `yaml:"similarityThreshold"`
		CorroborationBonus  float64  `yaml:"corroborationBonus"`
		RiskCategories      []string `yaml:"riskCategories"`
		ControlHints        []string `yaml:"controlHints"`
	} `yaml:"pipeline"`

	Auth struct {
		// tenant -> api key
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`
}

// Load baca file config.yaml
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.AI.CallTimeoutSecs == 0 {
		c.AI.CallTimeoutSecs = 30
	}
	if c.AI.MaxRetries == 0 {
		c.AI.MaxRetries = 3
	}
	if c.AI.BackoffBaseMS == 0 {
		c.AI.BackoffBaseMS = 1000
	}
	if c.AI.BackoffFactor == 0 {
		c.AI.BackoffFactor = 2
	}
	if c.AI.JitterFraction == 0 {
		c.AI.JitterFraction = 0.2
	}
	if c.Pipeline.SegmentMaxTokens == 0 {
		c.Pipeline.SegmentMaxTokens = 2000
	}
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = 4
	}
	if c.Pipeline.JobTimeoutSecs == 0 {
		c.Pipeline.JobTimeoutSecs = 300
	}
	if c.Pipeline.SimilarityThreshold == 0 {
		c.Pipeline.SimilarityThreshold = 0.85
	}
	if c.Pipeline.CorroborationBonus == 0 {
		c.Pipeline.CorroborationBonus = 0.1
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 60
	}
	if c.RateLimit.RefillRate == 0 {
		c.RateLimit.RefillRate = 1
	}
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		ssl,
	)
}

// CallTimeout returns the per-provider-call timeout.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.AI.CallTimeoutSecs) * time.Second
}

// JobTimeout returns the overall per-job timeout.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Pipeline.JobTimeoutSecs) * time.Second
}
