// Package config loads server settings from a YAML file and EVENTCERT_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no file is given and it exists.
const DefaultPath = "/etc/eventcert/eventcert.yaml"

// EnvPrefix prefixes every environment variable, e.g. EVENTCERT_STORAGE_BACKEND.
const EnvPrefix = "eventcert"

// Config is the full server configuration.
type Config struct {
	GRPCAddr        string        `yaml:"grpcAddr"        envconfig:"GRPC_ADDR"        validate:"required"`
	HTTPAddr        string        `yaml:"httpAddr"        envconfig:"HTTP_ADDR"        validate:"required"`
	DSN             string        `yaml:"dsn"             envconfig:"DSN"              validate:"required"`
	JWTKey          string        `yaml:"jwtKey"          envconfig:"JWT_KEY"          validate:"required,min=16"`
	TLSCert         string        `yaml:"tlsCert"         envconfig:"TLS_CERT"         validate:"required_with=TLSKey"`
	TLSKey          string        `yaml:"tlsKey"          envconfig:"TLS_KEY"          validate:"required_with=TLSCert"`
	PublicBaseURL   string        `yaml:"publicBaseURL"   envconfig:"PUBLIC_BASE_URL"  validate:"omitempty,http_url"`
	Dev             bool          `yaml:"dev"             envconfig:"DEV"`
	TrustProxy      bool          `yaml:"trustProxy"      envconfig:"TRUST_PROXY"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`

	Storage StorageConfig `yaml:"storage" envconfig:"STORAGE"`
	Render  RenderConfig  `yaml:"render"  envconfig:"RENDER"`
	Policy  PolicyConfig  `yaml:"policy"  envconfig:"POLICY"`
	Limiter LimiterConfig `yaml:"limiter" envconfig:"LIMITER"`
	Kafka   KafkaConfig   `yaml:"kafka"   envconfig:"KAFKA"`

	RedisURL string `yaml:"redisURL" envconfig:"REDIS_URL"`
}

// StorageConfig selects where template HTML and PDFs live.
type StorageConfig struct {
	Backend            string `yaml:"backend"            envconfig:"BACKEND"             validate:"oneof=local gcs"`
	LocalDir           string `yaml:"localDir"           envconfig:"LOCAL_DIR"           validate:"required_if=Backend local"`
	GCSBucket          string `yaml:"gcsBucket"          envconfig:"GCS_BUCKET"          validate:"required_if=Backend gcs"`
	GCSCredentialsFile string `yaml:"gcsCredentialsFile" envconfig:"GCS_CREDENTIALS_FILE"`
}

// RenderConfig tunes the headless browser.
type RenderConfig struct {
	ChromePath    string        `yaml:"chromePath"    envconfig:"CHROME_PATH"`
	Timeout       time.Duration `yaml:"timeout"       envconfig:"TIMEOUT"        validate:"gt=0"`
	MaxConcurrent int64         `yaml:"maxConcurrent" envconfig:"MAX_CONCURRENT" validate:"gte=1"`
}

// PolicyConfig holds optional eligibility rules.
type PolicyConfig struct {
	RequirePastEvent bool `yaml:"requirePastEvent" envconfig:"REQUIRE_PAST_EVENT"`
}

// LimiterConfig throttles failed public verification lookups.
type LimiterConfig struct {
	Backend  string        `yaml:"backend"  envconfig:"BACKEND"   validate:"oneof=postgres redis"`
	Window   time.Duration `yaml:"window"   envconfig:"WINDOW"    validate:"gt=0"`
	MaxFails int           `yaml:"maxFails" envconfig:"MAX_FAILS" validate:"gte=1"`
	BlockFor time.Duration `yaml:"blockFor" envconfig:"BLOCK_FOR" validate:"gt=0"`
}

// KafkaConfig enables certificate.issued events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" envconfig:"BROKERS"`
	Topic   string   `yaml:"topic"   envconfig:"TOPIC"`
	// Timeout bounds one publish, including broker retries.
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		GRPCAddr:        ":8443",
		HTTPAddr:        ":8080",
		ShutdownTimeout: 10 * time.Second,
		Storage: StorageConfig{
			Backend:  "local",
			LocalDir: "./data",
		},
		Render: RenderConfig{
			Timeout:       60 * time.Second,
			MaxConcurrent: 2,
		},
		Limiter: LimiterConfig{
			Backend:  "postgres",
			Window:   15 * time.Minute,
			MaxFails: 20,
			BlockFor: 15 * time.Minute,
		},
		Kafka: KafkaConfig{Topic: "eventcert.certificate.issued", Timeout: 5 * time.Second},
	}
}

// Load applies defaults, then the YAML file, then environment variables, and validates the result.
// An empty path falls back to DefaultPath when that file exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(buf))
		dec.KnownFields(true)
		if err = dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Limiter.Backend == "redis" && c.RedisURL == "" {
		return errors.New("invalid config: limiter backend redis requires redisURL")
	}
	return nil
}
