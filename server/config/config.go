package config

import (
	"os"
	"time"

	"github.com/fairgrounds/deltashare/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the sharing server configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Auth       AuthConfig       `yaml:"auth"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Storage    StorageConfig    `yaml:"storage"`
	Signing    SigningConfig    `yaml:"signing"`
	Pagination PaginationConfig `yaml:"pagination"`
}

// ServerConfig represents the HTTP listener configuration
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`    // "json" or "console"
	FilePath string `yaml:"file_path"` // Path to log file, empty disables file output
	Console  bool   `yaml:"console"`   // Whether to log to console
}

// AuthConfig holds the bearer tokens accepted by the server
type AuthConfig struct {
	Tokens []TokenConfig `yaml:"tokens"`
}

// TokenConfig is a single bearer credential, optionally scoped to shares.
// An empty share list grants access to the full catalog.
type TokenConfig struct {
	Token  string   `yaml:"token"`
	Shares []string `yaml:"shares"`
}

// CatalogConfig points at the catalog definition file
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig represents the object storage backend connection
type StorageConfig struct {
	Endpoint              string `yaml:"endpoint"`
	AccessKey             string `yaml:"access_key"`
	SecretKey             string `yaml:"secret_key"`
	Region                string `yaml:"region"`
	UseSSL                bool   `yaml:"use_ssl"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	MaxRetries            int    `yaml:"max_retries"`
}

// SigningConfig controls pre-signed URL issuance
type SigningConfig struct {
	URLTTLSeconds int `yaml:"url_ttl_seconds"`
	Parallelism   int `yaml:"parallelism"`
}

// PaginationConfig controls listing page sizes and token lifetime
type PaginationConfig struct {
	DefaultMaxResults int `yaml:"default_max_results"`
	MaxMaxResults     int `yaml:"max_max_results"`
	TokenTTLSeconds   int `yaml:"token_ttl_seconds"`
}

// LoadDefaultConfig returns a default configuration
func LoadDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: DEFAULT_SERVER_ADDRESS,
			Port:    DEFAULT_SERVER_PORT,
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Console: true,
		},
		Catalog: CatalogConfig{
			Path: "deltashare-catalog.yml",
		},
		Storage: StorageConfig{
			Endpoint:              "localhost:9000",
			Region:                "us-east-1",
			RequestTimeoutSeconds: DEFAULT_STORAGE_TIMEOUT_SECONDS,
			MaxRetries:            DEFAULT_STORAGE_MAX_RETRIES,
		},
		Signing: SigningConfig{
			URLTTLSeconds: DEFAULT_URL_TTL_SECONDS,
			Parallelism:   DEFAULT_SIGNING_PARALLELISM,
		},
		Pagination: PaginationConfig{
			DefaultMaxResults: DEFAULT_MAX_RESULTS,
			MaxMaxResults:     MAX_MAX_RESULTS,
			TokenTTLSeconds:   DEFAULT_TOKEN_TTL_SECONDS,
		},
	}
}

// LoadConfig loads configuration from a file, applies environment
// overrides for credentials, and validates the result
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(ErrConfigFileReadFailed, err, "failed to read config file")
	}

	config := LoadDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(ErrConfigFileParseFailed, err, "failed to parse config file")
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(ErrConfigValidationFailed, err, "configuration validation failed")
	}

	return config, nil
}

// applyEnvOverrides lets deployments inject credentials without writing
// them into the config file. The variable names match the original
// fairgrounds deployment manifests.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		c.Storage.Endpoint = v
	}
	if v := os.Getenv("MINIO_ROOT_USER"); v != "" {
		c.Storage.AccessKey = v
	}
	if v := os.Getenv("MINIO_ROOT_PASSWORD"); v != "" {
		c.Storage.SecretKey = v
	}
	if v := os.Getenv("DELTA_SHARING_BEARER_TOKEN"); v != "" {
		c.Auth.Tokens = append(c.Auth.Tokens, TokenConfig{Token: v})
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if !IsValidPort(c.Server.Port) {
		return errors.Newf(ErrServerValidationFailed, "invalid server port %d", c.Server.Port)
	}
	if len(c.Auth.Tokens) == 0 {
		return errors.New(ErrAuthTokenRequired, "at least one bearer token must be configured")
	}
	for _, tc := range c.Auth.Tokens {
		if tc.Token == "" {
			return errors.New(ErrAuthTokenRequired, "bearer token value must not be empty")
		}
	}
	if c.Catalog.Path == "" {
		return errors.New(ErrCatalogPathRequired, "catalog path is required")
	}
	if err := c.Storage.Validate(); err != nil {
		return errors.Wrap(ErrStorageValidationFailed, err, "storage validation failed")
	}
	if c.Signing.URLTTLSeconds <= 0 {
		return errors.New(ErrSigningValidationFailed, "signing url_ttl_seconds must be positive")
	}
	if c.Signing.Parallelism <= 0 {
		return errors.New(ErrSigningValidationFailed, "signing parallelism must be positive")
	}
	if err := c.Pagination.Validate(); err != nil {
		return errors.Wrap(ErrPaginationValidationFailed, err, "pagination validation failed")
	}
	return nil
}

// Validate validates the storage configuration
func (s *StorageConfig) Validate() error {
	if s.Endpoint == "" {
		return errors.New(ErrStorageEndpointRequired, "storage endpoint is required")
	}
	if s.RequestTimeoutSeconds <= 0 {
		return errors.New(ErrStorageValidationFailed, "request_timeout_seconds must be positive")
	}
	if s.MaxRetries < 0 {
		return errors.New(ErrStorageValidationFailed, "max_retries must not be negative")
	}
	return nil
}

// Validate validates the pagination configuration
func (p *PaginationConfig) Validate() error {
	if p.DefaultMaxResults <= 0 {
		return errors.New(ErrPaginationValidationFailed, "default_max_results must be positive")
	}
	if p.MaxMaxResults < p.DefaultMaxResults {
		return errors.New(ErrPaginationValidationFailed, "max_max_results must not be below default_max_results")
	}
	if p.TokenTTLSeconds <= 0 {
		return errors.New(ErrPaginationValidationFailed, "token_ttl_seconds must be positive")
	}
	return nil
}

// GetURLTTL returns the pre-signed URL lifetime
func (c *Config) GetURLTTL() time.Duration {
	return time.Duration(c.Signing.URLTTLSeconds) * time.Second
}

// GetPageTokenTTL returns the pagination token lifetime
func (c *Config) GetPageTokenTTL() time.Duration {
	return time.Duration(c.Pagination.TokenTTLSeconds) * time.Second
}

// GetStorageTimeout returns the per-call storage backend timeout
func (c *Config) GetStorageTimeout() time.Duration {
	return time.Duration(c.Storage.RequestTimeoutSeconds) * time.Second
}
