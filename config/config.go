// Package config enables config file parsing.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/multisig"
)

// Config contains the CLI configuration.
type Config struct {
	Server    *ServerConfig    `koanf:"server"`
	Client    *ClientConfig    `koanf:"client"`
	Simulator *SimulatorConfig `koanf:"simulator"`
	Log       *LogConfig       `koanf:"log"`
	Metrics   *MetricsConfig   `koanf:"metrics"`
}

// Validate performs config validation.
func (cfg *Config) Validate() error {
	if cfg.Server != nil {
		if err := cfg.Server.Validate(); err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}
	if cfg.Client != nil {
		if err := cfg.Client.Validate(); err != nil {
			return fmt.Errorf("client: %w", err)
		}
	}
	if cfg.Simulator != nil {
		if err := cfg.Simulator.Validate(); err != nil {
			return fmt.Errorf("simulator: %w", err)
		}
	}
	if cfg.Log != nil {
		if err := cfg.Log.Validate(); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	if cfg.Metrics != nil {
		if err := cfg.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	return nil
}

// ServerConfig contains the directory API server configuration.
type ServerConfig struct {
	// Endpoint is the service endpoint from which to serve the API.
	Endpoint string `koanf:"endpoint"`

	// CorsOrigins are the origins allowed to call the API from a browser.
	// Empty allows any origin.
	CorsOrigins []string `koanf:"cors_origins"`

	Storage *StorageConfig `koanf:"storage"`
}

// Validate validates the server configuration.
func (cfg *ServerConfig) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("malformed server endpoint '%s'", cfg.Endpoint)
	}
	if cfg.Storage == nil {
		return fmt.Errorf("no storage config provided")
	}
	return cfg.Storage.Validate()
}

// StorageBackend is a storage backend.
type StorageBackend uint

const (
	// BackendPostgres is the PostgreSQL storage backend.
	BackendPostgres StorageBackend = iota
)

// String returns the string representation of a StorageBackend.
func (sb *StorageBackend) String() string {
	switch *sb {
	case BackendPostgres:
		return "postgres"
	default:
		panic("config: unsupported storage backend")
	}
}

// Set sets the StorageBackend to the value specified by the provided string.
func (sb *StorageBackend) Set(s string) error {
	switch strings.ToLower(s) {
	case "postgres":
		*sb = BackendPostgres
	default:
		return fmt.Errorf("config: invalid storage backend: '%s'", s)
	}

	return nil
}

// Type returns the list of supported StorageBackends.
func (sb *StorageBackend) Type() string {
	return "[postgres]"
}

// StorageConfig contains the storage layer configuration.
type StorageConfig struct {
	// Endpoint is the storage endpoint, a postgres:// URL.
	Endpoint string `koanf:"endpoint"`

	// Backend is the storage backend to select.
	Backend string `koanf:"backend"`

	// Migrations is a golang-migrate source URL such as file://storage/migrations.
	// Empty uses the migrations built into the binary.
	Migrations string `koanf:"migrations"`

	// If true, we'll first delete all tables in the DB and
	// recreate the schema from scratch.
	WipeStorage bool `koanf:"DANGER__WIPE_STORAGE_ON_STARTUP"`
}

// Validate validates the storage configuration.
func (cfg *StorageConfig) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("malformed storage endpoint '%s'", cfg.Endpoint)
	}
	var sb StorageBackend
	return sb.Set(cfg.Backend)
}

// ClientConfig contains the configuration of the multisig client commands.
type ClientConfig struct {
	// NodeURL is the JSON-RPC endpoint of the contract host.
	NodeURL string `koanf:"node_url"`

	// DirectoryURL is the base URL of the directory API.
	DirectoryURL string `koanf:"directory_url"`

	// Deployer is the contract that deploys new multisigs.
	Deployer string `koanf:"deployer"`

	// CachePath is the directory of the closed-proposal cache. Empty disables it.
	CachePath string `koanf:"cache_path"`

	Signer *SignerConfig `koanf:"signer"`

	CallTimeout    time.Duration `koanf:"call_timeout"`
	SignTimeout    time.Duration `koanf:"sign_timeout"`
	SubmitTimeout  time.Duration `koanf:"submit_timeout"`
	PollInitial    time.Duration `koanf:"poll_initial"`
	PollMax        time.Duration `koanf:"poll_max"`
	ReadAttempts   uint          `koanf:"read_attempts"`
	ReadRetryDelay time.Duration `koanf:"read_retry_delay"`

	// DirectoryTimeout bounds every directory request.
	DirectoryTimeout time.Duration `koanf:"directory_timeout"`

	// Concurrency bounds the parallel reads of the dashboard.
	Concurrency int `koanf:"concurrency"`
}

// Validate validates the client configuration.
func (cfg *ClientConfig) Validate() error {
	if err := validateURL(cfg.NodeURL, "http", "https", "ws", "wss"); err != nil {
		return fmt.Errorf("node_url: %w", err)
	}
	if cfg.DirectoryURL != "" {
		if err := validateURL(cfg.DirectoryURL, "http", "https"); err != nil {
			return fmt.Errorf("directory_url: %w", err)
		}
	}
	if cfg.Deployer != "" {
		addr, err := multisig.ParseAddress(cfg.Deployer)
		if err != nil {
			return fmt.Errorf("deployer: %w", err)
		}
		if !addr.IsContract() {
			return fmt.Errorf("deployer: %s is not a contract address", addr)
		}
	}
	for name, d := range map[string]time.Duration{
		"call_timeout":      cfg.CallTimeout,
		"sign_timeout":      cfg.SignTimeout,
		"submit_timeout":    cfg.SubmitTimeout,
		"poll_initial":      cfg.PollInitial,
		"poll_max":          cfg.PollMax,
		"read_retry_delay":  cfg.ReadRetryDelay,
		"directory_timeout": cfg.DirectoryTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if cfg.PollInitial != 0 && cfg.PollMax != 0 && cfg.PollMax < cfg.PollInitial {
		return fmt.Errorf("poll_max %s is below poll_initial %s", cfg.PollMax, cfg.PollInitial)
	}
	if cfg.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	if cfg.Signer != nil {
		if err := cfg.Signer.Validate(); err != nil {
			return fmt.Errorf("signer: %w", err)
		}
	}
	return nil
}

// SignerConfig selects the wallet that signs transactions. Exactly one
// field must be set.
type SignerConfig struct {
	// KeyFile holds a hex-encoded ed25519 seed.
	KeyFile string `koanf:"key_file"`

	// WalletURL is the endpoint of an HTTP wallet bridge.
	WalletURL string `koanf:"wallet_url"`

	// Address is the account the wallet bridge signs for. Required with WalletURL.
	Address string `koanf:"address"`
}

// Validate validates the signer configuration.
func (cfg *SignerConfig) Validate() error {
	switch {
	case cfg.KeyFile != "" && cfg.WalletURL != "":
		return fmt.Errorf("key_file and wallet_url are mutually exclusive")
	case cfg.WalletURL != "":
		if _, err := multisig.ParseAddress(cfg.Address); err != nil {
			return fmt.Errorf("address: %w", err)
		}
		return validateURL(cfg.WalletURL, "http", "https")
	case cfg.KeyFile == "":
		return fmt.Errorf("one of key_file or wallet_url is required")
	}
	return nil
}

// SimulatorConfig contains the configuration of the development contract host.
type SimulatorConfig struct {
	// Endpoint is the address the JSON-RPC server listens on.
	Endpoint string `koanf:"endpoint"`

	// ConfirmAfter is how many status polls report a transaction as not
	// found before its result is reported.
	ConfirmAfter int `koanf:"confirm_after"`
}

// Validate validates the simulator configuration.
func (cfg *SimulatorConfig) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("malformed simulator endpoint '%s'", cfg.Endpoint)
	}
	if cfg.ConfirmAfter < 0 {
		return fmt.Errorf("confirm_after must not be negative")
	}
	return nil
}

// LogConfig contains the logging configuration.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
	File   string `koanf:"file"`
}

// Validate validates the logging configuration. Empty fields keep the defaults.
func (cfg *LogConfig) Validate() error {
	if cfg.Format != "" {
		var format log.Format
		if err := format.Set(cfg.Format); err != nil {
			return err
		}
	}
	if cfg.Level != "" {
		var level log.Level
		return level.Set(cfg.Level)
	}
	return nil
}

// MetricsConfig contains the metrics configuration.
type MetricsConfig struct {
	PullEndpoint string `koanf:"pull_endpoint"`
}

// Validate validates the metrics configuration.
func (cfg *MetricsConfig) Validate() error {
	if cfg.PullEndpoint == "" {
		return fmt.Errorf("malformed Prometheus pull endpoint '%s'", cfg.PullEndpoint)
	}
	return nil
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("malformed url '%s', expected scheme %s", raw, strings.Join(schemes, "|"))
}

// InitConfig initializes configuration from file.
func InitConfig(f string) (*Config, error) {
	return initConfig(file.Provider(f))
}

func initConfig(p koanf.Provider) (*Config, error) {
	var config Config
	k := koanf.New(".")

	// Load configuration from the yaml config.
	if err := k.Load(p, yaml.Parser()); err != nil {
		return nil, err
	}

	// Load environment variables and merge into the loaded config.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		// `__` is used as a hierarchy delimiter.
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	// Unmarshal into config.
	if err := k.Unmarshal("", &config); err != nil {
		return nil, err
	}

	// Validate config.
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
