package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mash-protocol/lwm2m-go/pkg/transport"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LWM2M_"

// Default settings.
const (
	DefaultServerAddress  = "localhost:5684"
	DefaultUplinkInterval = time.Minute
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete device description.
type Config struct {
	// Endpoint is the client endpoint name.
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`

	Server      ServerConfig      `yaml:"server" envPrefix:"SERVER_"`
	Security    SecurityConfig    `yaml:"security" envPrefix:"SECURITY_"`
	KeepAlive   KeepAliveConfig   `yaml:"keepalive" envPrefix:"KEEPALIVE_"`
	Persistence PersistenceConfig `yaml:"persistence" envPrefix:"PERSISTENCE_"`
	Discovery   DiscoveryConfig   `yaml:"discovery" envPrefix:"DISCOVERY_"`
	Uplink      UplinkConfig      `yaml:"uplink" envPrefix:"UPLINK_"`

	// Objects is the resource tree. It has no environment overrides.
	Objects []ObjectConfig `yaml:"objects"`
}

// ServerConfig describes the LwM2M server connection.
type ServerConfig struct {
	Address          string        `yaml:"address" env:"ADDRESS"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" env:"HANDSHAKE_TIMEOUT"`
	ReconnectInitial time.Duration `yaml:"reconnect_initial" env:"RECONNECT_INITIAL"`
	ReconnectMax     time.Duration `yaml:"reconnect_max" env:"RECONNECT_MAX"`
}

// SecurityConfig holds the credentials. Keys and secrets are hex encoded.
type SecurityConfig struct {
	Mode string `yaml:"mode" env:"MODE"`

	// PSK mode. Identity defaults to the endpoint name. When Key is empty
	// and MasterSecret is set, the key is derived from the master secret
	// and the endpoint name.
	Identity     string `yaml:"identity" env:"IDENTITY"`
	Key          string `yaml:"key" env:"KEY"`
	MasterSecret string `yaml:"master_secret" env:"MASTER_SECRET"`

	// Certificate mode.
	CertFile string `yaml:"cert_file" env:"CERT_FILE"`
	KeyFile  string `yaml:"key_file" env:"KEY_FILE"`
	CAFile   string `yaml:"ca_file" env:"CA_FILE"`

	ServerName         string `yaml:"server_name" env:"SERVER_NAME"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" env:"INSECURE_SKIP_VERIFY"`
	ConnectionID       bool   `yaml:"connection_id" env:"CONNECTION_ID"`
}

// KeepAliveConfig configures CoAP ping liveness checks.
type KeepAliveConfig struct {
	Disabled       bool          `yaml:"disabled" env:"DISABLED"`
	PingInterval   time.Duration `yaml:"ping_interval" env:"PING_INTERVAL"`
	PongTimeout    time.Duration `yaml:"pong_timeout" env:"PONG_TIMEOUT"`
	MaxMissedPongs int           `yaml:"max_missed_pongs" env:"MAX_MISSED_PONGS"`
}

// Transport returns the transport keep-alive settings.
func (k KeepAliveConfig) Transport() transport.KeepAliveConfig {
	return transport.KeepAliveConfig{
		PingInterval:   k.PingInterval,
		PongTimeout:    k.PongTimeout,
		MaxMissedPongs: k.MaxMissedPongs,
	}
}

// PersistenceConfig locates the state file. An empty path disables it.
type PersistenceConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// DiscoveryConfig configures the mDNS announcement.
type DiscoveryConfig struct {
	Enabled      bool          `yaml:"enabled" env:"ENABLED"`
	Port         int           `yaml:"port" env:"PORT"`
	Interface    string        `yaml:"interface" env:"INTERFACE"`
	TTL          time.Duration `yaml:"ttl" env:"TTL"`
	Manufacturer string        `yaml:"manufacturer" env:"MANUFACTURER"`
	Model        string        `yaml:"model" env:"MODEL"`
}

// UplinkConfig configures the telemetry uplink.
type UplinkConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Address  string        `yaml:"address" env:"ADDRESS"`
	DeviceID string        `yaml:"device_id" env:"DEVICE_ID"`
	KeyFile  string        `yaml:"key_file" env:"KEY_FILE"`
	AuthPath string        `yaml:"auth_path" env:"AUTH_PATH"`
	DataPath string        `yaml:"data_path" env:"DATA_PATH"`
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`

	// Instances lists the object instance paths to publish, e.g. "3303/0".
	Instances []string `yaml:"instances" env:"INSTANCES" envSeparator:","`
}

// ObjectConfig describes one object.
type ObjectConfig struct {
	ID         string           `yaml:"id"`
	Operations string           `yaml:"operations"`
	Instances  []InstanceConfig `yaml:"instances"`
}

// InstanceConfig describes one object instance.
type InstanceConfig struct {
	ID         uint16           `yaml:"id"`
	Operations string           `yaml:"operations"`
	Resources  []ResourceConfig `yaml:"resources"`
}

// ResourceConfig describes one resource. A resource with Instances is a
// multi-instance resource and ignores Value.
type ResourceConfig struct {
	ID           string                   `yaml:"id"`
	ResourceType string                   `yaml:"rt"`
	Type         string                   `yaml:"type"`
	Operations   string                   `yaml:"operations"`
	Static       bool                     `yaml:"static"`
	Observable   bool                     `yaml:"observable"`
	Value        string                   `yaml:"value"`
	Instances    []ResourceInstanceConfig `yaml:"instances"`
}

// ResourceInstanceConfig describes one resource instance.
type ResourceInstanceConfig struct {
	ID    uint16 `yaml:"id"`
	Value string `yaml:"value"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	ka := transport.DefaultKeepAliveConfig()
	adv := discoveryDefaults()
	return &Config{
		Server: ServerConfig{
			Address:          DefaultServerAddress,
			HandshakeTimeout: transport.DefaultHandshakeTimeout,
		},
		Security: SecurityConfig{Mode: transport.ModePSK.String()},
		KeepAlive: KeepAliveConfig{
			PingInterval:   ka.PingInterval,
			PongTimeout:    ka.PongTimeout,
			MaxMissedPongs: ka.MaxMissedPongs,
		},
		Discovery: adv,
		Uplink:    UplinkConfig{Interval: DefaultUplinkInterval},
	}
}

// Parse decodes a YAML description over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadFile reads a YAML description. An empty path yields the defaults.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// LoadDotEnv loads the given .env files into the process environment,
// or ".env" when none are given. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with LWM2M_ environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// Load reads path, applies .env and environment overrides and validates
// the result.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the description and returns every problem found.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Endpoint == "" {
		invalid("endpoint is required")
	}
	if c.Server.Address == "" {
		invalid("server address is required")
	}
	if _, err := transport.ParseMode(c.Security.Mode); err != nil {
		invalid("security mode %q", c.Security.Mode)
	}
	if c.Uplink.Enabled {
		if c.Uplink.Address == "" {
			invalid("uplink address is required")
		}
		if c.Uplink.KeyFile == "" {
			invalid("uplink key file is required")
		}
	}

	objects := make(map[string]bool)
	for _, o := range c.Objects {
		if o.ID == "" {
			invalid("object without id")
			continue
		}
		if objects[o.ID] {
			invalid("duplicate object %s", o.ID)
		}
		objects[o.ID] = true
		if _, err := ParseOperations(o.Operations); err != nil {
			invalid("object %s: %v", o.ID, err)
		}
		instances := make(map[uint16]bool)
		for _, oi := range o.Instances {
			if instances[oi.ID] {
				invalid("duplicate instance %s/%d", o.ID, oi.ID)
			}
			instances[oi.ID] = true
			errs = append(errs, validateResources(o.ID, oi)...)
		}
	}
	return errors.Join(errs...)
}

func validateResources(objectID string, oi InstanceConfig) []error {
	var errs []error
	names := make(map[string]bool)
	for _, r := range oi.Resources {
		path := fmt.Sprintf("%s/%d/%s", objectID, oi.ID, r.ID)
		if r.ID == "" {
			errs = append(errs, fmt.Errorf("%w: resource without id in %s/%d", ErrInvalid, objectID, oi.ID))
			continue
		}
		if names[r.ID] {
			errs = append(errs, fmt.Errorf("%w: duplicate resource %s", ErrInvalid, path))
		}
		names[r.ID] = true
		if _, err := parseType(r.Type); err != nil {
			errs = append(errs, fmt.Errorf("%w: resource %s: %v", ErrInvalid, path, err))
		}
		if _, err := ParseOperations(r.Operations); err != nil {
			errs = append(errs, fmt.Errorf("%w: resource %s: %v", ErrInvalid, path, err))
		}
	}
	return errs
}
