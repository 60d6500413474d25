package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"seasonfarm/native/farm"
)

// DefaultDeployer is the account whose deployment nonces derive the default
// contract addresses of a development node.
var DefaultDeployer = common.HexToAddress("0x000000000000000000000000000000000000dE00")

// defaultStartDelay matches the delay between deployment and farm start used
// on mainnet.
const defaultStartDelay = 120 * 24 * time.Hour

type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`
	// DevMode enables the dev_* RPC methods and the caller parameter when
	// authentication is disabled.
	DevMode  bool   `toml:"DevMode"`
	LogLevel string `toml:"LogLevel"`
	LogFile  string `toml:"LogFile,omitempty"`

	Farm      FarmConfig      `toml:"farm"`
	Auth      AuthConfig      `toml:"auth"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// FarmConfig holds the deployment parameters of the farm and its tokens.
type FarmConfig struct {
	Address         string `toml:"Address"`
	PositionManager string `toml:"PositionManager"`
	WrappedNative   string `toml:"WrappedNative"`
	SpringToken     string `toml:"SpringToken"`
	SummerToken     string `toml:"SummerToken"`
	AutumnToken     string `toml:"AutumnToken"`
	WinterToken     string `toml:"WinterToken"`
	StartTime       uint64 `toml:"StartTime"`
}

// AuthConfig configures JWT bearer authentication of write calls.
type AuthConfig struct {
	Enabled bool `toml:"Enabled"`
	// HMACSecretEnv names the environment variable holding the signing
	// secret.
	HMACSecretEnv string `toml:"HMACSecretEnv"`
	Issuer        string `toml:"Issuer,omitempty"`
	Audience      string `toml:"Audience,omitempty"`
}

// RateLimitConfig bounds the request rate per caller.
type RateLimitConfig struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// TelemetryConfig wires the OTLP exporters.
type TelemetryConfig struct {
	Enabled     bool    `toml:"Enabled"`
	Endpoint    string  `toml:"Endpoint,omitempty"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers,omitempty"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// Load loads the configuration from the given path, writing a development
// default when the file does not exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0])
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8545"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./farm-data"
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
	if strings.TrimSpace(c.Auth.HMACSecretEnv) == "" {
		c.Auth.HMACSecretEnv = "FARMD_JWT_SECRET"
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 20
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 40
	}
}

// Default returns a development configuration whose contract addresses are
// derived from DefaultDeployer and whose farm starts 120 days from now.
func Default(now time.Time) *Config {
	addr := func(nonce uint64) string {
		return ethcrypto.CreateAddress(DefaultDeployer, nonce).Hex()
	}
	cfg := &Config{
		Environment: "dev",
		DevMode:     true,
		Farm: FarmConfig{
			SpringToken:     addr(0),
			SummerToken:     addr(1),
			AutumnToken:     addr(2),
			WinterToken:     addr(3),
			WrappedNative:   addr(4),
			PositionManager: addr(5),
			Address:         addr(6),
			StartTime:       uint64(now.Add(defaultStartDelay).Unix()),
		},
	}
	cfg.applyDefaults()
	return cfg
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default(time.Now())
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// FarmParams converts the configured addresses into engine parameters.
func (c *Config) FarmParams() (farm.Config, error) {
	var out farm.Config
	fields := []struct {
		name  string
		value string
		dst   *common.Address
	}{
		{"farm.Address", c.Farm.Address, &out.Address},
		{"farm.PositionManager", c.Farm.PositionManager, &out.PositionManager},
		{"farm.WrappedNative", c.Farm.WrappedNative, &out.WrappedNative},
		{"farm.SpringToken", c.Farm.SpringToken, &out.SeasonTokens[farm.Spring]},
		{"farm.SummerToken", c.Farm.SummerToken, &out.SeasonTokens[farm.Summer]},
		{"farm.AutumnToken", c.Farm.AutumnToken, &out.SeasonTokens[farm.Autumn]},
		{"farm.WinterToken", c.Farm.WinterToken, &out.SeasonTokens[farm.Winter]},
	}
	for _, field := range fields {
		trimmed := strings.TrimSpace(field.value)
		if !common.IsHexAddress(trimmed) {
			return out, fmt.Errorf("%s: invalid address %q", field.name, field.value)
		}
		*field.dst = common.HexToAddress(trimmed)
	}
	out.StartTime = c.Farm.StartTime
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// AuthSecret resolves the JWT signing secret from the environment.
func (c *Config) AuthSecret() ([]byte, error) {
	if !c.Auth.Enabled {
		return nil, nil
	}
	secret := strings.TrimSpace(os.Getenv(c.Auth.HMACSecretEnv))
	if secret == "" {
		return nil, fmt.Errorf("auth: environment variable %s is empty", c.Auth.HMACSecretEnv)
	}
	return []byte(secret), nil
}
