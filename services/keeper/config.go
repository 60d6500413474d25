package keeper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultStateFile holds schedule cursors next to the config file unless
// state_path says otherwise.
const defaultStateFile = "keeper-state.db"

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration of the donation keeper.
type Config struct {
	Endpoint      string           `yaml:"endpoint"`
	Donor         string           `yaml:"donor"`
	AuthTokenEnv  string           `yaml:"auth_token_env"`
	MetricsListen string           `yaml:"metrics_listen"`
	StatePath     string           `yaml:"state_path"`
	Tick          Duration         `yaml:"tick"`
	Schedules     []ScheduleConfig `yaml:"schedules"`
}

// ScheduleConfig describes one recurring donation. Token is a season name or
// a token address; Amount is in whole tokens.
type ScheduleConfig struct {
	Name     string   `yaml:"name"`
	Token    string   `yaml:"token"`
	Amount   string   `yaml:"amount"`
	Interval Duration `yaml:"interval"`
}

// LoadConfig reads configuration from the supplied path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if cfg.StatePath == "" {
		cfg.StatePath = filepath.Join(filepath.Dir(path), defaultStateFile)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://127.0.0.1:8545"
	}
	if cfg.Tick.Duration == 0 {
		cfg.Tick.Duration = 30 * time.Second
	}
	for i := range cfg.Schedules {
		if cfg.Schedules[i].Name == "" {
			cfg.Schedules[i].Name = strings.ToLower(strings.TrimSpace(cfg.Schedules[i].Token))
		}
	}
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Donor) == "" {
		return fmt.Errorf("donor must be configured")
	}
	if len(cfg.Schedules) == 0 {
		return fmt.Errorf("at least one schedule must be configured")
	}
	seen := make(map[string]struct{}, len(cfg.Schedules))
	for _, sched := range cfg.Schedules {
		if strings.TrimSpace(sched.Token) == "" {
			return fmt.Errorf("schedule %q: token must be configured", sched.Name)
		}
		if strings.TrimSpace(sched.Amount) == "" {
			return fmt.Errorf("schedule %q: amount must be configured", sched.Name)
		}
		if sched.Interval.Duration <= 0 {
			return fmt.Errorf("schedule %q: interval must be positive", sched.Name)
		}
		if _, dup := seen[sched.Name]; dup {
			return fmt.Errorf("schedule %q declared twice", sched.Name)
		}
		seen[sched.Name] = struct{}{}
	}
	return nil
}

// AuthToken resolves the bearer token from the configured environment
// variable. An empty variable name means the node runs without auth.
func (c Config) AuthToken() (string, error) {
	name := strings.TrimSpace(c.AuthTokenEnv)
	if name == "" {
		return "", nil
	}
	token := strings.TrimSpace(os.Getenv(name))
	if token == "" {
		return "", fmt.Errorf("auth_token_env %s is empty", name)
	}
	return token, nil
}
