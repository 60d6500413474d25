package config

import (
	"fmt"
	"strings"
)

// MinRateLimitBurst is the smallest accepted token bucket size.
var MinRateLimitBurst = 1

// Validate checks the configuration for values the node cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("ListenAddress must be set")
	}
	if _, err := c.FarmParams(); err != nil {
		return err
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit: RequestsPerSecond must not be negative")
	}
	if c.RateLimit.Burst < MinRateLimitBurst {
		return fmt.Errorf("rate_limit: Burst must be at least %d", MinRateLimitBurst)
	}
	if c.Auth.Enabled && strings.TrimSpace(c.Auth.HMACSecretEnv) == "" {
		return fmt.Errorf("auth: HMACSecretEnv required when auth is enabled")
	}
	if !c.Auth.Enabled && !c.DevMode {
		return fmt.Errorf("auth: authentication may only be disabled in DevMode")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	return nil
}
