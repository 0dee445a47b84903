package config

import (
	"fmt"
	"time"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path must be set for the sqlite backend")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr must be set for the redis backend")
		}
	default:
		return fmt.Errorf("store.backend must be \"sqlite\" or \"redis\" (got %q)", c.Store.Backend)
	}

	if c.Auth.DashboardPassword == "" {
		return fmt.Errorf("auth.dashboard_password must be set")
	}

	if c.Digest.Hour < 0 || c.Digest.Hour > 23 {
		return fmt.Errorf("digest.hour must be between 0 and 23 (got %d)", c.Digest.Hour)
	}
	if _, err := time.LoadLocation(c.Digest.Timezone); err != nil {
		return fmt.Errorf("digest.timezone: %w", err)
	}

	if c.Telephony.AccountSID != "" && c.Telephony.AuthToken == "" {
		return fmt.Errorf("telephony.auth_token must be set when account_sid is")
	}

	return nil
}

// DigestLocation returns the parsed digest timezone. Validate must have
// succeeded first.
func (c *Config) DigestLocation() *time.Location {
	loc, err := time.LoadLocation(c.Digest.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
