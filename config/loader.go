package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the MICROCLI_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Durations accept Go
// syntax ("750ms", "2s") or a bare number of seconds.

// EnvConfigPath names the variable holding the config file path.
const EnvConfigPath = "MICROCLI_CONFIG"

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("MICROCLI_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("MICROCLI_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := envInt("MICROCLI_LOCAL_PORT"); v > 0 {
		cfg.LocalPort = v
	}
	if envBool("MICROCLI_NO_DNS") {
		cfg.NoDNS = true
	}
	if v := envDuration("MICROCLI_CONNECT_TIMEOUT"); v > 0 {
		cfg.ConnectTimeout = v
	}
	if v := envDuration("MICROCLI_READ_TIMEOUT"); v > 0 {
		cfg.ReadTimeout = v
	}
	if v := envDuration("MICROCLI_WRITE_TIMEOUT"); v > 0 {
		cfg.WriteTimeout = v
	}
	if v := envInt("MICROCLI_MAX_LINE"); v > 0 {
		cfg.MaxLineLength = v
	}

	// SSH tunnel
	if v := os.Getenv("MICROCLI_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("MICROCLI_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if v := os.Getenv("MICROCLI_SSH_PASSWORD"); v != "" {
		cfg.SSHSecret = v
	}
	if envBool("MICROCLI_SSH_PASSWORD_PROMPT") {
		cfg.SSHPassword = true
	}
	if envBool("MICROCLI_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("MICROCLI_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("MICROCLI_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}
	if v := envDuration("MICROCLI_SSH_KEEPALIVE"); v > 0 {
		cfg.SSHKeepAlive = v
	}

	// Console
	if envBool("MICROCLI_NO_COLOR") || os.Getenv("NO_COLOR") != "" {
		cfg.NoColor = true
	}
	if v := envDuration("MICROCLI_WAIT"); v > 0 {
		cfg.Wait = v
	}

	// Output
	if v := envInt("MICROCLI_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if v := os.Getenv("MICROCLI_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return secondsDuration(n)
	}
	return 0
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
