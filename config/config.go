// Package config defines the runtime configuration for microcli and
// provides helpers for parsing tunnel specifications and ports.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ncerr "microcli/internal/errors"
	"microcli/util"
)

// Config holds every tuneable for a single microcli session.  The yaml
// tags name the keys accepted by the config file.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	LocalPort      int           `yaml:"local_port"` // -p: local bind port
	NoDNS          bool          `yaml:"no_dns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	StopTimeout    time.Duration `yaml:"stop_timeout"`
	MaxLineLength  int           `yaml:"max_line_length"`

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string        `yaml:"tunnel"` // raw user@host[:port] from -T
	TunnelEnabled  bool          `yaml:"-"`
	TunnelUser     string        `yaml:"-"`
	TunnelHost     string        `yaml:"-"`
	TunnelPort     int           `yaml:"-"`
	SSHKeyPath     string        `yaml:"ssh_key"`
	SSHPassword    bool          `yaml:"ssh_password_prompt"` // true → prompt interactively
	SSHSecret      string        `yaml:"-"`                   // env only; never read from disk
	UseSSHAgent    bool          `yaml:"ssh_agent"`
	StrictHostKey  bool          `yaml:"strict_host_key"`
	KnownHostsPath string        `yaml:"known_hosts"`
	SSHKeepAlive   time.Duration `yaml:"ssh_keepalive"`

	// ── Console ──────────────────────────────────────────────────────
	Macros  map[string]string `yaml:"macros"`
	Send    []string          `yaml:"send"` // script mode: lines sent in order, then exit
	Wait    time.Duration     `yaml:"wait"` // script mode: how long to wait for replies
	NoColor bool              `yaml:"no_color"`
	Stats   bool              `yaml:"stats"` // print counters on exit

	// ── Output ───────────────────────────────────────────────────────
	Verbose int       `yaml:"verbose"`
	Log     LogConfig `yaml:"log"`
}

// LogConfig controls the optional rotating log file.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// FileConfig converts the log settings for util.Logger.TeeFile.
func (l LogConfig) FileConfig() util.FileConfig {
	return util.FileConfig{
		Path:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

// Address returns host:port of the board.
func (c *Config) Address() string {
	return util.FormatAddr(c.Host, c.Port)
}

// ── Port helpers ─────────────────────────────────────────────────────

// ParsePort accepts a decimal port number in 1-65535.
func ParsePort(spec string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(spec))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q: expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ApplyTunnelSpec parses TunnelSpec into the Tunnel* fields.  An empty
// spec disables the tunnel.
func (c *Config) ApplyTunnelSpec() error {
	if c.TunnelSpec == "" {
		c.TunnelEnabled = false
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &ncerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: err.Error(),
			Hint:    "example: -T pi@gateway.lan:22",
		}
	}
	c.TunnelEnabled = true
	c.TunnelUser, c.TunnelHost, c.TunnelPort = user, host, port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Errors are *errors.ConfigError and carry a hint where one helps.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &ncerr.ConfigError{
			Field:   "host",
			Message: "hostname is required",
			Hint:    "pass <host> <port>, set host in the config file, or export MICROCLI_HOST",
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ncerr.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "out of range 1-65535",
			Hint:    fmt.Sprintf("the board firmware listens on %d by default", DefaultPort),
		}
	}
	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return &ncerr.ConfigError{Field: "local-port", Value: c.LocalPort, Message: "out of range 0-65535"}
	}

	for _, d := range []struct {
		field string
		v     time.Duration
	}{
		{"connect-timeout", c.ConnectTimeout},
		{"read-timeout", c.ReadTimeout},
		{"write-timeout", c.WriteTimeout},
		{"stop-timeout", c.StopTimeout},
		{"wait", c.Wait},
		{"ssh-keepalive", c.SSHKeepAlive},
	} {
		if d.v < 0 {
			return &ncerr.ConfigError{
				Field:   d.field,
				Value:   d.v,
				Message: "must not be negative",
				Hint:    "use 0 to disable",
			}
		}
	}

	if c.MaxLineLength < 0 {
		return &ncerr.ConfigError{
			Field:   "max-line",
			Value:   c.MaxLineLength,
			Message: "must not be negative",
			Hint:    "use 0 for no limit",
		}
	}

	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: "tunnel host is required"}
	}
	if c.SSHPassword && c.SSHSecret == "" && len(c.Send) > 0 {
		return &ncerr.ConfigError{
			Field:   "ssh-password",
			Message: "cannot prompt for a password in script mode",
			Hint:    "export MICROCLI_SSH_PASSWORD or use --ssh-key",
		}
	}

	for name, line := range c.Macros {
		if name == "" || strings.ContainsAny(name, " \t") {
			return &ncerr.ConfigError{
				Field:   "macros",
				Value:   name,
				Message: "macro names must be single words",
			}
		}
		if strings.TrimSpace(line) == "" {
			return &ncerr.ConfigError{
				Field:   "macros",
				Value:   name,
				Message: "macro expands to an empty line",
				Hint:    "remove the macro or give it a command",
			}
		}
	}

	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return &ncerr.ConfigError{Field: "log", Message: "rotation limits must not be negative"}
	}

	return nil
}
