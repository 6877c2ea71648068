package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultHost is the address the board's access point hands itself.
	DefaultHost = "192.168.1.1"

	// DefaultPort is the board's command port.
	DefaultPort = 2000

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultSSHKeepAlive is the SSH keepalive interval.
	DefaultSSHKeepAlive = 30 * time.Second

	// DefaultConnTimeout bounds the TCP or SSH connect.
	DefaultConnTimeout = 10 * time.Second

	// DefaultStopTimeout is how long a stop waits for the reader.
	DefaultStopTimeout = 2 * time.Second

	// DefaultWait is how long script mode listens after the last send.
	DefaultWait = time.Second

	// DefaultLogMaxSizeMB, DefaultLogMaxBackups and DefaultLogMaxAgeDays
	// bound the rotating log file.
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3
	DefaultLogMaxAgeDays = 28
)

// DefaultMacros are the shortcuts of the board's options menu.
func DefaultMacros() map[string]string {
	return map[string]string{
		"led3":     "toggle LED3",
		"leds-on":  "enable TOGGLE_LEDS",
		"leds-off": "disable TOGGLE_LEDS",
	}
}

// Defaults returns a Config populated with every default value.
func Defaults() *Config {
	return &Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		ConnectTimeout: DefaultConnTimeout,
		StopTimeout:    DefaultStopTimeout,
		SSHKeepAlive:   DefaultSSHKeepAlive,
		Macros:         DefaultMacros(),
		Wait:           DefaultWait,
		Log: LogConfig{
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
		},
	}
}
