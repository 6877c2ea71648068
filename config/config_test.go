package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	ncerr "microcli/internal/errors"
)

// ── ParseTunnelSpec ──────────────────────────────────────────────────

func TestParseTunnelSpec(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantUser string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"full", "pi@gateway.lan:2222", "pi", "gateway.lan", 2222, false},
		{"no port", "root@gateway", "root", "gateway", 22, false},
		{"no user", "jump-host:2200", "", "jump-host", 2200, false},
		{"host only", "gateway.local", "", "gateway.local", 22, false},
		{"bad port", "user@host:999999", "", "", 0, true},
		{"empty", "", "", "", 0, true},
		{"colon only", ":", "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, host, port, err := ParseTunnelSpec(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if user != tt.wantUser || host != tt.wantHost || port != tt.wantPort {
				t.Errorf("got (%q, %q, %d), want (%q, %q, %d)",
					user, host, port, tt.wantUser, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestApplyTunnelSpec(t *testing.T) {
	cfg := &Config{TunnelSpec: "pi@gateway.lan"}
	if err := cfg.ApplyTunnelSpec(); err != nil {
		t.Fatal(err)
	}
	if !cfg.TunnelEnabled || cfg.TunnelUser != "pi" || cfg.TunnelHost != "gateway.lan" || cfg.TunnelPort != 22 {
		t.Errorf("unexpected tunnel fields: %+v", cfg)
	}

	cfg = &Config{TunnelSpec: "pi@gw:notaport"}
	err := cfg.ApplyTunnelSpec()
	var ce *ncerr.ConfigError
	if !errors.As(err, &ce) || ce.Field != "tunnel" {
		t.Errorf("got %v, want ConfigError for tunnel", err)
	}

	cfg = &Config{}
	if err := cfg.ApplyTunnelSpec(); err != nil || cfg.TunnelEnabled {
		t.Errorf("empty spec should disable the tunnel (err=%v)", err)
	}
}

// ── ParsePort ────────────────────────────────────────────────────────

func TestParsePort(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"2000", 2000, false},
		{" 23 ", 23, false},
		{"65535", 65535, false},
		{"0", 0, true},
		{"70000", 0, true},
		{"telnet", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePort(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePort(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

// ── Defaults ─────────────────────────────────────────────────────────

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Address() != "192.168.1.1:2000" {
		t.Errorf("Address() = %q", cfg.Address())
	}
	if cfg.Macros["led3"] != "toggle LED3" {
		t.Errorf("led3 macro = %q", cfg.Macros["led3"])
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	// Each call gets its own macro map.
	cfg.Macros["led3"] = "changed"
	if Defaults().Macros["led3"] != "toggle LED3" {
		t.Error("Defaults must not share the macro map")
	}
}

// ── Config.Validate ──────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	valid := func(mod func(*Config)) Config {
		c := *Defaults()
		c.Macros = DefaultMacros()
		if mod != nil {
			mod(&c)
		}
		return c
	}

	tests := []struct {
		name      string
		cfg       Config
		wantField string // "" means valid
	}{
		{"defaults", valid(nil), ""},
		{"no host", valid(func(c *Config) { c.Host = "" }), "host"},
		{"port zero", valid(func(c *Config) { c.Port = 0 }), "port"},
		{"port too big", valid(func(c *Config) { c.Port = 99999 }), "port"},
		{"local port", valid(func(c *Config) { c.LocalPort = -1 }), "local-port"},
		{"negative read timeout", valid(func(c *Config) { c.ReadTimeout = -time.Second }), "read-timeout"},
		{"negative wait", valid(func(c *Config) { c.Wait = -1 }), "wait"},
		{"negative max line", valid(func(c *Config) { c.MaxLineLength = -5 }), "max-line"},
		{"tunnel without host", valid(func(c *Config) { c.TunnelEnabled = true }), "tunnel"},
		{"prompt in script mode", valid(func(c *Config) {
			c.SSHPassword = true
			c.Send = []string{"toggle LED3"}
		}), "ssh-password"},
		{"prompt with secret in script mode", valid(func(c *Config) {
			c.SSHPassword = true
			c.SSHSecret = "pw"
			c.Send = []string{"toggle LED3"}
		}), ""},
		{"macro with space", valid(func(c *Config) { c.Macros["two words"] = "x" }), "macros"},
		{"empty macro", valid(func(c *Config) { c.Macros["nop"] = "  " }), "macros"},
		{"negative log rotation", valid(func(c *Config) { c.Log.MaxBackups = -1 }), "log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var ce *ncerr.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if ce.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ce.Field, tt.wantField)
			}
		})
	}
}

// TestValidate_Hints verifies that the common mistakes come with a hint.
func TestValidate_Hints(t *testing.T) {
	for _, cfg := range []Config{
		{Port: 2000},
		{Host: "board", Port: 0},
		{Host: "board", Port: 2000, MaxLineLength: -1},
	} {
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
		if !strings.Contains(err.Error(), "hint:") {
			t.Errorf("error %q should contain a hint", err.Error())
		}
	}
}
