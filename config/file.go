package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	ncerr "microcli/internal/errors"
)

// LoadFile overlays the YAML file at path onto cfg.  Keys absent from
// the file keep their current value; macros are merged with the ones
// already present.  Unknown keys are rejected so typos do not pass
// silently.
//
//	host: 10.0.0.7
//	port: 2000
//	read_timeout: 30s
//	macros:
//	  blink: "toggle LED1"
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return &ncerr.ConfigError{
			Field:   "config",
			Value:   path,
			Message: err.Error(),
		}
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return &ncerr.ConfigError{
			Field:   "config",
			Value:   path,
			Message: fmt.Sprintf("parse: %v", err),
			Hint:    "keys use snake_case, durations Go syntax (e.g. 1500ms)",
		}
	}
	return nil
}

// Load builds a Config from defaults, the optional file at path and
// the environment, in that order.  Flags are applied by the caller.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	LoadFromEnv(cfg)
	return cfg, nil
}
