package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "VTSTATE_"

// Load reads path on top of Default, applies environment overrides and
// validates the result. An empty path loads only defaults and environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := Decode(path, data, cfg); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode parses data into cfg using the format implied by path's extension.
func Decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return decodeTOML(path, data, cfg)
	case ".yaml", ".yml":
		return decodeYAML(path, data, cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func decodeTOML(path string, data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		perr := &ParseError{Path: path, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			perr.Message = serr.String()
		}
		return perr
	}
	return nil
}

func decodeYAML(path string, data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// An empty document leaves the defaults alone.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	return nil
}

// LookupFunc reports the value of an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg from VTSTATE_* variables.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ValidationError{Path: EnvPrefix + name, Message: "must be an integer", Value: v}
		}
		*dst = n
		return nil
	}

	str("SHELL", &cfg.Terminal.Shell)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("LOG_FILE", &cfg.Log.File)
	str("ECHO_ON_TIMEOUT", &cfg.Echo.OnTimeout)
	str("ECHO_ON_MISMATCH", &cfg.Echo.OnMismatch)

	var errs []error
	errs = append(errs,
		num("SCROLLBACK", &cfg.Terminal.Scrollback),
		num("REPORT_CEILING", &cfg.Reports.Ceiling),
	)
	if v, ok := lookup(EnvPrefix + "ECHO_WINDOW"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, &ValidationError{Path: EnvPrefix + "ECHO_WINDOW", Message: "must be a duration", Value: v})
		} else {
			cfg.Echo.Window = Duration{d}
		}
	}
	return errors.Join(errs...)
}
