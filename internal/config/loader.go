package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML config at path, applies environment variable
// overrides declared via `env` struct tags, fills defaults, and validates.
// A missing config file is not an error; defaults and environment variables
// alone can configure the service.
func Load(path string) (*Config, error) {
	// Populate the environment from a local .env file when present.
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Fall through to env + defaults.
	default:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := applyEnvOverrides(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var durationType = reflect.TypeOf(Duration(0))

// applyEnvOverrides walks the struct and overwrites any field whose `env`
// tag names a set environment variable.
func applyEnvOverrides(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("env")

		if field.Kind() == reflect.Struct && tag == "" {
			if err := applyEnvOverrides(field); err != nil {
				return err
			}
			continue
		}
		if tag == "" {
			continue
		}

		raw, ok := os.LookupEnv(tag)
		if !ok || raw == "" {
			continue
		}
		if err := setField(field, raw); err != nil {
			return fmt.Errorf("%s: %w", tag, err)
		}
	}
	return nil
}

func setField(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid bool %q: %w", raw, err)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", raw, err)
		}
		field.SetInt(n)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
