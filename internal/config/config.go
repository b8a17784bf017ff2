// Package config loads lexideck configuration from a YAML file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// LEXIDECK_SERVER_ADDR sets server.addr.
const EnvPrefix = "LEXIDECK_"

// ConfigFlag names the flag holding the YAML file path.
const ConfigFlag = "config"

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all lexideck configuration.
type Config struct {
	DB     DBConfig     `koanf:"db"`
	Server ServerConfig `koanf:"server"`
	Sync   SyncConfig   `koanf:"sync"`
	Log    LogConfig    `koanf:"log"`
	Review ReviewConfig `koanf:"review"`
}

type DBConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type SyncConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type ReviewConfig struct {
	// DueLimit caps listed due cards; 0 lists all of them.
	DueLimit int `koanf:"due_limit" validate:"min=0"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		DB:     DBConfig{Path: "lexideck.db"},
		Server: ServerConfig{Addr: "127.0.0.1:8080", ShutdownTimeout: 10 * time.Second},
		Sync:   SyncConfig{ReposDir: "repos"},
		Log:    LogConfig{Level: "info", Format: "text"},
		Review: ReviewConfig{DueLimit: 50},
	}
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"db":               "db.path",
	"addr":             "server.addr",
	"shutdown-timeout": "server.shutdown_timeout",
	"repos-dir":        "sync.repos_dir",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"due-limit":        "review.due_limit",
}

// RegisterFlags adds one flag per configuration key to fs, with the
// defaults from Default, plus the --config flag.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(ConfigFlag, "", "path to a YAML configuration file")
	fs.String("db", d.DB.Path, "path to the SQLite database file")
	fs.String("addr", d.Server.Addr, "HTTP listen address")
	fs.Duration("shutdown-timeout", d.Server.ShutdownTimeout, "graceful shutdown timeout")
	fs.String("repos-dir", d.Sync.ReposDir, "directory for cloned git sources")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("log-format", d.Log.Format, "log format (text, json)")
	fs.Int("due-limit", d.Review.DueLimit, "maximum number of due cards to list, 0 for all")
}

// Load reads configuration. fs must have been set up with RegisterFlags
// and parsed; a nil fs uses the defaults as flags. The YAML file named by
// --config is optional.
func Load(fs *pflag.FlagSet) (*Config, error) {
	if fs == nil {
		fs = pflag.NewFlagSet("lexideck", pflag.ContinueOnError)
		RegisterFlags(fs)
	}
	k := koanf.New(".")

	if path, _ := fs.GetString(ConfigFlag); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	flags := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	})
	if err := k.Load(flags, nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns LEXIDECK_SERVER_SHUTDOWN_TIMEOUT into server.shutdown_timeout.
// Only the first underscore separates section from key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, key, ok := strings.Cut(s, "_")
	if !ok || section == "" || key == "" {
		return ""
	}
	return section + "." + key
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks every field and reports all failures in one error.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s fails %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			problems = append(problems, fmt.Sprintf("%s fails %s (got %v)", field, fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}
