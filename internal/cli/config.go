package cli

import (
	stderrors "errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/matzehuels/pincheck/pkg/errors"
	"github.com/matzehuels/pincheck/pkg/requirement/marker"
)

// Config holds settings loaded from, in order of precedence:
//  1. Command-line flags
//  2. Environment variables (PINCHECK_*, plus CUSTOM_COMPILE_COMMAND)
//  3. .env.local and .env files
//  4. Config file (--config, or pincheck.toml in . or $HOME)
//  5. Defaults
type Config struct {
	ConfigFile     string
	CompileCommand string
	Format         string
	Extras         []string // pyproject.toml optional dependency groups

	// Marker holds marker variable overrides, e.g. python_version.
	Marker map[string]string

	Serve ServeConfig
}

// ServeConfig holds settings of the serve command.
type ServeConfig struct {
	Addr     string
	Cache    string // none, file or redis
	CacheDir string
	RedisURL string
	CacheTTL time.Duration
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("compile_command", "pip-compile")
	v.SetDefault("format", "text")
	v.SetDefault("serve.addr", ":8080")
	v.SetDefault("serve.cache", "none")
	v.SetDefault("serve.cache_ttl", time.Hour)

	v.SetEnvPrefix("PINCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// pip-compile's variable for the command shown in generated headers
	_ = v.BindEnv("compile_command", "PINCHECK_COMPILE_COMMAND", "CUSTOM_COMPILE_COMMAND")
	return v
}

// loadEnvFiles loads .env.local, then .env. Variables that are already set
// are not overridden, so .env.local wins over .env.
func loadEnvFiles() {
	for _, f := range []string{".env.local", ".env"} {
		_ = godotenv.Load(f)
	}
}

// bindFlags binds the flags that have a config key. Flag names use dashes,
// keys use underscores.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadConfig reads the config file, if any, and builds a Config.
func loadConfig(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(appName)
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !stderrors.As(err, &notFound) {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "could not read config file")
		}
	}

	cfg := &Config{
		ConfigFile:     v.ConfigFileUsed(),
		CompileCommand: v.GetString("compile_command"),
		Format:         v.GetString("format"),
		Extras:         v.GetStringSlice("extras"),
		Marker:         make(map[string]string),
		Serve: ServeConfig{
			Addr:     v.GetString("serve.addr"),
			Cache:    strings.ToLower(v.GetString("serve.cache")),
			CacheDir: v.GetString("serve.cache_dir"),
			RedisURL: v.GetString("serve.redis_url"),
			CacheTTL: v.GetDuration("serve.cache_ttl"),
		},
	}
	for _, name := range marker.Variables {
		if name == "extra" {
			continue
		}
		if val := v.GetString(name); val != "" {
			cfg.Marker[name] = val
		}
	}

	switch cfg.Serve.Cache {
	case "none", "file", "redis":
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			"serve.cache must be none, file or redis, got %q", cfg.Serve.Cache)
	}
	if cfg.Serve.Cache == "redis" && cfg.Serve.RedisURL == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "serve.redis_url is required when serve.cache is redis")
	}
	return cfg, nil
}

// MarkerEnv returns the marker environment for checks.
func (c *Config) MarkerEnv() marker.Env {
	return marker.DefaultEnv().With(c.Marker)
}
