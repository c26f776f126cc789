package cli

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pincheck/pkg/buildinfo"
	"github.com/matzehuels/pincheck/pkg/cache"
	"github.com/matzehuels/pincheck/pkg/errors"
	"github.com/matzehuels/pincheck/pkg/server"
)

// serveCommand creates the serve command, which runs the HTTP check service.
func (c *CLI) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP check service",
		Long: `Run an HTTP service that checks requirement documents posted to
/v1/check. Reports are cached by request body in the configured backend:
none, file (~/.cache/pincheck) or redis.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", ":8080", "listen address")
	flags.String("cache", "none", "report cache backend: none, file or redis")
	flags.String("cache-dir", "", "file cache directory (default $XDG_CACHE_HOME/pincheck)")
	flags.String("redis-url", "", "redis URL for the redis cache, e.g. redis://localhost:6379/0")
	flags.Duration("cache-ttl", 0, "report cache TTL (default 1h)")
	flags.String("python-version", "", "default python_version for marker evaluation")

	return cmd
}

var serveFlagKeys = map[string]string{
	"addr":           "serve.addr",
	"cache":          "serve.cache",
	"cache-dir":      "serve.cache_dir",
	"redis-url":      "serve.redis_url",
	"cache-ttl":      "serve.cache_ttl",
	"python-version": "python_version",
}

func (c *CLI) runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	cfg, err := c.loadConfig(cmd, serveFlagKeys)
	if err != nil {
		return err
	}

	store, err := openCache(ctx, cfg.Serve)
	if err != nil {
		return err
	}
	defer store.Close()

	keyer := cache.NewScopedKeyer(nil, appName+":"+buildinfo.Version+":")

	scfg := server.DefaultConfig()
	scfg.Addr = cfg.Serve.Addr
	scfg.Env = cfg.MarkerEnv()
	if cfg.Serve.CacheTTL > 0 {
		scfg.CacheTTL = cfg.Serve.CacheTTL
	}

	printTitle(c.stdout, appName+" "+buildinfo.Version)
	printKeyValue(c.stdout, "Address", StyleLink.Render(listenURL(scfg.Addr)))
	printKeyValue(c.stdout, "Cache", cfg.Serve.Cache)
	printKeyValue(c.stdout, "python_version", scfg.Env["python_version"])
	printKeyValue(c.stdout, "sys_platform", scfg.Env["sys_platform"])
	if cfg.Serve.Cache == "none" {
		printWarning(c.stdout, "Report caching is disabled")
	}

	err = server.New(scfg, store, keyer, logger).ListenAndServe(ctx)
	if err != nil && !stderrors.Is(err, context.Canceled) {
		return errors.Wrap(errors.ErrCodeInternal, err, "server failed")
	}
	printSuccess(c.stdout, "Server stopped")
	return nil
}

// openCache creates the report cache backend named by cfg.Cache.
func openCache(ctx context.Context, cfg ServeConfig) (cache.Cache, error) {
	switch cfg.Cache {
	case "file":
		dir := cfg.CacheDir
		if dir == "" {
			var err error
			if dir, err = cacheDir(); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "could not determine cache directory")
			}
		}
		store, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "could not open file cache %s", dir)
		}
		return store, nil
	case "redis":
		store, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "could not connect to redis")
		}
		return store, nil
	default:
		return cache.NewNullCache(), nil
	}
}

func listenURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
