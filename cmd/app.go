package main

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tqgap/internal/binning"
	"github.com/sells-group/tqgap/internal/boundary"
	"github.com/sells-group/tqgap/internal/choropleth"
	"github.com/sells-group/tqgap/internal/config"
	"github.com/sells-group/tqgap/internal/dataset"
	"github.com/sells-group/tqgap/internal/db"
	"github.com/sells-group/tqgap/internal/fetcher"
	"github.com/sells-group/tqgap/internal/metrics"
	"github.com/sells-group/tqgap/internal/palette"
)

// appEnv holds everything a rebuild needs, constructed once per command.
type appEnv struct {
	Dataset *dataset.Dataset
	Builder *choropleth.Builder
	Presets palette.Presets
	Memory  *boundary.MemoryCache
	SQLite  *boundary.SQLiteCache
	closers []func()
}

// Close releases pools and cache handles in reverse order of creation.
func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func newSources(c *config.Config) *fetcher.Sources {
	return &fetcher.Sources{
		HTTP: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  c.Fetch.UserAgent,
			Timeout:    c.Fetch.FetchTimeout(),
			MaxRetries: c.Fetch.MaxRetries,
		}),
		FTP: fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: c.Fetch.FetchTimeout()}),
	}
}

func builderOptions(c *config.Config) choropleth.Options {
	return choropleth.Options{
		Order: binning.ParseMode(c.Bins.Order),
		Fetch: choropleth.FetchOptions{
			Policy:      choropleth.ParsePolicy(c.Fetch.OnError),
			Timeout:     c.Fetch.FetchTimeout(),
			Concurrency: c.Fetch.Concurrency,
			Observe:     metrics.ObserveFetch,
		},
		Map: choropleth.MapOptions{
			AccessToken: c.Map.AccessToken,
			Style:       c.Map.Style,
			Camera:      choropleth.Camera{Lat: c.Map.CenterLat, Lon: c.Map.CenterLon, Zoom: c.Map.Zoom},
		},
	}
}

// initApp loads the dataset and wires the boundary provider behind its cache layers.
func initApp(ctx context.Context, c *config.Config, command string) (*appEnv, error) {
	if err := c.Validate(command); err != nil {
		return nil, err
	}

	env := &appEnv{}
	sources := newSources(c)

	ds, err := loadDataset(ctx, c, sources)
	if err != nil {
		return nil, err
	}
	env.Dataset = ds

	presets, err := palette.LoadPresets(c.Palette.PresetsFile)
	if err != nil {
		return nil, err
	}
	env.Presets = presets

	provider, err := newProvider(ctx, c, sources, env)
	if err != nil {
		env.Close()
		return nil, err
	}

	provider, err = withCaches(ctx, c, provider, env)
	if err != nil {
		env.Close()
		return nil, err
	}

	opts := builderOptions(c)
	opts.DefaultColorscale = presets["default"]
	env.Builder = choropleth.NewBuilder(ds, provider, opts)
	return env, nil
}

func loadDataset(ctx context.Context, c *config.Config, sources *fetcher.Sources) (*dataset.Dataset, error) {
	return dataset.Load(ctx, sources, dataset.LoadOptions{
		Source:   c.Dataset.Source,
		Format:   c.Dataset.Format,
		Encoding: c.Dataset.Encoding,
		Sheet:    c.Dataset.Sheet,
	})
}

func newProvider(ctx context.Context, c *config.Config, sources *fetcher.Sources, env *appEnv) (boundary.Provider, error) {
	switch c.Boundary.Provider {
	case "http":
		return boundary.NewHTTPProvider(sources.HTTP, c.Boundary.BaseURL), nil
	case "file":
		return boundary.NewFileProvider(c.Boundary.Dir), nil
	case "postgres":
		pg, err := openPostgres(ctx, c, env)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, eris.Errorf("unknown boundary provider %q", c.Boundary.Provider)
	}
}

func openPostgres(ctx context.Context, c *config.Config, env *appEnv) (*boundary.PostgresProvider, error) {
	pool, err := db.Connect(ctx, c.Database.URL, c.Database.MaxConns)
	if err != nil {
		return nil, err
	}
	env.closers = append(env.closers, pool.Close)

	pg, err := boundary.NewPostgresProvider(pool, c.Boundary.Table)
	if err != nil {
		return nil, err
	}
	return pg, nil
}

func withCaches(ctx context.Context, c *config.Config, next boundary.Provider, env *appEnv) (boundary.Provider, error) {
	if len(c.Cache.Layers) == 0 {
		return next, nil
	}

	var layers []boundary.Cache
	for _, name := range c.Cache.Layers {
		switch name {
		case "memory":
			mc, err := boundary.NewMemoryCache(c.Cache.MaxEntries, c.Cache.TTL())
			if err != nil {
				return nil, err
			}
			env.Memory = mc
			layers = append(layers, mc)
		case "sqlite":
			sc, err := boundary.NewSQLiteCache(ctx, c.Cache.SQLitePath, c.Cache.TTL())
			if err != nil {
				return nil, err
			}
			env.SQLite = sc
			env.closers = append(env.closers, closeLogged("sqlite cache", sc))
			layers = append(layers, sc)
		case "redis":
			rc, err := boundary.OpenRedis(ctx, c.Redis.Addr, c.Redis.Password, c.Redis.DB)
			if err != nil {
				return nil, err
			}
			env.closers = append(env.closers, closeLogged("redis", rc))
			layers = append(layers, boundary.NewRedisCache(rc, c.Cache.TTL()))
		default:
			return nil, eris.Errorf("unknown cache layer %q", name)
		}
	}

	zap.L().Info("boundary cache enabled", zap.Strings("layers", c.Cache.Layers), zap.Duration("ttl", c.Cache.TTL()))
	return boundary.NewCachedProvider(next, metrics.ObserveCacheLookup, layers...), nil
}

// purgeCaches drops expired entries from the on-disk cache, if one is configured.
func (e *appEnv) purgeCaches(ctx context.Context) {
	if e.SQLite == nil {
		return
	}
	n, err := e.SQLite.Purge(ctx)
	if err != nil {
		zap.L().Warn("sqlite cache purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		zap.L().Debug("expired cache entries removed", zap.Int64("removed", n))
	}
}

func closeLogged(name string, c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			zap.L().Warn("close failed", zap.String("resource", name), zap.Error(err))
		}
	}
}

// rebuildTimeout bounds a CLI rebuild: every bin may use its full fetch timeout.
func rebuildTimeout(c *config.Config, bins int) time.Duration {
	return time.Duration(max(bins, 1)+1) * max(c.Fetch.FetchTimeout(), time.Second)
}
