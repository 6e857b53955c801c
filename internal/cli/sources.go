package cli

import (
	"cmp"
	"context"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/plcpack/pkg/cache"
	"github.com/matzehuels/plcpack/pkg/config"
	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/integrations/github"
	"github.com/matzehuels/plcpack/pkg/integrations/nuget"
	"github.com/matzehuels/plcpack/pkg/integrations/rest"
	"github.com/matzehuels/plcpack/pkg/manager"
	"github.com/matzehuels/plcpack/pkg/protocol"
	"github.com/matzehuels/plcpack/pkg/session"
)

// env is everything one command run shares: settings, caches, sessions
// and the configured package servers in their configured order.
type env struct {
	settings *Settings
	dir      string // cache root
	http     cache.Cache
	sessions session.Store
	servers  []protocol.Server
	logger   *log.Logger
}

// openEnv loads the settings and builds one server per enabled source.
// Servers are not connected yet; see connect.
func (c *CLI) openEnv(ctx context.Context) (*env, error) {
	logger := loggerFromContext(ctx)
	path, err := settingsPath(c.configPath)
	if err != nil {
		return nil, err
	}
	settings, err := loadSettings(path)
	if err != nil {
		return nil, err
	}

	dir := settings.Cache.Dir
	if dir == "" {
		if dir, err = cacheDir(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "locate cache directory")
		}
	}
	http, err := openHTTPCache(ctx, settings.Cache, dir, c.noCache)
	if err != nil {
		return nil, err
	}

	cfgDir, err := configDir()
	if err != nil {
		http.Close()
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "locate config directory")
	}
	sessions, err := session.NewFileStore(filepath.Join(cfgDir, "sessions"))
	if err != nil {
		http.Close()
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open session store")
	}

	e := &env{
		settings: settings,
		dir:      dir,
		http:     http,
		sessions: sessions,
		logger:   logger,
	}
	for _, src := range settings.Sources {
		if src.Disabled {
			continue
		}
		srv, err := e.newServer(src)
		if err != nil {
			http.Close()
			return nil, err
		}
		e.servers = append(e.servers, srv)
	}
	return e, nil
}

// openHTTPCache opens the configured response cache backend. A backend that
// cannot be reached degrades to no caching with a warning.
func openHTTPCache(ctx context.Context, s CacheSettings, dir string, disabled bool) (cache.Cache, error) {
	if disabled {
		return cache.NewNullCache(), nil
	}
	c, err := cache.Open(ctx, cache.Config{
		Backend:   s.Backend,
		Dir:       httpDir(dir),
		RedisAddr: s.RedisAddr,
		RedisDB:   s.RedisDB,
	})
	if err != nil {
		if strings.EqualFold(s.Backend, cache.BackendRedis) {
			loggerFromContext(ctx).Warn("response cache unavailable, continuing without", "err", err)
			return cache.NewNullCache(), nil
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open response cache")
	}
	return c, nil
}

func (e *env) newServer(src SourceSettings) (protocol.Server, error) {
	ttl := e.settings.Cache.TTL.Duration
	switch strings.ToLower(src.Type) {
	case "", SourceREST:
		return rest.New(src.Name, src.URL, rest.Options{Cache: e.http, TTL: ttl, Sessions: e.sessions, Logger: e.logger}), nil
	case SourceNuGet:
		return nuget.New(src.Name, src.URL, nuget.Options{Cache: e.http, TTL: ttl, Logger: e.logger}), nil
	case SourceGitHub:
		srv, err := github.New(src.Name, src.URL, github.Options{Cache: e.http, TTL: ttl, Logger: e.logger})
		if err != nil {
			return nil, err
		}
		return srv, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidInput, "source %q: unknown type %q", src.Name, src.Type)
}

// Close releases the response cache.
func (e *env) Close() {
	if err := e.http.Close(); err != nil {
		e.logger.Debug("close response cache", "err", err)
	}
}

// connect logs every server in, reusing stored sessions. A server whose
// login fails stays disconnected and the run continues without it.
func (e *env) connect(ctx context.Context) []protocol.Server {
	for _, srv := range e.servers {
		if err := e.login(ctx, srv); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.logger.Warn("source unavailable", "source", srv.Name(), "err", err)
			continue
		}
		e.logger.Debug("source connected", "source", srv.Name(), "url", srv.URL())
	}
	return protocol.Connected(e.servers)
}

// login connects srv. REST sources read their own session; the others are
// given the stored credentials.
func (e *env) login(ctx context.Context, srv protocol.Server) error {
	if _, ok := srv.(*rest.Server); ok {
		return srv.Login(ctx, "", "")
	}
	sess, err := e.sessions.Get(ctx, srv.Name())
	if err != nil || sess == nil {
		return srv.Login(ctx, "", "")
	}
	return srv.Login(ctx, sess.Username, sess.Token)
}

// server returns the configured server named name.
func (e *env) server(name string) (protocol.Server, error) {
	for _, srv := range e.servers {
		if strings.EqualFold(srv.Name(), name) {
			return srv, nil
		}
	}
	return nil, errors.New(errors.ErrCodeNotFound, "no enabled source named %q", name)
}

// artifactRoot is the library cache the manager downloads into.
func (e *env) artifactRoot() string { return libraryDir(e.dir) }

// workspace is an env with a loaded manifest and a manager over it.
type workspace struct {
	*env
	manifest *config.Manifest
	manager  *manager.Manager
}

// openWorkspace loads the manifest selected by --manifest, connects the
// sources and builds a manager.
func (c *CLI) openWorkspace(ctx context.Context) (*workspace, error) {
	manifest, err := c.loadManifest()
	if err != nil {
		return nil, err
	}
	e, err := c.openEnv(ctx)
	if err != nil {
		return nil, err
	}
	servers := e.connect(ctx)
	if err := ctx.Err(); err != nil {
		e.Close()
		return nil, err
	}
	if len(servers) == 0 {
		e.logger.Warn("no package source is reachable")
	}
	return &workspace{
		env:      e,
		manifest: manifest,
		manager:  e.newManager(manifest, servers),
	}, nil
}

func (e *env) newManager(manifest *config.Manifest, servers []protocol.Server) *manager.Manager {
	return manager.New(manifest, servers, manager.Options{
		CacheRoot: e.artifactRoot(),
		Policy:    e.settings.policy(),
		Framework: e.settings.Framework,
		Logger:    e.logger,
	})
}

// manifestFile returns the manifest path selected by --manifest.
func (c *CLI) manifestFile() string {
	return config.FindManifest(cmp.Or(c.manifestPath, "."))
}

func (c *CLI) loadManifest() (*config.Manifest, error) {
	path, err := filepath.Abs(c.manifestFile())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "manifest path")
	}
	return config.Load(filepath.Dir(path), path)
}
