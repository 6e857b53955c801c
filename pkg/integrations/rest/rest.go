// Package rest implements [protocol.Server] for the plcpack REST catalog.
//
// The wire format is plain JSON over HTTP; the document types and paths
// are exported so that the catalog server in pkg/registry speaks the same
// protocol. Search pages and resolved versions are cached through the
// shared [integrations.Client]; tokens from Login are kept in a
// [session.Store] so later runs reuse them.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/plcpack/pkg/artifact"
	"github.com/matzehuels/plcpack/pkg/cache"
	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/integrations"
	"github.com/matzehuels/plcpack/pkg/protocol"
	"github.com/matzehuels/plcpack/pkg/session"
)

// DefaultTTL is how long search pages and resolved versions are cached.
const DefaultTTL = 10 * time.Minute

// Options configures a Server.
type Options struct {
	Cache      cache.Cache   // Response cache (default: none)
	TTL        time.Duration // Cache TTL (default: DefaultTTL)
	Sessions   session.Store // Token store (optional)
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Server is a REST catalog source.
type Server struct {
	name     string
	url      string
	client   *integrations.Client
	sessions session.Store
	logger   *log.Logger

	mu        sync.RWMutex
	connected bool
	token     string
}

var (
	_ protocol.Server    = (*Server)(nil)
	_ protocol.Publisher = (*Server)(nil)
)

// New creates a disconnected server for the catalog at baseURL. Call Login
// to connect it.
func New(name, baseURL string, opts Options) *Server {
	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	client := integrations.NewClient(opts.Cache, "rest:"+name+":", ttl, map[string]string{"Accept": "application/json"})
	if opts.HTTPClient != nil {
		client.SetHTTPClient(opts.HTTPClient)
	}
	return &Server{
		name:     name,
		url:      integrations.BaseURL(baseURL),
		client:   client,
		sessions: opts.Sessions,
		logger:   logger,
	}
}

func (s *Server) Name() string { return s.name }
func (s *Server) URL() string  { return s.url }

func (s *Server) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Server) setConnected(c bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = c
}

func (s *Server) setToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	if token == "" {
		s.client.SetHeader("Authorization", "")
		return
	}
	s.client.SetHeader("Authorization", "Bearer "+token)
}

// Login authenticates with username and password and stores the token.
// Without credentials a stored token is reused if there is one, and the
// catalog is probed anonymously otherwise. A failed login leaves the
// server disconnected.
func (s *Server) Login(ctx context.Context, username, password string) error {
	s.setConnected(false)

	if username == "" {
		if sess := s.storedSession(ctx); sess != nil {
			s.setToken(sess.Token)
		}
		if err := s.probe(ctx); err != nil {
			return errors.Wrap(errors.ErrCodeLoginFailed, err, "%s: catalog not reachable", s.name)
		}
		s.setConnected(true)
		return nil
	}

	var resp LoginResponse
	err := s.client.Send(ctx, http.MethodPost, s.endpoint(PathLogin, nil), LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return errors.Wrap(errors.ErrCodeLoginFailed, err, "%s: login as %s", s.name, username)
	}
	if resp.Token == "" {
		return errors.New(errors.ErrCodeLoginFailed, "%s: login response carries no token", s.name)
	}
	s.setToken(resp.Token)
	s.setConnected(true)

	if s.sessions != nil {
		sess := session.New(s.name, username, resp.Token, 0)
		sess.ExpiresAt = resp.ExpiresAt
		if err := s.sessions.Set(ctx, sess); err != nil {
			s.logger.Warn("could not store session", "source", s.name, "err", err)
		}
	}
	return nil
}

func (s *Server) storedSession(ctx context.Context) *session.Session {
	if s.sessions == nil {
		return nil
	}
	sess, err := s.sessions.Get(ctx, s.name)
	if err != nil {
		s.logger.Debug("could not read session", "source", s.name, "err", err)
		return nil
	}
	return sess
}

func (s *Server) probe(ctx context.Context) error {
	var page CatalogPage
	q := url.Values{ParamPage: {"1"}, ParamPerPage: {"1"}}
	return s.client.Get(ctx, s.endpoint(PathCatalog, q), &page)
}

// Logout forgets the token locally and in the session store.
func (s *Server) Logout(ctx context.Context) error {
	s.setToken("")
	s.setConnected(false)
	if s.sessions != nil {
		return s.sessions.Delete(ctx, s.name)
	}
	return nil
}

func (s *Server) Search(ctx context.Context, term string, page, perPage int) ([]protocol.CatalogItem, bool, error) {
	q := url.Values{ParamPage: {strconv.Itoa(page)}, ParamPerPage: {strconv.Itoa(perPage)}}
	if term != "" {
		q.Set(ParamSearch, term)
	}
	var resp CatalogPage
	key := cache.Key("search", term, page, perPage)
	err := s.client.Cached(ctx, key, false, &resp, func() error {
		return s.client.Get(ctx, s.endpoint(PathCatalog, q), &resp)
	})
	if err != nil {
		return nil, false, err
	}
	for i := range resp.Items {
		resp.Items[i].Server = s
	}
	return resp.Items, resp.HasMore, nil
}

func (s *Server) Resolve(ctx context.Context, lib protocol.PlcLibrary, target, configuration, branch string) (*protocol.PackageVersion, error) {
	return s.lookup(ctx, PathResolve, Query{Library: lib, Branch: branch, Target: target, Configuration: configuration})
}

func (s *Server) GetVersion(ctx context.Context, lib protocol.PlcLibrary, branch, configuration, target string) (*protocol.PackageVersion, error) {
	if lib.Version == "" {
		return nil, nil
	}
	return s.lookup(ctx, PathVersions, Query{Library: lib, Branch: branch, Target: target, Configuration: configuration})
}

func (s *Server) lookup(ctx context.Context, path string, q Query) (*protocol.PackageVersion, error) {
	var v protocol.PackageVersion
	key := cache.Key(strings.TrimPrefix(path, "/api/v1/"), q.Library.Name, q.Library.Version, q.Library.DistributorName, q.Branch, q.Target, q.Configuration)
	err := s.client.Cached(ctx, key, false, &v, func() error {
		return s.client.Get(ctx, s.endpoint(path, q.Values()), &v)
	})
	if integrations.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !v.Valid() {
		return nil, nil
	}
	return &v, nil
}

// Download stores the artifact of v below cacheRoot. The primary transfer
// uses the version's download URL; the fallback fetches the version
// document with the binary inline.
func (s *Server) Download(ctx context.Context, v *protocol.PackageVersion, policy protocol.ChecksumPolicy, cacheRoot string) error {
	store := artifact.NewStore(cacheRoot, s.logger)

	primary := func(ctx context.Context) ([]byte, error) {
		if len(v.Binary) > 0 {
			return v.Binary, nil
		}
		var data []byte
		err := cache.RetryWithBackoff(ctx, func() error {
			var err error
			data, err = s.client.GetBytes(ctx, s.downloadURL(v))
			return err
		})
		return data, err
	}
	fallback := func(ctx context.Context) ([]byte, error) {
		var full protocol.PackageVersion
		q := Query{Library: v.Library(), Branch: v.Branch, Target: v.Target, Configuration: v.Configuration, Binary: true}
		if err := s.client.Get(ctx, s.endpoint(PathVersions, q.Values()), &full); err != nil {
			return nil, err
		}
		if len(full.Binary) == 0 {
			return nil, errors.New(errors.ErrCodeMalformedResponse, "%s: version document of %s carries no binary", s.name, v.Name)
		}
		return full.Binary, nil
	}

	_, err := store.Save(ctx, v, policy, primary, fallback)
	if integrations.IsNotFound(err) {
		return errors.Wrap(errors.ErrCodeArtifactMissing, err, "%s: no artifact for %s %s", s.name, v.Name, v.Version)
	}
	return err
}

func (s *Server) downloadURL(v *protocol.PackageVersion) string {
	if v.BinaryDownloadURL != "" {
		if u, err := url.Parse(v.BinaryDownloadURL); err == nil && u.IsAbs() {
			return v.BinaryDownloadURL
		}
		return s.url + "/" + strings.TrimLeft(v.BinaryDownloadURL, "/")
	}
	return s.endpoint(PathDownload+strconv.Itoa(v.PackageVersionID), nil)
}

// InvalidateCache makes later lookups bypass the response cache.
func (s *Server) InvalidateCache() {
	s.client.Invalidate()
}

// Push uploads v. It requires a login.
func (s *Server) Push(ctx context.Context, v *protocol.PackageVersion) (*protocol.PackageVersion, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" {
		return nil, errors.New(errors.ErrCodeUnauthorized, "%s: push requires a login", s.name)
	}
	if len(v.Binary) == 0 {
		return nil, errors.New(errors.ErrCodeArtifactMissing, "%s %s has no binary to push", v.Name, v.Version)
	}

	var stored protocol.PackageVersion
	if err := s.client.Send(ctx, http.MethodPut, s.endpoint(PathPackages, nil), v, &stored); err != nil {
		return nil, fmt.Errorf("push %s %s to %s: %w", v.Name, v.Version, s.name, err)
	}
	s.client.Invalidate()
	return &stored, nil
}

func (s *Server) endpoint(path string, q url.Values) string {
	return integrations.Endpoint(s.url, path, q)
}
