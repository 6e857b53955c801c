// Package registry is the plcpack catalog server.
//
// It serves the REST protocol of [rest] on top of a [Store], so the same
// client that talks to a hosted catalog can talk to a self-hosted one:
//
//	store, err := registry.Open(ctx, "registry.db")
//	srv := registry.New(store, registry.Options{Users: users})
//	err = srv.ListenAndServe(ctx, ":8080")
//
// Reads are anonymous. Uploads need a bearer token obtained from the login
// endpoint with one of the configured users; tokens live in a
// [session.Store] and expire after Options.TokenTTL.
package registry

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/matzehuels/plcpack/pkg/artifact"
	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/integrations/rest"
	"github.com/matzehuels/plcpack/pkg/protocol"
	"github.com/matzehuels/plcpack/pkg/session"
)

const (
	defaultPerPage  = 25
	maxPerPage      = 100
	maxUploadBytes  = 64 << 20
	shutdownTimeout = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	// Users maps user names to bcrypt password hashes (see HashPassword).
	// Without users nobody can upload.
	Users    map[string]string
	Sessions session.Store // Issued tokens (default: in memory)
	TokenTTL time.Duration // Token lifetime (default: session.DefaultTTL)
	Logger   *log.Logger
}

// Server serves a Store over HTTP.
type Server struct {
	store    Store
	users    map[string]string
	sessions session.Store
	ttl      time.Duration
	logger   *log.Logger
	router   chi.Router
}

// New creates a server for store.
func New(store Store, opts Options) *Server {
	s := &Server{
		store:    store,
		users:    opts.Users,
		sessions: opts.Sessions,
		ttl:      opts.TokenTTL,
		logger:   opts.Logger,
	}
	if s.sessions == nil {
		s.sessions = session.NewMemoryStore()
	}
	if s.ttl == 0 {
		s.ttl = session.DefaultTTL
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()
	s.logger.Info("registry listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get(rest.PathCatalog, s.handleCatalog)
	r.Get(rest.PathResolve, s.handleResolve)
	r.Get(rest.PathVersions, s.handleVersions)
	r.Get(rest.PathDownload+"{id}", s.handleDownload)
	r.Post(rest.PathLogin, s.handleLogin)
	r.With(s.requireToken).Put(rest.PathPackages, s.handlePush)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.fail(w, r, errors.New(errors.ErrCodeNotFound, "no route for %s %s", r.Method, r.URL.Path))
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"id", middleware.GetReqID(r.Context()))
	})
}

type userKey struct{}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			s.fail(w, r, errors.New(errors.ErrCodeUnauthorized, "missing bearer token"))
			return
		}
		sess, err := s.sessions.Get(r.Context(), token)
		if err != nil {
			s.fail(w, r, errors.Wrap(errors.ErrCodeInternal, err, "read session"))
			return
		}
		if sess == nil {
			s.fail(w, r, errors.New(errors.ErrCodeUnauthorized, "invalid or expired token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, sess.Username)))
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := intParam(q.Get(rest.ParamPage), 1)
	perPage := min(intParam(q.Get(rest.ParamPerPage), defaultPerPage), maxPerPage)

	items, err := s.store.Packages(r.Context(), q.Get(rest.ParamSearch))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	start := (page - 1) * perPage
	resp := rest.CatalogPage{Items: []protocol.CatalogItem{}}
	if start < len(items) {
		end := min(start+perPage, len(items))
		resp.Items, resp.HasMore = items[start:end], end < len(items)
	}
	s.reply(w, http.StatusOK, resp)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	s.lookup(w, r, Select)
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get(rest.ParamVersion) == "" {
		s.fail(w, r, errors.New(errors.ErrCodeInvalidVersion, "version is required"))
		return
	}
	s.lookup(w, r, Exact)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request, pick func([]*protocol.PackageVersion, rest.Query) *protocol.PackageVersion) {
	q := rest.ParseQuery(r.URL.Query())
	if q.Library.Name == "" {
		s.fail(w, r, errors.New(errors.ErrCodeInvalidInput, "name is required"))
		return
	}
	versions, err := s.store.Versions(r.Context(), q.Library.Name, q.Library.DistributorName)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v := pick(versions, q)
	if v == nil {
		s.fail(w, r, errors.New(errors.ErrCodePackageNotFound, "%s not found", q.Library))
		return
	}
	if q.Binary {
		if v.Binary, err = s.store.Binary(r.Context(), v.PackageVersionID); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	s.reply(w, http.StatusOK, withDownloadURL(v))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid version id"))
		return
	}
	v, err := s.store.Version(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data, err := s.store.Binary(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	file := artifact.PathFor("", v.Name, v.Version, "", v.Compiled)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+file+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req rest.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, errors.Wrap(errors.ErrCodeDecode, err, "invalid login request"))
		return
	}
	hash, ok := s.users[req.Username]
	if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		s.logger.Warn("login rejected", "user", req.Username)
		s.fail(w, r, errors.New(errors.ErrCodeUnauthorized, "invalid username or password"))
		return
	}

	token := session.GenerateToken()
	sess := session.New(token, req.Username, token, s.ttl)
	if err := s.sessions.Set(r.Context(), sess); err != nil {
		s.fail(w, r, errors.Wrap(errors.ErrCodeInternal, err, "store session"))
		return
	}
	s.logger.Info("login", "user", req.Username)
	s.reply(w, http.StatusOK, rest.LoginResponse{Token: token, ExpiresAt: sess.ExpiresAt})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var v protocol.PackageVersion
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&v); err != nil {
		s.fail(w, r, errors.Wrap(errors.ErrCodeDecode, err, "invalid package document"))
		return
	}
	if v.BinarySha256 == "" {
		v.BinarySha256 = artifact.Checksum(v.Binary)
	} else if err := artifact.Verify(v.Binary, v.BinarySha256); err != nil {
		s.fail(w, r, err)
		return
	}

	stored, err := s.store.Put(r.Context(), &v)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	user, _ := r.Context().Value(userKey{}).(string)
	s.logger.Info("published", "package", stored.Name, "version", stored.Version, "user", user)
	s.reply(w, http.StatusCreated, withDownloadURL(stored))
}

func withDownloadURL(v *protocol.PackageVersion) *protocol.PackageVersion {
	v.BinaryDownloadURL = rest.PathDownload + strconv.Itoa(v.PackageVersionID)
	return v
}

func (s *Server) reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("write response", "err", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	status := statusOf(code)
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	s.reply(w, status, rest.ErrorResponse{Code: string(code), Error: errors.UserMessage(err)})
}

func statusOf(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidPackage, errors.ErrCodeInvalidVersion,
		errors.ErrCodeInvalidReference, errors.ErrCodeDecode, errors.ErrCodeArtifactMissing,
		errors.ErrCodeChecksumMismatch:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodePackageNotFound:
		return http.StatusNotFound
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func intParam(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// HashPassword returns the bcrypt hash to put into Options.Users.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "hash password")
	}
	return string(h), nil
}

// ParseUsers turns "name:password" pairs into Options.Users.
func ParseUsers(pairs []string) (map[string]string, error) {
	users := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, pw, ok := strings.Cut(p, ":")
		if !ok || name == "" || pw == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "invalid user %q: use name:password", name)
		}
		h, err := HashPassword(pw)
		if err != nil {
			return nil, err
		}
		users[name] = h
	}
	return users, nil
}
