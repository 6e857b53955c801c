// Package protocoltest provides an in-memory [protocol.Server] for tests.
package protocoltest

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/matzehuels/plcpack/pkg/artifact"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

// Server is a scripted package server. The zero value is a disconnected
// server with an empty catalog; use New for a connected one.
type Server struct {
	ServerName string
	Items      []protocol.CatalogItem
	Versions   []protocol.PackageVersion

	// Injected failures.
	SearchErr   error
	ResolveErr  error
	DownloadErr error
	LoginErr    error

	mu          sync.Mutex
	connected   bool
	invalidated int

	// Call records.
	SearchCalls   []int // requested pages
	ResolveCalls  []protocol.PlcLibrary
	DownloadCalls []string
	Pushed        []protocol.PackageVersion
}

var (
	_ protocol.Server    = (*Server)(nil)
	_ protocol.Publisher = (*Server)(nil)
)

// New returns a connected server.
func New(name string) *Server {
	return &Server{ServerName: name, connected: true}
}

// Items builds n catalog items named prefix1..prefixN.
func Items(prefix string, n int) []protocol.CatalogItem {
	items := make([]protocol.CatalogItem, n)
	for i := range items {
		items[i] = protocol.CatalogItem{Name: prefix + strconv.Itoa(i+1)}
	}
	return items
}

func (s *Server) Name() string { return s.ServerName }
func (s *Server) URL() string  { return "memory://" + s.ServerName }

func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// SetConnected forces the connection state.
func (s *Server) SetConnected(c bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = c
}

func (s *Server) Login(ctx context.Context, username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = s.LoginErr == nil
	return s.LoginErr
}

func (s *Server) Logout(ctx context.Context) error {
	s.SetConnected(false)
	return nil
}

func (s *Server) Search(ctx context.Context, term string, page, perPage int) ([]protocol.CatalogItem, bool, error) {
	s.mu.Lock()
	s.SearchCalls = append(s.SearchCalls, page)
	s.mu.Unlock()
	if s.SearchErr != nil {
		return nil, false, s.SearchErr
	}

	var matches []protocol.CatalogItem
	for _, it := range s.Items {
		if term == "" || strings.Contains(strings.ToLower(it.Name), strings.ToLower(term)) {
			it.Server = s
			matches = append(matches, it)
		}
	}
	start := (page - 1) * perPage
	if start >= len(matches) {
		return nil, false, nil
	}
	end := min(start+perPage, len(matches))
	return matches[start:end], end < len(matches), nil
}

func (s *Server) Resolve(ctx context.Context, lib protocol.PlcLibrary, target, configuration, branch string) (*protocol.PackageVersion, error) {
	s.mu.Lock()
	s.ResolveCalls = append(s.ResolveCalls, lib)
	s.mu.Unlock()
	if s.ResolveErr != nil {
		return nil, s.ResolveErr
	}
	return s.find(lib, branch, configuration, target), nil
}

func (s *Server) GetVersion(ctx context.Context, lib protocol.PlcLibrary, branch, configuration, target string) (*protocol.PackageVersion, error) {
	if lib.Version == "" {
		return nil, nil
	}
	return s.find(lib, branch, configuration, target), nil
}

// find returns the last version matching name (and version, if pinned),
// preferring one on the requested axes.
func (s *Server) find(lib protocol.PlcLibrary, branch, configuration, target string) *protocol.PackageVersion {
	var fallback *protocol.PackageVersion
	for i := len(s.Versions) - 1; i >= 0; i-- {
		v := s.Versions[i]
		if !strings.EqualFold(v.Name, lib.Name) || (lib.Version != "" && v.Version != lib.Version) {
			continue
		}
		if axisMatch(v.Branch, branch) && axisMatch(v.Target, target) && axisMatch(v.Configuration, configuration) {
			return &v
		}
		if fallback == nil {
			fallback = &v
		}
	}
	return fallback
}

func axisMatch(have, want string) bool {
	return want == "" || strings.EqualFold(have, want)
}

func (s *Server) Download(ctx context.Context, v *protocol.PackageVersion, policy protocol.ChecksumPolicy, cacheRoot string) error {
	s.mu.Lock()
	s.DownloadCalls = append(s.DownloadCalls, v.Name+"@"+v.Version)
	s.mu.Unlock()
	if s.DownloadErr != nil {
		return s.DownloadErr
	}
	store := artifact.NewStore(cacheRoot, nil)
	_, err := store.Save(ctx, v, policy, func(context.Context) ([]byte, error) {
		if len(v.Binary) > 0 {
			return v.Binary, nil
		}
		return []byte(v.Name + " " + v.Version), nil
	}, nil)
	return err
}

func (s *Server) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated++
}

// Invalidations returns how often InvalidateCache was called.
func (s *Server) Invalidations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidated
}

func (s *Server) Push(ctx context.Context, v *protocol.PackageVersion) (*protocol.PackageVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *v
	s.Pushed = append(s.Pushed, stored)
	s.Versions = append(s.Versions, stored)
	return &stored, nil
}

// Downloads returns the number of Download calls.
func (s *Server) Downloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.DownloadCalls)
}
