// Package nuget implements [protocol.Server] for NuGet v3 feeds that carry
// PLC libraries packed as .nupkg files.
//
// The adapter reads the feed's service index to locate the search,
// registration and flat-container resources. Libraries on NuGet feeds
// have a single build, so versions always report branch main, target
// TC3.1 and configuration Release. The distributor is the package's first
// listed author.
package nuget

import (
	"bytes"
	"cmp"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zip"

	"github.com/matzehuels/plcpack/pkg/artifact"
	"github.com/matzehuels/plcpack/pkg/cache"
	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/integrations"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

// DefaultTTL is how long feed responses are cached.
const DefaultTTL = time.Hour

// Options configures a Server.
type Options struct {
	Cache      cache.Cache
	TTL        time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Server is a NuGet v3 feed.
type Server struct {
	name   string
	url    string
	client *integrations.Client
	logger *log.Logger

	mu        sync.RWMutex
	connected bool
	index     *serviceIndex
}

var _ protocol.Server = (*Server)(nil)

// New creates a disconnected adapter for the feed whose service index is
// at indexURL (usually ending in /v3/index.json).
func New(name, indexURL string, opts Options) *Server {
	ttl := cmp.Or(opts.TTL, DefaultTTL)
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	client := integrations.NewClient(opts.Cache, "nuget:"+name+":", ttl, nil)
	if opts.HTTPClient != nil {
		client.SetHTTPClient(opts.HTTPClient)
	}
	return &Server{name: name, url: strings.TrimSpace(indexURL), client: client, logger: logger}
}

func (s *Server) Name() string { return s.name }
func (s *Server) URL() string  { return s.url }

func (s *Server) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Login reads the service index. Credentials are sent as basic
// authentication on every later request.
func (s *Server) Login(ctx context.Context, username, password string) error {
	s.mu.Lock()
	s.connected = false
	s.index = nil
	s.mu.Unlock()

	if username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		s.client.SetHeader("Authorization", "Basic "+cred)
	}
	ix, err := s.serviceIndex(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeLoginFailed, err, "%s: read service index", s.name)
	}
	for _, typ := range []string{typeSearch, typeRegistrations, typePackageBase} {
		if ix.find(typ) == "" {
			return errors.New(errors.ErrCodeLoginFailed, "%s: service index lacks %s", s.name, typ)
		}
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *Server) Logout(ctx context.Context) error {
	s.client.SetHeader("Authorization", "")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.index = nil
	return nil
}

func (s *Server) serviceIndex(ctx context.Context) (*serviceIndex, error) {
	s.mu.RLock()
	ix := s.index
	s.mu.RUnlock()
	if ix != nil {
		return ix, nil
	}

	var fresh serviceIndex
	err := s.client.Cached(ctx, cache.Key("index", s.url), false, &fresh, func() error {
		return s.client.Get(ctx, s.url, &fresh)
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.index = &fresh
	s.mu.Unlock()
	return &fresh, nil
}

func (s *Server) resource(ctx context.Context, typ string) (string, error) {
	ix, err := s.serviceIndex(ctx)
	if err != nil {
		return "", err
	}
	u := ix.find(typ)
	if u == "" {
		return "", errors.New(errors.ErrCodeMalformedResponse, "%s: service index lacks %s", s.name, typ)
	}
	return strings.TrimRight(u, "/"), nil
}

func (s *Server) Search(ctx context.Context, term string, page, perPage int) ([]protocol.CatalogItem, bool, error) {
	base, err := s.resource(ctx, typeSearch)
	if err != nil {
		return nil, false, err
	}
	skip := (page - 1) * perPage
	q := url.Values{
		"q":          {term},
		"skip":       {strconv.Itoa(skip)},
		"take":       {strconv.Itoa(perPage)},
		"prerelease": {"true"},
	}

	var resp searchResponse
	err = s.client.Cached(ctx, cache.Key("search", term, page, perPage), false, &resp, func() error {
		return s.client.Get(ctx, base+"?"+q.Encode(), &resp)
	})
	if err != nil {
		return nil, false, err
	}

	items := make([]protocol.CatalogItem, 0, len(resp.Data))
	for _, r := range resp.Data {
		items = append(items, protocol.CatalogItem{
			Name:            r.ID,
			DistributorName: r.Authors.first(),
			DisplayName:     r.Title,
			Description:     r.Description,
			IconURL:         r.IconURL,
			Downloads:       r.TotalDownloads,
			Server:          s,
		})
	}
	return items, skip+len(resp.Data) < resp.TotalHits, nil
}

// entries returns every listed version of id.
func (s *Server) entries(ctx context.Context, id string) ([]registrationLeaf, error) {
	base, err := s.resource(ctx, typeRegistrations)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(id)

	var ix registrationIndex
	err = s.client.Cached(ctx, cache.Key("registration", lower), false, &ix, func() error {
		if err := s.client.Get(ctx, base+"/"+url.PathEscape(lower)+"/index.json", &ix); err != nil {
			return err
		}
		// Large packages page their registration; pages without inline
		// items are fetched separately.
		for i := range ix.Items {
			if len(ix.Items[i].Items) > 0 || ix.Items[i].ID == "" {
				continue
			}
			var page registrationPage
			if err := s.client.Get(ctx, ix.Items[i].ID, &page); err != nil {
				return err
			}
			ix.Items[i].Items = page.Items
		}
		return nil
	})
	if integrations.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []registrationLeaf
	for _, p := range ix.Items {
		for _, leaf := range p.Items {
			if leaf.CatalogEntry.Listed != nil && !*leaf.CatalogEntry.Listed {
				continue
			}
			out = append(out, leaf)
		}
	}
	return out, nil
}

// Resolve returns the named version, or the latest listed one when lib
// carries no version. The axes are ignored; feeds publish one build.
func (s *Server) Resolve(ctx context.Context, lib protocol.PlcLibrary, target, configuration, branch string) (*protocol.PackageVersion, error) {
	leaves, err := s.entries(ctx, lib.Name)
	if err != nil || len(leaves) == 0 {
		return nil, err
	}

	want := lib.Version
	if want == "" {
		versions := make([]string, len(leaves))
		for i, l := range leaves {
			versions[i] = l.CatalogEntry.Version
		}
		want = protocol.Latest(versions)
	}
	for _, l := range leaves {
		if protocol.CompareVersions(l.CatalogEntry.Version, want) == 0 {
			return s.version(l), nil
		}
	}
	return nil, nil
}

// GetVersion returns exactly lib.Version, or nil when the feed lacks it or
// the requested axes differ from the feed's fixed ones.
func (s *Server) GetVersion(ctx context.Context, lib protocol.PlcLibrary, branch, configuration, target string) (*protocol.PackageVersion, error) {
	if lib.Version == "" {
		return nil, nil
	}
	for have, want := range map[string]string{protocol.DefaultBranch: branch, protocol.DefaultTarget: target, protocol.DefaultConfiguration: configuration} {
		if want != "" && !strings.EqualFold(have, want) {
			return nil, nil
		}
	}
	return s.Resolve(ctx, lib, target, configuration, branch)
}

func (s *Server) version(l registrationLeaf) *protocol.PackageVersion {
	e := l.CatalogEntry
	v := &protocol.PackageVersion{
		Name:              e.ID,
		Title:             e.Title,
		DisplayName:       e.Title,
		DistributorName:   e.Authors.first(),
		Description:       e.Description,
		Authors:           string(e.Authors),
		Version:           e.Version,
		Branch:            protocol.DefaultBranch,
		Target:            protocol.DefaultTarget,
		Configuration:     protocol.DefaultConfiguration,
		License:           e.LicenseExpression,
		ProjectURL:        e.ProjectURL,
		BinaryDownloadURL: l.PackageContent,
	}
	for _, g := range e.DependencyGroups {
		for _, d := range g.Dependencies {
			v.Dependencies = append(v.Dependencies, protocol.PackageVersion{Name: d.ID, Version: minVersion(d.Range)})
		}
	}
	return v
}

// Download fetches the .nupkg and stores the library it contains.
func (s *Server) Download(ctx context.Context, v *protocol.PackageVersion, policy protocol.ChecksumPolicy, cacheRoot string) error {
	store := artifact.NewStore(cacheRoot, s.logger)
	_, err := store.Save(ctx, v, policy, func(ctx context.Context) ([]byte, error) {
		pkgURL, err := s.packageURL(ctx, v)
		if err != nil {
			return nil, err
		}
		var nupkg []byte
		err = cache.RetryWithBackoff(ctx, func() error {
			var err error
			nupkg, err = s.client.GetBytes(ctx, pkgURL)
			return err
		})
		if integrations.IsNotFound(err) {
			return nil, errors.Wrap(errors.ErrCodeArtifactMissing, err, "%s: no package for %s %s", s.name, v.Name, v.Version)
		}
		if err != nil {
			return nil, err
		}
		return extractLibrary(nupkg, v.Compiled)
	}, nil)
	return err
}

func (s *Server) packageURL(ctx context.Context, v *protocol.PackageVersion) (string, error) {
	if v.BinaryDownloadURL != "" {
		return v.BinaryDownloadURL, nil
	}
	base, err := s.resource(ctx, typePackageBase)
	if err != nil {
		return "", err
	}
	id, ver := strings.ToLower(v.Name), strings.ToLower(v.Version)
	return base + "/" + path.Join(url.PathEscape(id), url.PathEscape(ver), url.PathEscape(id+"."+ver+".nupkg")), nil
}

// extractLibrary returns the first library file in a .nupkg archive,
// preferring the compiled variant when compiled is set.
func extractLibrary(nupkg []byte, compiled bool) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(nupkg), int64(len(nupkg)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedResponse, err, "invalid nupkg")
	}
	want := []string{artifact.ExtLibrary, artifact.ExtCompiledLibrary}
	if compiled {
		want[0], want[1] = want[1], want[0]
	}
	for _, ext := range want {
		for _, f := range zr.File {
			if !strings.EqualFold(path.Ext(f.Name), ext) {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeMalformedResponse, err, "open %s in nupkg", f.Name)
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeMalformedResponse, err, "read %s in nupkg", f.Name)
			}
			return data, nil
		}
	}
	return nil, errors.New(errors.ErrCodeMalformedResponse, "nupkg contains no library")
}

// InvalidateCache makes later lookups bypass the response cache.
func (s *Server) InvalidateCache() {
	s.client.Invalidate()
	s.mu.Lock()
	s.index = nil
	s.mu.Unlock()
}
