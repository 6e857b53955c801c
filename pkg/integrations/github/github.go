// Package github implements [protocol.Server] on top of GitHub releases.
//
// A repository acts as a catalog: every release asset named
// <library>_<version>.library (or .compiled-library) is one package
// version. The repository owner is the distributor and the release notes
// become the version notes. Releases carry a single build, so versions
// report branch main, target TC3.1 and configuration Release.
//
// Reading public repositories needs no credentials. Login takes a personal
// access token as the password; pushing creates the release for the
// version's tag when missing and uploads the library as an asset.
package github

import (
	"cmp"
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-github/v57/github"

	"github.com/matzehuels/plcpack/pkg/artifact"
	"github.com/matzehuels/plcpack/pkg/cache"
	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/integrations"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

// DefaultTTL is how long release listings are cached.
const DefaultTTL = 30 * time.Minute

// Options configures a Server.
type Options struct {
	Cache      cache.Cache
	TTL        time.Duration
	HTTPClient *http.Client
	// APIURL overrides https://api.github.com/, for GitHub Enterprise.
	APIURL string
	Logger *log.Logger
}

// Server is a GitHub repository whose releases hold libraries.
type Server struct {
	name   string
	owner  string
	repo   string
	apiURL *url.URL
	http   *http.Client
	client *integrations.Client
	logger *log.Logger

	mu        sync.RWMutex
	gh        *github.Client
	token     string
	connected bool
}

var (
	_ protocol.Server    = (*Server)(nil)
	_ protocol.Publisher = (*Server)(nil)
)

// New creates a disconnected adapter for repo, given as owner/repo or as
// a repository URL.
func New(name, repo string, opts Options) (*Server, error) {
	owner, r, err := ParseRepoRef(repo)
	if err != nil {
		return nil, err
	}
	s := &Server{
		name:   name,
		owner:  owner,
		repo:   r,
		http:   opts.HTTPClient,
		client: integrations.NewClient(opts.Cache, "github:"+name+":", cmp.Or(opts.TTL, DefaultTTL), nil),
		logger: opts.Logger,
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.http == nil {
		s.http = integrations.NewHTTPClient()
	}
	s.client.SetHTTPClient(s.http)
	if opts.APIURL != "" {
		u, err := url.Parse(strings.TrimRight(opts.APIURL, "/") + "/")
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid GitHub API URL")
		}
		s.apiURL = u
	}
	s.gh = s.newClient("")
	return s, nil
}

func (s *Server) newClient(token string) *github.Client {
	c := github.NewClient(s.http)
	if token != "" {
		c = c.WithAuthToken(token)
	}
	if s.apiURL != nil {
		c.BaseURL = s.apiURL
		c.UploadURL = s.apiURL
	}
	return c
}

func (s *Server) Name() string { return s.name }

func (s *Server) URL() string { return "https://github.com/" + s.owner + "/" + s.repo }

func (s *Server) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Server) api() *github.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gh
}

// Login checks that the repository is reachable. password is used as a
// personal access token; username is ignored.
func (s *Server) Login(ctx context.Context, username, password string) error {
	gh := s.newClient(password)
	if _, _, err := gh.Repositories.Get(ctx, s.owner, s.repo); err != nil {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		return errors.Wrap(errors.ErrCodeLoginFailed, err, "%s: cannot access %s/%s", s.name, s.owner, s.repo)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gh = gh
	s.token = password
	s.connected = true
	return nil
}

func (s *Server) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gh = s.newClient("")
	s.token = ""
	s.connected = false
	return nil
}

// release and asset are the cached subset of the GitHub release payload.
type release struct {
	ID     int64     `json:"id"`
	Tag    string    `json:"tag"`
	Notes  string    `json:"notes,omitempty"`
	Author string    `json:"author,omitempty"`
	Date   time.Time `json:"date,omitzero"`
	Assets []asset   `json:"assets,omitempty"`
}

type asset struct {
	ID        int64  `json:"id"`
	File      string `json:"file"`
	URL       string `json:"url"`
	Downloads int    `json:"downloads,omitempty"`

	name, version string
	compiled      bool
}

// releases lists every published release, newest first.
func (s *Server) releases(ctx context.Context) ([]release, error) {
	var out []release
	err := s.client.Cached(ctx, cache.Key("releases", s.owner, s.repo), false, &out, func() error {
		out = out[:0]
		opts := &github.ListOptions{PerPage: 100}
		for {
			page, resp, err := s.api().Repositories.ListReleases(ctx, s.owner, s.repo, opts)
			if err != nil {
				return classify(err)
			}
			for _, r := range page {
				if r.GetDraft() {
					continue
				}
				rel := release{
					ID:     r.GetID(),
					Tag:    r.GetTagName(),
					Notes:  r.GetBody(),
					Author: r.GetAuthor().GetLogin(),
					Date:   r.GetPublishedAt().Time,
				}
				for _, a := range r.Assets {
					rel.Assets = append(rel.Assets, asset{
						ID:        a.GetID(),
						File:      a.GetName(),
						URL:       a.GetBrowserDownloadURL(),
						Downloads: a.GetDownloadCount(),
					})
				}
				out = append(out, rel)
			}
			if resp == nil || resp.NextPage == 0 {
				return nil
			}
			opts.Page = resp.NextPage
		}
	})
	if err != nil {
		return nil, err
	}
	for i := range out {
		for j := range out[i].Assets {
			a := &out[i].Assets[j]
			a.name, a.version, a.compiled, _ = parseAssetName(a.File)
		}
	}
	return out, nil
}

// classify maps go-github errors onto the package's transport errors.
func classify(err error) error {
	var ge *github.ErrorResponse
	if !stderrors.As(err, &ge) || ge.Response == nil {
		return cache.Retryable(err)
	}
	switch code := ge.Response.StatusCode; {
	case code == http.StatusNotFound:
		return integrations.ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return errors.Wrap(errors.ErrCodeUnauthorized, err, "github")
	case code >= 500:
		return cache.Retryable(err)
	default:
		return err
	}
}

// Search lists the distinct libraries whose name contains term.
func (s *Server) Search(ctx context.Context, term string, page, perPage int) ([]protocol.CatalogItem, bool, error) {
	rels, err := s.releases(ctx)
	if err != nil {
		return nil, false, err
	}

	byName := map[string]*protocol.CatalogItem{}
	term = strings.ToLower(term)
	for _, r := range rels {
		for _, a := range r.Assets {
			if a.name == "" || !strings.Contains(strings.ToLower(a.name), term) {
				continue
			}
			key := strings.ToLower(a.name)
			it, ok := byName[key]
			if !ok {
				it = &protocol.CatalogItem{
					Name:            a.name,
					DistributorName: s.owner,
					DisplayName:     a.name,
					Created:         r.Date,
					Modified:        r.Date,
					Server:          s,
				}
				byName[key] = it
			}
			it.Downloads += a.Downloads
			if r.Date.Before(it.Created) {
				it.Created = r.Date
			}
			if r.Date.After(it.Modified) {
				it.Modified = r.Date
			}
		}
	}

	all := make([]protocol.CatalogItem, 0, len(byName))
	for _, it := range byName {
		all = append(all, *it)
	}
	sort.Slice(all, func(i, j int) bool { return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name) })

	start := max(page-1, 0) * perPage
	if start >= len(all) {
		return nil, false, nil
	}
	end := min(start+perPage, len(all))
	return all[start:end], end < len(all), nil
}

// Resolve returns the named version, or the highest published one when
// lib carries no version. The axes are ignored; releases hold one build.
func (s *Server) Resolve(ctx context.Context, lib protocol.PlcLibrary, target, configuration, branch string) (*protocol.PackageVersion, error) {
	rels, err := s.releases(ctx)
	if err != nil {
		return nil, err
	}

	type hit struct {
		rel release
		a   asset
	}
	byVersion := map[string]hit{}
	var versions []string
	for _, r := range rels {
		for _, a := range r.Assets {
			if !strings.EqualFold(a.name, lib.Name) {
				continue
			}
			prev, seen := byVersion[a.version]
			if !seen {
				versions = append(versions, a.version)
			}
			// The source library wins over a compiled one of the same version.
			if !seen || (prev.a.compiled && !a.compiled) {
				byVersion[a.version] = hit{r, a}
			}
		}
	}
	if len(versions) == 0 {
		return nil, nil
	}

	want := lib.Version
	if want == "" {
		want = protocol.Latest(versions)
	}
	for _, v := range versions {
		if protocol.CompareVersions(v, want) == 0 {
			h := byVersion[v]
			return s.version(h.rel, h.a), nil
		}
	}
	return nil, nil
}

// GetVersion returns exactly lib.Version, or nil when it was never
// released or the requested axes differ from the fixed ones.
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

func (s *Server) version(r release, a asset) *protocol.PackageVersion {
	return &protocol.PackageVersion{
		PackageID:         int(r.ID),
		PackageVersionID:  int(a.ID),
		Name:              a.name,
		DisplayName:       a.name,
		DistributorName:   s.owner,
		Authors:           r.Author,
		Version:           a.version,
		Branch:            protocol.DefaultBranch,
		Target:            protocol.DefaultTarget,
		Configuration:     protocol.DefaultConfiguration,
		Compiled:          a.compiled,
		Notes:             r.Notes,
		ProjectURL:        s.URL(),
		BinaryDownloadURL: a.URL,
	}
}

// Download fetches the release asset through the API. The fallback path
// uses the public browser download URL.
func (s *Server) Download(ctx context.Context, v *protocol.PackageVersion, policy protocol.ChecksumPolicy, cacheRoot string) error {
	store := artifact.NewStore(cacheRoot, s.logger)
	_, err := store.Save(ctx, v, policy, func(ctx context.Context) ([]byte, error) {
		if v.PackageVersionID == 0 {
			return s.browserDownload(ctx, v)
		}
		var data []byte
		err := cache.RetryWithBackoff(ctx, func() error {
			rc, _, err := s.api().Repositories.DownloadReleaseAsset(ctx, s.owner, s.repo, int64(v.PackageVersionID), s.http)
			if err != nil {
				return classify(err)
			}
			defer rc.Close()
			data, err = io.ReadAll(rc)
			if err != nil {
				return cache.Retryable(err)
			}
			return nil
		})
		if integrations.IsNotFound(err) {
			return nil, errors.Wrap(errors.ErrCodeArtifactMissing, err, "%s: asset of %s %s is gone", s.name, v.Name, v.Version)
		}
		return data, err
	}, func(ctx context.Context) ([]byte, error) {
		return s.browserDownload(ctx, v)
	})
	return err
}

func (s *Server) browserDownload(ctx context.Context, v *protocol.PackageVersion) ([]byte, error) {
	if v.BinaryDownloadURL == "" {
		return nil, errors.New(errors.ErrCodeArtifactMissing, "%s: %s %s has no download URL", s.name, v.Name, v.Version)
	}
	var data []byte
	err := cache.RetryWithBackoff(ctx, func() error {
		var err error
		data, err = s.client.GetBytes(ctx, v.BinaryDownloadURL)
		return err
	})
	if integrations.IsNotFound(err) {
		return nil, errors.Wrap(errors.ErrCodeArtifactMissing, err, "%s: no asset for %s %s", s.name, v.Name, v.Version)
	}
	return data, err
}

// Push uploads v.Binary as an asset of the release tagged v.Version,
// creating the release when needed.
func (s *Server) Push(ctx context.Context, v *protocol.PackageVersion) (*protocol.PackageVersion, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" {
		return nil, errors.New(errors.ErrCodeUnauthorized, "%s: push requires a token", s.name)
	}
	if len(v.Binary) == 0 {
		return nil, errors.New(errors.ErrCodeArtifactMissing, "%s %s has no binary to push", v.Name, v.Version)
	}

	gh := s.api()
	rel, _, err := gh.Repositories.GetReleaseByTag(ctx, s.owner, s.repo, v.Version)
	if err != nil {
		if !integrations.IsNotFound(classify(err)) {
			return nil, errors.Wrap(errors.ErrCodeNetworkError, err, "%s: look up release %s", s.name, v.Version)
		}
		rel, _, err = gh.Repositories.CreateRelease(ctx, s.owner, s.repo, &github.RepositoryRelease{
			TagName: github.String(v.Version),
			Name:    github.String(v.Name + " " + v.Version),
			Body:    github.String(v.Notes),
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeNetworkError, err, "%s: create release %s", s.name, v.Version)
		}
		s.logger.Info("created release", "repo", s.owner+"/"+s.repo, "tag", v.Version)
	}

	file := assetName(v.Name, v.Version, v.Compiled)
	dir, err := os.MkdirTemp("", "plcpack-push-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, v.Binary, 0o644); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	uploaded, _, err := gh.Repositories.UploadReleaseAsset(ctx, s.owner, s.repo, rel.GetID(), &github.UploadOptions{Name: file}, f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetworkError, err, "%s: upload %s", s.name, file)
	}
	s.client.Invalidate()

	stored := s.version(release{ID: rel.GetID(), Tag: rel.GetTagName(), Notes: rel.GetBody()}, asset{
		ID:       uploaded.GetID(),
		File:     file,
		URL:      uploaded.GetBrowserDownloadURL(),
		name:     v.Name,
		version:  v.Version,
		compiled: v.Compiled,
	})
	stored.BinarySha256 = artifact.Checksum(v.Binary)
	return stored, nil
}

// InvalidateCache makes later lookups bypass the release cache.
func (s *Server) InvalidateCache() { s.client.Invalidate() }
