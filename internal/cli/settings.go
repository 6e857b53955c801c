package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/plcpack/pkg/cache"
	"github.com/matzehuels/plcpack/pkg/config"
	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

// settingsFile is the name of the user settings file inside configDir.
const settingsFile = "config.toml"

// Source types accepted in [[sources]].
const (
	SourceREST   = "rest"
	SourceNuGet  = "nuget"
	SourceGitHub = "github"
)

// Default public source used when no settings file exists.
const (
	defaultSourceName = "public"
	defaultSourceURL  = "https://zeugwerk.dev/api"
)

// Settings is the user configuration of plcpack.
//
//	checksum = "throw"
//
//	[cache]
//	backend = "redis"
//	redis-addr = "localhost:6379"
//	ttl = "12h"
//
//	[[sources]]
//	name = "public"
//	type = "rest"
//	url = "https://zeugwerk.dev/api"
//
//	[[sources]]
//	name = "plc-libs"
//	type = "github"
//	url = "acme/plc-libs"
//
//	[framework]
//	vendor = "Zeugwerk GmbH"
type Settings struct {
	Checksum  string                   `toml:"checksum,omitempty"`
	Cache     CacheSettings            `toml:"cache"`
	Sources   []SourceSettings         `toml:"sources"`
	Framework config.FrameworkSettings `toml:"framework"`
}

// CacheSettings configure the HTTP response cache and the artifact cache.
type CacheSettings struct {
	Dir       string   `toml:"dir,omitempty"`
	Backend   string   `toml:"backend,omitempty"`
	RedisAddr string   `toml:"redis-addr,omitempty"`
	RedisDB   int      `toml:"redis-db,omitempty"`
	TTL       Duration `toml:"ttl,omitempty"`
}

// SourceSettings configure one package server. Servers are consulted in
// the order they are listed.
type SourceSettings struct {
	Name     string `toml:"name"`
	Type     string `toml:"type"`
	URL      string `toml:"url"`
	Username string `toml:"username,omitempty"`
	// Disabled sources stay configured but take no part in any operation.
	Disabled bool `toml:"disabled,omitempty"`
}

// Duration is a time.Duration written as "12h" in TOML.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// defaultSettings returns the settings used when no settings file exists.
func defaultSettings() *Settings {
	return &Settings{
		Checksum: protocol.ChecksumThrow.String(),
		Cache:    CacheSettings{Backend: cache.BackendFile},
		Sources: []SourceSettings{
			{Name: defaultSourceName, Type: SourceREST, URL: defaultSourceURL},
		},
		Framework: config.FrameworkSettings{}.WithDefaults(),
	}
}

// settingsPath returns the explicit path or the default location.
func settingsPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, settingsFile), nil
}

// loadSettings reads the settings at path. A missing file yields the
// defaults; a present file replaces them section by section.
func loadSettings(path string) (*Settings, error) {
	s := defaultSettings()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read settings")
	}

	var file Settings
	md, err := toml.Decode(string(data), &file)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecode, err, "parse settings %s", path)
	}
	if len(file.Sources) > 0 || md.IsDefined("sources") {
		s.Sources = file.Sources
	}
	if md.IsDefined("cache") {
		s.Cache = file.Cache
	}
	if file.Checksum != "" {
		s.Checksum = file.Checksum
	}
	if md.IsDefined("framework") {
		s.Framework = file.Framework.WithDefaults()
	}
	return s, s.validate()
}

func (s *Settings) validate() error {
	if _, err := protocol.ParseChecksumPolicy(s.Checksum); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "settings")
	}
	seen := map[string]bool{}
	for i, src := range s.Sources {
		name := strings.ToLower(src.Name)
		switch {
		case name == "":
			return errors.New(errors.ErrCodeInvalidInput, "source %d has no name", i+1)
		case seen[name]:
			return errors.New(errors.ErrCodeInvalidInput, "source %q is listed twice", src.Name)
		case src.URL == "":
			return errors.New(errors.ErrCodeInvalidInput, "source %q has no url", src.Name)
		}
		switch strings.ToLower(src.Type) {
		case "", SourceREST, SourceNuGet, SourceGitHub:
		default:
			return errors.New(errors.ErrCodeInvalidInput, "source %q: unknown type %q (available: rest, nuget, github)", src.Name, src.Type)
		}
		seen[name] = true
	}
	return nil
}

// policy returns the configured checksum policy.
func (s *Settings) policy() protocol.ChecksumPolicy {
	p, _ := protocol.ParseChecksumPolicy(s.Checksum)
	return p
}

// source returns the source named name.
func (s *Settings) source(name string) (SourceSettings, bool) {
	for _, src := range s.Sources {
		if strings.EqualFold(src.Name, name) {
			return src, true
		}
	}
	return SourceSettings{}, false
}

// save writes the settings to path.
func (s *Settings) save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode settings")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create settings directory")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write settings")
	}
	return nil
}
