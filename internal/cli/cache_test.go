package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCacheDir(t *testing.T) {
	t.Run("xdg", func(t *testing.T) {
		base := t.TempDir()
		t.Setenv("XDG_CACHE_HOME", base)
		dir, err := cacheDir()
		if err != nil {
			t.Fatalf("cacheDir() error: %v", err)
		}
		if want := filepath.Join(base, "plcpack"); dir != want {
			t.Errorf("cacheDir() = %q, want %q", dir, want)
		}
	})
	t.Run("home", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_CACHE_HOME", "")
		t.Setenv("HOME", home)
		dir, err := cacheDir()
		if err != nil {
			t.Fatalf("cacheDir() error: %v", err)
		}
		if want := filepath.Join(home, ".cache", "plcpack"); dir != want {
			t.Errorf("cacheDir() = %q, want %q", dir, want)
		}
	})
}

func TestConfigDir(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)
	dir, err := configDir()
	if err != nil {
		t.Fatalf("configDir() error: %v", err)
	}
	if want := filepath.Join(base, "plcpack"); dir != want {
		t.Errorf("configDir() = %q, want %q", dir, want)
	}
}

func TestCacheRootFromSettings(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "config.toml")
	custom := filepath.Join(dir, "cache")
	if err := os.WriteFile(settings, []byte("[cache]\ndir = '"+custom+"'\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := &CLI{configPath: settings}
	root, err := c.cacheRoot()
	if err != nil {
		t.Fatalf("cacheRoot() error: %v", err)
	}
	if root != custom {
		t.Errorf("cacheRoot() = %q, want %q", root, custom)
	}
}

func TestCacheClear(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "config.toml")
	root := filepath.Join(dir, "cache")
	if err := os.WriteFile(settings, []byte("[cache]\ndir = '"+root+"'\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	lib := filepath.Join(libraryDir(root), "TC3.1", "ZCore_1.0.0.0.library")
	resp := filepath.Join(httpDir(root), "ab", "entry.json")
	for _, p := range []string{lib, resp} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	c := &CLI{configPath: settings}
	cmd := c.cacheClearCommand()
	cmd.SetArgs([]string{"--http"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("cache clear --http: %v", err)
	}
	if _, err := os.Stat(resp); !os.IsNotExist(err) {
		t.Error("http cache entry should be gone")
	}
	if _, err := os.Stat(lib); err != nil {
		t.Error("library should survive cache clear --http")
	}

	cmd = c.cacheClearCommand()
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if _, err := os.Stat(libraryDir(root)); !os.IsNotExist(err) {
		t.Error("library cache should be gone")
	}
}
