package nuget

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zip"

	"github.com/matzehuels/plcpack/pkg/cache"
	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

func nupkg(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newFeed(t *testing.T) (*Server, map[string]int) {
	t.Helper()
	hits := map[string]int{}
	var base string
	pkg := nupkg(t, map[string]string{
		"ZCore.nuspec":        "<package/>",
		"lib/ZCore.library":   "library bytes",
		"[Content_Types].xml": "<Types/>",
	})

	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) { json.NewEncoder(w).Encode(v) }
	mux.HandleFunc("/v3/index.json", func(w http.ResponseWriter, r *http.Request) {
		hits["index"]++
		if r.Header.Get("Authorization") == "Basic YmFkOmJhZA==" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, serviceIndex{Version: "3.0.0", Resources: []resource{
			{ID: base + "/query", Type: "SearchQueryService/3.5.0"},
			{ID: base + "/registration/", Type: "RegistrationsBaseUrl/3.6.0"},
			{ID: base + "/flat/", Type: typePackageBase},
		}})
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		hits["search"]++
		q := r.URL.Query()
		data := []map[string]any{
			{"id": "ZCore", "version": "1.2.0.0", "title": "Core", "authors": []string{"Zeugwerk GmbH", "Jane"}, "totalDownloads": 12},
			{"id": "ZAux", "version": "1.0.0.0", "authors": "Zeugwerk GmbH"},
			{"id": "ZMath", "version": "0.1.0.0", "authors": "Zeugwerk GmbH"},
		}
		if q.Get("skip") == "2" {
			data = data[2:]
		} else {
			data = data[:2]
		}
		writeJSON(w, map[string]any{"totalHits": 3, "data": data})
	})
	mux.HandleFunc("/registration/zcore/index.json", func(w http.ResponseWriter, r *http.Request) {
		hits["registration"]++
		writeJSON(w, map[string]any{"items": []any{
			map[string]any{"items": []any{
				leaf("1.0.0.0", base, true),
				leaf("1.10.0.0", base, true),
			}},
			map[string]any{"@id": base + "/registration/zcore/page2.json"},
		}})
	})
	mux.HandleFunc("/registration/zcore/page2.json", func(w http.ResponseWriter, r *http.Request) {
		hits["page"]++
		writeJSON(w, map[string]any{"items": []any{leaf("1.2.0.0", base, true), leaf("2.0.0.0", base, false)}})
	})
	mux.HandleFunc("/flat/zcore/1.2.0.0/zcore.1.2.0.0.nupkg", func(w http.ResponseWriter, r *http.Request) {
		hits["download"]++
		w.Write(pkg)
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	base = ts.URL

	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := New("nuget", ts.URL+"/v3/index.json", Options{Cache: c, HTTPClient: ts.Client(), Logger: log.New(io.Discard)})
	return s, hits
}

func leaf(version, base string, listed bool) map[string]any {
	return map[string]any{
		"catalogEntry": map[string]any{
			"id": "ZCore", "version": version, "authors": "Zeugwerk GmbH", "listed": listed,
			"dependencyGroups": []any{map[string]any{"dependencies": []any{
				map[string]any{"id": "ZAux", "range": "[1.0.0.0, )"},
			}}},
		},
		"packageContent": base + "/flat/zcore/" + version + "/zcore." + version + ".nupkg",
	}
}

func TestLogin(t *testing.T) {
	s, _ := newFeed(t)
	if err := s.Login(context.Background(), "bad", "bad"); !errors.Is(err, errors.ErrCodeLoginFailed) || s.Connected() {
		t.Fatalf("bad credentials: err=%v connected=%v", err, s.Connected())
	}
	if err := s.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Login(context.Background(), "", ""); err != nil || !s.Connected() {
		t.Fatalf("anonymous login: err=%v connected=%v", err, s.Connected())
	}
}

func TestSearch(t *testing.T) {
	s, _ := newFeed(t)
	ctx := context.Background()

	items, more, err := s.Search(ctx, "z", 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || !more {
		t.Fatalf("page 1 = %+v more=%v", items, more)
	}
	if items[0].DistributorName != "Zeugwerk GmbH" || items[0].Downloads != 12 || items[0].Server != s {
		t.Errorf("item = %+v", items[0])
	}
	items, more, err = s.Search(ctx, "z", 2, 2)
	if err != nil || len(items) != 1 || more {
		t.Errorf("page 2 = %+v more=%v err=%v", items, more, err)
	}
}

func TestResolve(t *testing.T) {
	s, hits := newFeed(t)
	ctx := context.Background()

	v, err := s.Resolve(ctx, protocol.PlcLibrary{Name: "ZCore"}, "", "", "")
	if err != nil || v == nil {
		t.Fatalf("Resolve latest = %v, %v", v, err)
	}
	if v.Version != "1.10.0.0" {
		t.Errorf("latest = %s, want 1.10.0.0 (unlisted 2.0.0.0 skipped)", v.Version)
	}
	if b, tg, c := v.Axes(); b != "main" || tg != "TC3.1" || c != "Release" {
		t.Errorf("axes = %s/%s/%s", b, tg, c)
	}
	if len(v.Dependencies) != 1 || v.Dependencies[0].Name != "ZAux" || v.Dependencies[0].Version != "1.0.0.0" {
		t.Errorf("dependencies = %+v", v.Dependencies)
	}

	v, err = s.Resolve(ctx, protocol.PlcLibrary{Name: "zcore", Version: "1.2.0.0"}, "", "", "")
	if err != nil || v == nil || v.Version != "1.2.0.0" {
		t.Fatalf("Resolve pinned = %v, %v", v, err)
	}
	if hits["registration"] != 1 || hits["page"] != 1 {
		t.Errorf("registration fetched %d times, page %d times; want cached", hits["registration"], hits["page"])
	}

	if v, err := s.Resolve(ctx, protocol.PlcLibrary{Name: "Unknown"}, "", "", ""); v != nil || err != nil {
		t.Errorf("unknown package = %v, %v", v, err)
	}
	if v, err := s.GetVersion(ctx, protocol.PlcLibrary{Name: "ZCore", Version: "1.2.0.0"}, "release/2", "", ""); v != nil || err != nil {
		t.Errorf("GetVersion on foreign branch = %v, %v", v, err)
	}
	if v, err := s.GetVersion(ctx, protocol.PlcLibrary{Name: "ZCore", Version: "1.2.0.0"}, "main", "Release", "TC3.1"); v == nil || err != nil {
		t.Errorf("GetVersion on feed axes = %v, %v", v, err)
	}
}

func TestDownload(t *testing.T) {
	s, hits := newFeed(t)
	ctx := context.Background()
	root := t.TempDir()

	v, err := s.Resolve(ctx, protocol.PlcLibrary{Name: "ZCore", Version: "1.2.0.0"}, "", "", "")
	if err != nil || v == nil {
		t.Fatal(err)
	}
	if err := s.Download(ctx, v, protocol.ChecksumThrow, root); err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "TC3.1", "ZCore_1.2.0.0.library"))
	if err != nil || string(data) != "library bytes" {
		t.Errorf("artifact = %q, %v", data, err)
	}

	// Without a content URL the flat container path is derived.
	v.BinaryDownloadURL = ""
	if err := s.Download(ctx, v, protocol.ChecksumThrow, t.TempDir()); err != nil {
		t.Fatalf("Download via flat container: %v", err)
	}
	if hits["download"] != 2 {
		t.Errorf("downloads = %d", hits["download"])
	}

	missing := &protocol.PackageVersion{Name: "ZCore", Version: "9.0.0.0"}
	if err := s.Download(ctx, missing, protocol.ChecksumThrow, root); !errors.Is(err, errors.ErrCodeArtifactMissing) {
		t.Errorf("missing package: err = %v", err)
	}
}

func TestExtractLibrary(t *testing.T) {
	pkg := nupkg(t, map[string]string{"a.library": "plain", "a.compiled-library": "compiled"})
	tests := []struct {
		compiled bool
		want     string
	}{
		{false, "plain"},
		{true, "compiled"},
	}
	for _, tt := range tests {
		got, err := extractLibrary(pkg, tt.compiled)
		if err != nil || string(got) != tt.want {
			t.Errorf("extractLibrary(compiled=%v) = %q, %v", tt.compiled, got, err)
		}
	}

	if _, err := extractLibrary(nupkg(t, map[string]string{"readme.md": "x"}), false); !errors.Is(err, errors.ErrCodeMalformedResponse) {
		t.Errorf("no library: err = %v", err)
	}
	if _, err := extractLibrary([]byte("not a zip"), false); !errors.Is(err, errors.ErrCodeMalformedResponse) {
		t.Errorf("corrupt archive: err = %v", err)
	}
}

func TestMinVersion(t *testing.T) {
	tests := map[string]string{
		"[1.2.0.0, )":       "1.2.0.0",
		"[1.2.0.0]":         "1.2.0.0",
		"(, 2.0.0.0)":       "",
		"1.0.0.0":           "1.0.0.0",
		"":                  "",
		"[1.0.0.0,2.0.0.0)": "1.0.0.0",
	}
	for in, want := range tests {
		if got := minVersion(in); got != want {
			t.Errorf("minVersion(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAuthors(t *testing.T) {
	var a struct {
		A authors `json:"a"`
		B authors `json:"b"`
	}
	if err := json.NewDecoder(strings.NewReader(`{"a":"Zeugwerk GmbH, Jane","b":["Beckhoff","Max"]}`)).Decode(&a); err != nil {
		t.Fatal(err)
	}
	if a.A.first() != "Zeugwerk GmbH" || string(a.B) != "Beckhoff, Max" {
		t.Errorf("authors = %q, %q", a.A, a.B)
	}
}
