package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopPackageHooks{}
	p.OnResolve(ctx, "public", "Tc3_Module", "3.3.1.0")
	p.OnResolveMiss(ctx, "Tc2_Standard", false)
	p.OnDownloadStart(ctx, "Tc3_Module", "3.3.1.0")
	p.OnDownloadSkipped(ctx, "Tc3_Module", "3.3.1.0")
	p.OnDownloadComplete(ctx, "Tc3_Module", "3.3.1.0", time.Second, nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "search")
	c.OnCacheMiss(ctx, "resolve")
	c.OnCacheSet(ctx, "artifact", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "packages.example.com", "/api/v1/catalog")
	h.OnResponse(ctx, "GET", "packages.example.com", "/api/v1/catalog", 200, time.Second)
	h.OnError(ctx, "GET", "packages.example.com", "/api/v1/catalog", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Packages().(NoopPackageHooks); !ok {
		t.Error("Packages() should return NoopPackageHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customPackages := &testPackageHooks{}
	SetPackageHooks(customPackages)
	if Packages() != customPackages {
		t.Error("SetPackageHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Packages().(NoopPackageHooks); !ok {
		t.Error("Reset() should restore NoopPackageHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testPackageHooks{}
	SetPackageHooks(custom)
	SetPackageHooks(nil)

	if Packages() != custom {
		t.Error("SetPackageHooks(nil) should be ignored")
	}

	Reset()
}

type testPackageHooks struct{ NoopPackageHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
