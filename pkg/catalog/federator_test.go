package catalog

import (
	"context"
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/plcpack/pkg/protocol"
	"github.com/matzehuels/plcpack/pkg/protocol/protocoltest"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// threeServers returns S1 (A1..A5), a disconnected S2 (B1..B3) and S3
// whose first two names overlap S1.
func threeServers() []protocol.Server {
	s1 := protocoltest.New("s1")
	s1.Items = protocoltest.Items("A", 5)

	s2 := protocoltest.New("s2")
	s2.Items = protocoltest.Items("B", 3)
	s2.SetConnected(false)

	s3 := protocoltest.New("s3")
	s3.Items = []protocol.CatalogItem{{Name: "a2"}, {Name: "A4"}, {Name: "C1"}, {Name: "C2"}, {Name: "C3"}}

	return []protocol.Server{s1, s2, s3}
}

func names(items []protocol.CatalogItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func TestSearch_DedupAndOrder(t *testing.T) {
	servers := threeServers()
	f := New(servers, quietLogger())

	got, err := f.Search(context.Background(), "", 0, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"A1", "A2", "A3", "A4", "A5", "C1", "C2", "C3"}
	if !slices.Equal(names(got), want) {
		t.Errorf("names = %v, want %v", names(got), want)
	}
	if !f.Exhausted() {
		t.Error("expected federator to be exhausted")
	}
	if calls := servers[1].(*protocoltest.Server).SearchCalls; len(calls) != 0 {
		t.Errorf("disconnected server was searched %d times", len(calls))
	}
	for _, it := range got[5:] {
		if it.Server.Name() != "s3" {
			t.Errorf("%s attributed to %s, want s3", it.Name, it.Server.Name())
		}
	}
}

func TestSearch_StatefulTruncation(t *testing.T) {
	f := New(threeServers(), quietLogger())
	ctx := context.Background()

	first, err := f.Search(ctx, "", 4, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if want := []string{"A1", "A2", "A3", "A4"}; !slices.Equal(names(first), want) {
		t.Errorf("first = %v, want %v", names(first), want)
	}

	second, err := f.Search(ctx, "", 4, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if want := []string{"A5", "C1", "C2", "C3"}; !slices.Equal(names(second), want) {
		t.Errorf("second = %v, want %v", names(second), want)
	}

	third, err := f.Search(ctx, "", 4, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(third) != 0 {
		t.Errorf("third = %v, want empty", names(third))
	}
}

func TestSearch_ResetAndTermChange(t *testing.T) {
	f := New(threeServers(), quietLogger())
	ctx := context.Background()

	if _, err := f.Search(ctx, "", 0, 2); err != nil {
		t.Fatal(err)
	}
	f.Reset()
	again, err := f.Search(ctx, "", 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"A1", "A2", "A3"}; !slices.Equal(names(again), want) {
		t.Errorf("after reset = %v, want %v", names(again), want)
	}

	filtered, err := f.Search(ctx, "c", 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"C1", "C2", "C3"}; !slices.Equal(names(filtered), want) {
		t.Errorf("term c = %v, want %v", names(filtered), want)
	}
}

func TestSearch_FailingServerSkipped(t *testing.T) {
	bad := protocoltest.New("bad")
	bad.Items = protocoltest.Items("X", 3)
	bad.SearchErr = errors.New("boom")
	good := protocoltest.New("good")
	good.Items = protocoltest.Items("G", 3)

	f := New([]protocol.Server{bad, good}, quietLogger())
	got, err := f.Search(context.Background(), "", 0, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if want := []string{"G1", "G2", "G3"}; !slices.Equal(names(got), want) {
		t.Errorf("names = %v, want %v", names(got), want)
	}
}

func TestSearch_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(threeServers(), quietLogger())
	if _, err := f.Search(ctx, "", 0, 2); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}

	srv := protocoltest.New("s")
	srv.SearchErr = context.Canceled
	f = New([]protocol.Server{srv}, quietLogger())
	if _, err := f.Search(context.Background(), "", 0, 2); !errors.Is(err, context.Canceled) {
		t.Errorf("server cancellation: err = %v, want context.Canceled", err)
	}
}
