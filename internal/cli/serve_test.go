package cli

import "testing"

func TestRedact(t *testing.T) {
	tests := map[string]string{
		"sqlite://plcpack-registry.db":            "sqlite://plcpack-registry.db",
		"mongodb://localhost:27017":               "mongodb://localhost:27017",
		"mongodb://admin:s3cret@db:27017/plcpack": "mongodb://admin:***@db:27017/plcpack",
		"plain.db": "plain.db",
	}
	for in, want := range tests {
		if got := redact(in); got != want {
			t.Errorf("redact(%q) = %q, want %q", in, got, want)
		}
	}
}
