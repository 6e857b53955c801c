package buildinfo

import (
	"strings"
	"testing"
)

func TestUserAgent(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })

	Version = "v1.2.3"
	if got := UserAgent(); !strings.HasPrefix(got, "plcpack/v1.2.3 ") {
		t.Errorf("UserAgent() = %q", got)
	}
	if got := Template(); !strings.Contains(got, "v1.2.3") {
		t.Errorf("Template() = %q, want version", got)
	}
}
