package config

// Default framework settings.
const (
	DefaultFrameworkVendor     = "Zeugwerk GmbH"
	DefaultFrameworkKey        = "zeugwerk"
	DefaultFrameworkRepository = "stable"
)

// FrameworkSettings describe the vendor whose libraries are tracked as one
// framework group instead of individual packages.
type FrameworkSettings struct {
	Vendor             string   `toml:"vendor"`
	Key                string   `toml:"key"`
	Repositories       []string `toml:"repositories"`
	UnitTestFrameworks []string `toml:"unit-test-frameworks"`
}

// WithDefaults returns a copy with zero values replaced by defaults.
func (s FrameworkSettings) WithDefaults() FrameworkSettings {
	out := s
	if out.Vendor == "" {
		out.Vendor = DefaultFrameworkVendor
	}
	if out.Key == "" {
		out.Key = DefaultFrameworkKey
	}
	if len(out.Repositories) == 0 {
		out.Repositories = []string{DefaultFrameworkRepository}
	}
	if len(out.UnitTestFrameworks) == 0 {
		out.UnitTestFrameworks = []string{"TcUnit"}
	}
	return out
}
