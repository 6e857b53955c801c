package protocol

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a parsed library version. Library versions have up to four
// numeric components (1.2.3.4); the first three are compared as semantic
// versions and the fourth as a revision number.
type Version struct {
	sem      *semver.Version
	revision int
	raw      string
}

// ParseVersion parses a library version such as "3.3.21.0" or "1.2.0".
func ParseVersion(s string) (*Version, error) {
	raw := strings.TrimSpace(s)
	base, pre, hasPre := strings.Cut(raw, "-")
	parts := strings.Split(base, ".")

	revision := 0
	if len(parts) == 4 {
		r, err := strconv.Atoi(parts[3])
		if err != nil {
			return nil, err
		}
		revision = r
		parts = parts[:3]
	}
	semText := strings.Join(parts, ".")
	if hasPre {
		semText += "-" + pre
	}
	sem, err := semver.NewVersion(semText)
	if err != nil {
		return nil, err
	}
	return &Version{sem: sem, revision: revision, raw: raw}, nil
}

// Compare returns -1, 0 or 1 when v is lower, equal or higher than o.
func (v *Version) Compare(o *Version) int {
	if c := v.sem.Compare(o.sem); c != 0 {
		return c
	}
	switch {
	case v.revision < o.revision:
		return -1
	case v.revision > o.revision:
		return 1
	}
	return 0
}

// String returns the version as it was written.
func (v *Version) String() string { return v.raw }

// CompareVersions compares two version strings. Unparseable versions sort
// before parseable ones and compare lexically among themselves.
func CompareVersions(a, b string) int {
	va, errA := ParseVersion(a)
	vb, errB := ParseVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	}
	return 1
}

// Latest returns the highest of versions, or "" for an empty list.
func Latest(versions []string) string {
	best := ""
	for _, v := range versions {
		if best == "" || CompareVersions(v, best) > 0 {
			best = v
		}
	}
	return best
}

// Constraint reports whether version satisfies a semantic version
// constraint such as ">= 1.2, < 2". The revision component is ignored.
func Constraint(constraint, version string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, err
	}
	v, err := ParseVersion(version)
	if err != nil {
		return false, err
	}
	return c.Check(v.sem), nil
}
