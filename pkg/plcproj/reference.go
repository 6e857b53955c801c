package plcproj

import (
	"strings"

	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

// Wildcard is the placeholder version meaning "latest".
const Wildcard = "*"

// ParsePlaceholder parses a placeholder default resolution of the form
// "Name, Version (Distributor)". A "*" version yields an empty Version.
// The distributor may itself contain parentheses.
func ParsePlaceholder(s string) (protocol.PlcLibrary, error) {
	raw := strings.TrimSpace(s)
	if !strings.HasSuffix(raw, ")") {
		return protocol.PlcLibrary{}, malformed(s, "missing distributor")
	}

	open := matchingParen(raw)
	if open < 0 {
		return protocol.PlcLibrary{}, malformed(s, "unbalanced parentheses")
	}
	dist := strings.TrimSpace(raw[open+1 : len(raw)-1])
	head := strings.TrimSpace(raw[:open])

	name, ver, ok := strings.Cut(head, ",")
	if !ok {
		return protocol.PlcLibrary{}, malformed(s, "missing version")
	}
	lib := protocol.PlcLibrary{
		Name:            strings.TrimSpace(name),
		Version:         normalizeVersion(ver),
		DistributorName: dist,
	}
	return lib, check(s, lib, strings.TrimSpace(ver))
}

// ParseLibraryReference parses a fixed reference "Name,Version,Distributor".
// Anything after the second comma belongs to the distributor.
func ParseLibraryReference(s string) (protocol.PlcLibrary, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ",", 3)
	if len(parts) != 3 {
		return protocol.PlcLibrary{}, malformed(s, "want name,version,distributor")
	}
	lib := protocol.PlcLibrary{
		Name:            strings.TrimSpace(parts[0]),
		Version:         normalizeVersion(parts[1]),
		DistributorName: strings.TrimSpace(parts[2]),
		Options:         &protocol.ReferenceOptions{LibraryReference: true},
	}
	return lib, check(s, lib, strings.TrimSpace(parts[1]))
}

// FormatPlaceholder is the inverse of ParsePlaceholder.
func FormatPlaceholder(lib protocol.PlcLibrary) string {
	return lib.String()
}

// FormatLibraryReference is the inverse of ParseLibraryReference.
func FormatLibraryReference(lib protocol.PlcLibrary) string {
	v := lib.Version
	if v == "" {
		v = Wildcard
	}
	return lib.Name + "," + v + "," + lib.DistributorName
}

func check(s string, lib protocol.PlcLibrary, rawVersion string) error {
	switch {
	case lib.Name == "":
		return malformed(s, "empty name")
	case rawVersion == "":
		return malformed(s, "empty version")
	case lib.DistributorName == "":
		return malformed(s, "empty distributor")
	case strings.ContainsAny(lib.Name, "(),"):
		return malformed(s, "invalid character in name")
	}
	if err := errors.ValidateVersion(lib.Version); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidReference, err, "malformed reference %q", s)
	}
	return nil
}

func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == Wildcard {
		return ""
	}
	return v
}

// matchingParen returns the index of the "(" that closes the trailing ")".
func matchingParen(s string) int {
	depth := 0
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func malformed(s, reason string) error {
	return errors.New(errors.ErrCodeInvalidReference, "malformed reference %q: %s", s, reason)
}
