package github

import (
	"regexp"
	"strings"

	"github.com/matzehuels/plcpack/pkg/artifact"
	"github.com/matzehuels/plcpack/pkg/errors"
)

var (
	// Owners: 1-39 alphanumerics or hyphens, not starting with a hyphen.
	validOwner = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,38}$`)
	// Repositories: 1-100 alphanumerics, hyphens, underscores or dots.
	validRepo = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,100}$`)
)

// ParseRepoRef splits a source address into owner and repository. It
// accepts "owner/repo" as well as repository URLs such as
// https://github.com/owner/repo.git.
func ParseRepoRef(ref string) (owner, repo string, err error) {
	s := strings.TrimSpace(ref)
	for _, p := range []string{"https://", "http://", "github.com/", "www.github.com/"} {
		s = strings.TrimPrefix(s, p)
	}
	s = strings.TrimSuffix(strings.Trim(s, "/"), ".git")

	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return "", "", errors.New(errors.ErrCodeInvalidInput, "invalid repository %q: use owner/repo", ref)
	}
	owner, repo = parts[0], parts[1]
	if !validOwner.MatchString(owner) {
		return "", "", errors.New(errors.ErrCodeInvalidInput, "invalid repository owner %q", owner)
	}
	if !validRepo.MatchString(repo) {
		return "", "", errors.New(errors.ErrCodeInvalidInput, "invalid repository name %q", repo)
	}
	return owner, repo, nil
}

// assetName is the release asset file name of a library version.
func assetName(name, version string, compiled bool) string {
	ext := artifact.ExtLibrary
	if compiled {
		ext = artifact.ExtCompiledLibrary
	}
	return name + "_" + version + ext
}

// parseAssetName is the inverse of assetName. ok is false for assets that
// are not libraries.
func parseAssetName(file string) (name, version string, compiled, ok bool) {
	base, lower := file, strings.ToLower(file)
	switch {
	case strings.HasSuffix(lower, artifact.ExtCompiledLibrary):
		base, compiled = file[:len(file)-len(artifact.ExtCompiledLibrary)], true
	case strings.HasSuffix(lower, artifact.ExtLibrary):
		base = file[:len(file)-len(artifact.ExtLibrary)]
	default:
		return "", "", false, false
	}
	i := strings.LastIndex(base, "_")
	if i <= 0 || i == len(base)-1 {
		return "", "", false, false
	}
	return base[:i], base[i+1:], compiled, true
}
