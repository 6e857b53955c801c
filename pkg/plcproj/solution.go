package plcproj

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/matzehuels/plcpack/pkg/errors"
)

// TwinCAT project extensions that can appear in a solution.
var twinCATExts = []string{".tsproj", ".tspproj"}

// projectLine matches `Project("{type}") = "Name", "rel\path", "{guid}"`.
var projectLine = regexp.MustCompile(`^Project\("\{([^}]+)\}"\)\s*=\s*"([^"]*)",\s*"([^"]*)",\s*"\{([^}]+)\}"`)

// SolutionProject is one project entry of a solution file.
type SolutionProject struct {
	Name     string
	Path     string // absolute, with OS separators
	TypeGUID string
	GUID     string
}

// TwinCAT reports whether the entry is a TwinCAT (XAE) project.
func (p SolutionProject) TwinCAT() bool {
	return slices.Contains(twinCATExts, strings.ToLower(filepath.Ext(p.Path)))
}

// Solution is a parsed Visual Studio solution.
type Solution struct {
	Path     string
	Projects []SolutionProject
}

// ParseSolution reads the project entries of a .sln file.
func ParseSolution(path string) (*Solution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "open solution")
	}
	defer f.Close()

	dir := filepath.Dir(path)
	sln := &Solution{Path: path}
	sc := bufio.NewScanner(textReader(f))
	for sc.Scan() {
		m := projectLine.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		sln.Projects = append(sln.Projects, SolutionProject{
			TypeGUID: m[1],
			Name:     m[2],
			Path:     filepath.Join(dir, filepath.FromSlash(winPath(m[3]))),
			GUID:     m[4],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "read solution %s", path)
	}
	return sln, nil
}

// PlcProjects returns the .plcproj files below every TwinCAT project of the
// solution, sorted by path.
func (s *Solution) PlcProjects() ([]string, error) {
	var out []string
	for _, p := range s.Projects {
		if !p.TwinCAT() {
			continue
		}
		err := filepath.WalkDir(filepath.Dir(p.Path), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ExtProject) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "scan %s", p.Name)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// FindSolution returns the first .sln file in dir.
func FindSolution(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.sln"))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "search solution")
	}
	if len(matches) == 0 {
		return "", errors.New(errors.ErrCodeNotFound, "no .sln file in %s", dir)
	}
	slices.Sort(matches)
	return matches[0], nil
}
