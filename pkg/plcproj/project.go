package plcproj

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/libmeta"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

// Extensions recognized by ParseFile and the solution scanner.
const (
	ExtProject = ".plcproj"
	ExtLibrary = ".library"
	ExtTask    = ".tctto"
)

// Reference is one library reference declared by a project.
type Reference struct {
	protocol.PlcLibrary
	Namespace string
	// Placeholder is true for placeholder references and false for fixed
	// library references.
	Placeholder bool
}

// Project is the information plcpack reads from a PLC project.
type Project struct {
	Path        string
	Name        string
	Title       string
	Company     string
	Version     string
	Author      string
	Description string
	// Tasks lists the compiled task objects (.TcTTO) the project contains.
	Tasks      []string
	References []Reference
}

// HasTask reports whether the project builds a runnable application.
func (p *Project) HasTask() bool { return len(p.Tasks) > 0 }

// Reference returns the reference named name, ignoring case.
func (p *Project) Reference(name string) (Reference, bool) {
	for _, r := range p.References {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Reference{}, false
}

type xmlProject struct {
	PropertyGroups []xmlPropertyGroup `xml:"PropertyGroup"`
	ItemGroups     []xmlItemGroup     `xml:"ItemGroup"`
}

type xmlPropertyGroup struct {
	Name           string `xml:"Name"`
	Title          string `xml:"Title"`
	Company        string `xml:"Company"`
	ProjectVersion string `xml:"ProjectVersion"`
	Author         string `xml:"Author"`
	Description    string `xml:"Description"`
}

type xmlItemGroup struct {
	Compile      []xmlInclude   `xml:"Compile"`
	Placeholders []xmlReference `xml:"PlaceholderReference"`
	Libraries    []xmlReference `xml:"LibraryReference"`
}

type xmlInclude struct {
	Include string `xml:"Include,attr"`
}

type xmlReference struct {
	Include                        string `xml:"Include,attr"`
	DefaultResolution              string `xml:"DefaultResolution"`
	Namespace                      string `xml:"Namespace"`
	Optional                       string `xml:"Optional"`
	HideWhenReferencedAsDependency string `xml:"HideWhenReferencedAsDependency"`
	PublishSymbolsInContainer      string `xml:"PublishSymbolsInContainer"`
	QualifiedOnly                  string `xml:"QualifiedOnly"`
}

func (r xmlReference) options(library bool) *protocol.ReferenceOptions {
	return &protocol.ReferenceOptions{
		Optional:                       isTrue(r.Optional),
		HideWhenReferencedAsDependency: isTrue(r.HideWhenReferencedAsDependency),
		PublishSymbolsInContainer:      isTrue(r.PublishSymbolsInContainer),
		QualifiedOnly:                  isTrue(r.QualifiedOnly),
		LibraryReference:               library,
	}
}

// Parse reads a .plcproj document. Malformed references fail the whole
// parse with an INVALID_REFERENCE error naming the reference.
func Parse(r io.Reader) (*Project, error) {
	var doc xmlProject
	if err := newXMLDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "invalid PLC project")
	}

	p := &Project{}
	for _, pg := range doc.PropertyGroups {
		setOnce(&p.Name, pg.Name)
		setOnce(&p.Title, pg.Title)
		setOnce(&p.Company, pg.Company)
		setOnce(&p.Version, pg.ProjectVersion)
		setOnce(&p.Author, pg.Author)
		setOnce(&p.Description, pg.Description)
	}

	for _, ig := range doc.ItemGroups {
		for _, c := range ig.Compile {
			if strings.EqualFold(filepath.Ext(winPath(c.Include)), ExtTask) {
				p.Tasks = append(p.Tasks, c.Include)
			}
		}
		for _, ref := range ig.Placeholders {
			res := ref.DefaultResolution
			if res == "" {
				// A placeholder without a default resolution is resolved by
				// the IDE from its own library repository.
				continue
			}
			lib, err := ParsePlaceholder(res)
			if err != nil {
				return nil, err
			}
			lib.Options = ref.options(false)
			p.References = append(p.References, Reference{PlcLibrary: lib, Namespace: namespace(ref, lib), Placeholder: true})
		}
		for _, ref := range ig.Libraries {
			lib, err := ParseLibraryReference(ref.Include)
			if err != nil {
				return nil, err
			}
			lib.Options = ref.options(true)
			p.References = append(p.References, Reference{PlcLibrary: lib, Namespace: namespace(ref, lib)})
		}
	}
	return p, nil
}

// ParseFile reads a PLC from path. A .library path is described from its
// embedded metadata; anything else is parsed as a .plcproj.
func ParseFile(path string) (*Project, error) {
	if strings.EqualFold(filepath.Ext(path), ExtLibrary) {
		return FromLibrary(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "open PLC project")
	}
	defer f.Close()

	p, err := Parse(f)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "%s", path)
	}
	p.Path = path
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// FromLibrary describes a compiled library. It has no references.
func FromLibrary(path string) (*Project, error) {
	props, err := libmeta.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info := props.Info()
	return &Project{
		Path:        path,
		Name:        info.Name,
		Title:       info.Title,
		Company:     info.Company,
		Version:     info.Version,
		Author:      info.Author,
		Description: info.Description,
	}, nil
}

func namespace(ref xmlReference, lib protocol.PlcLibrary) string {
	if ref.Namespace != "" {
		return ref.Namespace
	}
	return lib.Name
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = strings.TrimSpace(v)
	}
}

func isTrue(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

// winPath converts the backslash separators MSBuild files use.
func winPath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
