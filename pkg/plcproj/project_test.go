package plcproj

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/libmeta"
)

const sampleProject = `<?xml version="1.0" encoding="utf-8"?>
<Project DefaultTargets="Build" xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <PropertyGroup>
    <FileVersion>1.0.0.0</FileVersion>
    <Name>Machine</Name>
    <ProjectVersion>2.1.0.0</ProjectVersion>
    <Company>Acme</Company>
    <Title>Machine Control</Title>
  </PropertyGroup>
  <ItemGroup>
    <Compile Include="PlcTask.TcTTO">
      <SubType>Code</SubType>
    </Compile>
    <Compile Include="POUs\MAIN.TcPOU" />
  </ItemGroup>
  <ItemGroup>
    <PlaceholderReference Include="Tc2_Standard">
      <DefaultResolution>Tc2_Standard, * (Beckhoff Automation GmbH)</DefaultResolution>
      <Namespace>Tc2_Standard</Namespace>
    </PlaceholderReference>
    <PlaceholderReference Include="ZCore">
      <DefaultResolution>ZCore, 1.2.3.4 (Zeugwerk GmbH)</DefaultResolution>
      <Namespace>Core</Namespace>
      <QualifiedOnly>True</QualifiedOnly>
      <Optional>false</Optional>
    </PlaceholderReference>
    <PlaceholderReference Include="System_VisuElems" />
    <LibraryReference Include="TcUnit,1.2.0.0,www.tcunit.org">
      <Namespace>TcUnit</Namespace>
      <HideWhenReferencedAsDependency>true</HideWhenReferencedAsDependency>
    </LibraryReference>
  </ItemGroup>
</Project>`

func TestParse(t *testing.T) {
	p, err := Parse(strings.NewReader(sampleProject))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Name != "Machine" || p.Title != "Machine Control" || p.Company != "Acme" || p.Version != "2.1.0.0" {
		t.Errorf("identity = %+v", p)
	}
	if !p.HasTask() || len(p.Tasks) != 1 {
		t.Errorf("tasks = %v, want one", p.Tasks)
	}
	if len(p.References) != 3 {
		t.Fatalf("got %d references, want 3", len(p.References))
	}

	std := p.References[0]
	if !std.Placeholder || std.Version != "" || std.DistributorName != "Beckhoff Automation GmbH" {
		t.Errorf("Tc2_Standard = %+v", std)
	}

	core, ok := p.Reference("zcore")
	if !ok {
		t.Fatal("ZCore not found")
	}
	if core.Namespace != "Core" || !core.Options.QualifiedOnly || core.Options.Optional {
		t.Errorf("ZCore = %+v options %+v", core, core.Options)
	}

	unit := p.References[2]
	if unit.Placeholder || !unit.Options.LibraryReference || !unit.Options.HideWhenReferencedAsDependency {
		t.Errorf("TcUnit = %+v options %+v", unit, unit.Options)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code errors.Code
	}{
		{"not xml", "this is not xml", errors.ErrCodeInvalidManifest},
		{"bad placeholder", `<Project><ItemGroup><PlaceholderReference Include="X"><DefaultResolution>X 1.0</DefaultResolution></PlaceholderReference></ItemGroup></Project>`, errors.ErrCodeInvalidReference},
		{"bad library", `<Project><ItemGroup><LibraryReference Include="X;1.0;Acme" /></ItemGroup></Project>`, errors.ErrCodeInvalidReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()

	proj := filepath.Join(dir, "Untitled.plcproj")
	doc := `<Project><PropertyGroup><Company>Acme</Company></PropertyGroup></Project>`
	if err := os.WriteFile(proj, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := ParseFile(proj)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if p.Name != "Untitled" || p.Path != proj {
		t.Errorf("got name %q path %q", p.Name, p.Path)
	}

	data, err := libmeta.Encode("Title", "ZCore", "Company", "Zeugwerk GmbH", "Version", "1.2.3.4")
	if err != nil {
		t.Fatal(err)
	}
	lib := filepath.Join(dir, "ZCore_1.2.3.4.library")
	if err := os.WriteFile(lib, data, 0o644); err != nil {
		t.Fatal(err)
	}
	p, err = ParseFile(lib)
	if err != nil {
		t.Fatalf("ParseFile(library): %v", err)
	}
	if p.Name != "ZCore" || p.Company != "Zeugwerk GmbH" || p.Version != "1.2.3.4" || len(p.References) != 0 {
		t.Errorf("library project = %+v", p)
	}

	if _, err := ParseFile(filepath.Join(dir, "missing.plcproj")); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing file: err = %v", err)
	}
}
