package plcproj

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf16"
)

func utf16LE(s string) []byte {
	out := []byte{0xFF, 0xFE}
	for _, u := range utf16.Encode([]rune(s)) {
		out = append(out, byte(u), byte(u>>8))
	}
	return out
}

func TestParseUTF16Project(t *testing.T) {
	doc := strings.Replace(sampleProject, `encoding="utf-8"`, `encoding="utf-16"`, 1)
	p, err := Parse(strings.NewReader(string(utf16LE(doc))))
	if err != nil {
		t.Fatalf("Parse UTF-16: %v", err)
	}
	if p.Name != "Machine" || len(p.References) != 3 {
		t.Errorf("parsed %+v", p)
	}
}

func TestParseUTF8BOMProject(t *testing.T) {
	p, err := Parse(strings.NewReader("\xEF\xBB\xBF" + sampleProject))
	if err != nil {
		t.Fatalf("Parse with BOM: %v", err)
	}
	if p.Company != "Acme" {
		t.Errorf("company = %q", p.Company)
	}
}

func TestParseLatin1Project(t *testing.T) {
	doc := `<?xml version="1.0" encoding="windows-1252"?>
<Project><PropertyGroup><Name>Anlage</Name><Company>M` + "\xFC" + `ller AG</Company></PropertyGroup></Project>`
	p, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse windows-1252: %v", err)
	}
	if p.Company != "Müller AG" {
		t.Errorf("company = %q, want Müller AG", p.Company)
	}
}

func TestParseSolutionUTF16(t *testing.T) {
	dir := t.TempDir()
	sln := "Microsoft Visual Studio Solution File, Format Version 12.00\r\n" +
		`Project("{B1E792BE-AA5F-4E3C-8C82-674BF9C0715B}") = "Machine", "Machine\Machine.tsproj", "{11111111-2222-3333-4444-555555555555}"` + "\r\nEndProject\r\n"
	path := filepath.Join(dir, "Machine.sln")
	if err := os.WriteFile(path, utf16LE(sln), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := ParseSolution(path)
	if err != nil {
		t.Fatalf("ParseSolution: %v", err)
	}
	if len(s.Projects) != 1 || s.Projects[0].Name != "Machine" {
		t.Errorf("projects = %+v", s.Projects)
	}
}
