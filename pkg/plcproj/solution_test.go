package plcproj

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleSolution = `
Microsoft Visual Studio Solution File, Format Version 12.00
# Visual Studio Version 17
Project("{B1E792BE-AA5F-4E3C-8C82-674BF9C0715B}") = "Machine", "Machine\Machine.tsproj", "{0D3D6C7E-8D64-4B3F-9C8D-111111111111}"
EndProject
Project("{2150E333-8FDC-42A3-9474-1A3956D46DE8}") = "Docs", "Docs", "{22222222-2222-2222-2222-222222222222}"
EndProject
Global
EndGlobal
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSolution(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Machine.sln"), sampleSolution)
	writeFile(t, filepath.Join(dir, "Machine", "Machine.tsproj"), "<TcSmProject/>")
	writeFile(t, filepath.Join(dir, "Machine", "Plc", "Plc.plcproj"), "<Project/>")
	writeFile(t, filepath.Join(dir, "Machine", "Lib", "Lib.plcproj"), "<Project/>")
	writeFile(t, filepath.Join(dir, "Docs", "Other.plcproj"), "<Project/>")

	path, err := FindSolution(dir)
	if err != nil {
		t.Fatalf("FindSolution: %v", err)
	}
	sln, err := ParseSolution(path)
	if err != nil {
		t.Fatalf("ParseSolution: %v", err)
	}
	if len(sln.Projects) != 2 {
		t.Fatalf("got %d projects, want 2", len(sln.Projects))
	}
	if !sln.Projects[0].TwinCAT() || sln.Projects[1].TwinCAT() {
		t.Errorf("TwinCAT detection wrong: %+v", sln.Projects)
	}

	plcs, err := sln.PlcProjects()
	if err != nil {
		t.Fatalf("PlcProjects: %v", err)
	}
	want := []string{
		filepath.Join(dir, "Machine", "Lib", "Lib.plcproj"),
		filepath.Join(dir, "Machine", "Plc", "Plc.plcproj"),
	}
	if len(plcs) != len(want) || plcs[0] != want[0] || plcs[1] != want[1] {
		t.Errorf("PlcProjects = %v, want %v", plcs, want)
	}
}

func TestFindSolution_None(t *testing.T) {
	if _, err := FindSolution(t.TempDir()); err == nil {
		t.Error("expected error for directory without solution")
	}
}
