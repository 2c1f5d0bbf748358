package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[program]
path = "fib.bin"
trace = true

[resources]
max-vars = 4096

[history]
path = "history.db"

[snapshot]
path = "crash.snapshot"
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Program.Path != "fib.bin" {
		t.Errorf("program path = %q, want fib.bin", m.Program.Path)
	}
	if !m.Program.Trace {
		t.Error("program trace = false, want true")
	}
	if m.Resources.MaxVars != 4096 {
		t.Errorf("max-vars = %d, want 4096", m.Resources.MaxVars)
	}
	if want := filepath.Join(dir, "fib.bin"); m.ProgramPath() != want {
		t.Errorf("ProgramPath() = %q, want %q", m.ProgramPath(), want)
	}
	if want := filepath.Join(dir, "history.db"); m.HistoryPath() != want {
		t.Errorf("HistoryPath() = %q, want %q", m.HistoryPath(), want)
	}
	if want := filepath.Join(dir, "crash.snapshot"); m.SnapshotPath() != want {
		t.Errorf("SnapshotPath() = %q, want %q", m.SnapshotPath(), want)
	}
}

func TestLoadManifestMinimal(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[program]
path = "prog.bin"
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.HistoryPath() != "" {
		t.Errorf("HistoryPath() = %q, want empty when unconfigured", m.HistoryPath())
	}
	if m.SnapshotPath() != "" {
		t.Errorf("SnapshotPath() = %q, want empty when unconfigured", m.SnapshotPath())
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	tomlContent := `[program]
path = "found.bin"
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Program.Path != "found.bin" {
		t.Errorf("program path = %q, want found.bin", m.Program.Path)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no vmconfig.toml exists")
	}
}

func TestLoadFileExactPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom-name.toml")
	if err := os.WriteFile(path, []byte(`[program]
path = "x.bin"
`), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if m.Program.Path != "x.bin" {
		t.Errorf("program path = %q, want x.bin", m.Program.Path)
	}
}

func TestProgramPathAbsolute(t *testing.T) {
	m := &Manifest{Dir: "/work", Program: Program{Path: "/abs/prog.bin"}}
	if got := m.ProgramPath(); got != "/abs/prog.bin" {
		t.Errorf("ProgramPath() = %q, want /abs/prog.bin", got)
	}
}
