package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/sbc/vm"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[vm]
trace = true
conditionals = true
max-depth = 32
stack-limit = 1024

[log]
verbosity = 2
file = "sbc.log"

[store]
path = "data/progs.db"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !m.VM.Trace {
		t.Error("vm.trace = false, want true")
	}
	if !m.VM.Conditionals {
		t.Error("vm.conditionals = false, want true")
	}
	if m.VM.MaxDepth != 32 {
		t.Errorf("vm.max-depth = %d, want 32", m.VM.MaxDepth)
	}
	if m.VM.StackLimit != 1024 {
		t.Errorf("vm.stack-limit = %d, want 1024", m.VM.StackLimit)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log.verbosity = %d, want 2", m.Log.Verbosity)
	}
	if m.StorePath() != filepath.Join(m.Dir, "data", "progs.db") {
		t.Errorf("StorePath() = %q", m.StorePath())
	}
	if lf := m.LogFile(); lf == nil || *lf != filepath.Join(m.Dir, "sbc.log") {
		t.Errorf("LogFile() = %v", lf)
	}
}

func TestDefaults(t *testing.T) {
	m, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if m.VM.MaxDepth != vm.DefaultMaxDepth {
		t.Errorf("default max-depth = %d, want %d", m.VM.MaxDepth, vm.DefaultMaxDepth)
	}
	if m.Store.Path != filepath.Join(".sbc", "programs.db") {
		t.Errorf("default store path = %q", m.Store.Path)
	}
	if m.LogFile() != nil {
		t.Error("LogFile() should be nil without [log] file")
	}
	if d := Default(); d.VM != m.VM || d.Store != m.Store {
		t.Errorf("Default() = %+v, want %+v", d, m)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("[vm]\ntracing = true\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestParseRejectsNegativeLimits(t *testing.T) {
	for _, src := range []string{
		"[vm]\nmax-depth = -1\n",
		"[vm]\nstack-limit = -5\n",
	} {
		if _, err := Parse([]byte(src)); err == nil {
			t.Errorf("Parse(%q) should fail", src)
		}
	}
}

func TestParseSyntaxError(t *testing.T) {
	if _, err := Parse([]byte("[vm\n")); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[vm]\nmax-depth = 8\n"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("expected manifest from parent directory")
	}
	if m.VM.MaxDepth != 8 {
		t.Errorf("max-depth = %d, want 8", m.VM.MaxDepth)
	}
	want, _ := filepath.Abs(dir)
	if m.Dir != want {
		t.Errorf("Dir = %q, want %q", m.Dir, want)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no sbc.toml exists")
	}
}

func TestMachineOptions(t *testing.T) {
	m, err := Parse([]byte("[vm]\nmax-depth = 1\n"))
	if err != nil {
		t.Fatal(err)
	}
	machine := vm.New(nil, m.MachineOptions()...)

	// CODE NOP END EXEC nests once, which max-depth 1 allows; two levels
	// do not.
	once := []byte{0x05, 0x00, 0x01, 0x42}
	if _, err := machine.Run(once); err != nil {
		t.Fatalf("single nesting failed: %v", err)
	}
	twice := []byte{0x05, 0x05, 0x00, 0x01, 0x42, 0x01, 0x42}
	if _, err := machine.Run(twice); err == nil {
		t.Fatal("expected recursion depth fault")
	}
}
