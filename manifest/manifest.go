// Package manifest handles sbc.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/sbc/vm"
)

// FileName is the name of the configuration file.
const FileName = "sbc.toml"

// Manifest represents an sbc.toml configuration.
type Manifest struct {
	VM    VMConfig    `toml:"vm"`
	Log   LogConfig   `toml:"log"`
	Store StoreConfig `toml:"store"`

	// Dir is the directory containing the sbc.toml file (set at load time).
	Dir string `toml:"-"`
}

// VMConfig configures the machine.
type VMConfig struct {
	Trace        bool `toml:"trace"`
	Conditionals bool `toml:"conditionals"`
	MaxDepth     int  `toml:"max-depth"`
	StackLimit   int  `toml:"stack-limit"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// StoreConfig configures the program store.
type StoreConfig struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no sbc.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Load parses an sbc.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	return m, nil
}

// Parse decodes sbc.toml content and applies defaults.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	if m.VM.MaxDepth < 0 {
		return nil, fmt.Errorf("vm.max-depth must not be negative, got %d", m.VM.MaxDepth)
	}
	if m.VM.StackLimit < 0 {
		return nil, fmt.Errorf("vm.stack-limit must not be negative, got %d", m.VM.StackLimit)
	}
	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find an sbc.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) applyDefaults() {
	if m.VM.MaxDepth == 0 {
		m.VM.MaxDepth = vm.DefaultMaxDepth
	}
	if m.Store.Path == "" {
		m.Store.Path = filepath.Join(".sbc", "programs.db")
	}
}

// MachineOptions converts the [vm] section to machine options.
func (m *Manifest) MachineOptions() []vm.Option {
	return []vm.Option{
		vm.WithTrace(m.VM.Trace),
		vm.WithConditionals(m.VM.Conditionals),
		vm.WithMaxDepth(m.VM.MaxDepth),
		vm.WithStackLimit(m.VM.StackLimit),
	}
}

// StorePath returns the program store path, resolved against Dir when
// relative.
func (m *Manifest) StorePath() string {
	if filepath.IsAbs(m.Store.Path) || m.Dir == "" {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}

// LogFile returns the log file path, or nil to log to stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.Log.File
	if !filepath.IsAbs(path) && m.Dir != "" {
		path = filepath.Join(m.Dir, path)
	}
	return &path
}
