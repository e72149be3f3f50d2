// sbc CLI - runs, inspects and stores Slang bytecode programs
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"github.com/tliron/kutil/util"

	"github.com/chazu/sbc/builtins"
	"github.com/chazu/sbc/manifest"
	"github.com/chazu/sbc/pkg/image"
	"github.com/chazu/sbc/vm"
)

// Exit statuses.
const (
	exitOK        = 0
	exitUsage     = 1
	exitIO        = 2
	exitOpcode    = 3 // unknown or unimplemented opcode
	exitMalformed = 4 // malformed instruction stream
	exitFault     = 5 // any other VM fault
)

var log = commonlog.GetLogger("sbc.cli")

// main exits through util.Exit so the log backend's buffered writer is
// flushed.
func main() {
	util.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// env carries what every command needs.
type env struct {
	stdout   io.Writer
	stderr   io.Writer
	manifest *manifest.Manifest
}

type command struct {
	name  string
	usage string
	run   func(e *env, args []string) int
}

var commands = []command{
	{"run", "run [-trace] [-conditionals] [-result] <file>", cmdRun},
	{"dis", "dis <file>", cmdDis},
	{"pack", "pack [-o out] [-name name] <file>", cmdPack},
	{"put", "put [-db path] <name> <file>", cmdPut},
	{"exec", "exec [-db path] [-trace] [-conditionals] [-result] <name>", cmdExec},
	{"list", "list [-db path]", cmdList},
	{"history", "history [-db path] [-n limit] <name>", cmdHistory},
	{"builtins", "builtins", cmdBuiltins},
}

func run(args []string, stdout, stderr io.Writer) int {
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if m == nil {
		m = manifest.Default()
	}
	e := &env{stdout: stdout, stderr: stderr, manifest: m}

	if len(args) == 0 || args[0] == "-h" || args[0] == "-help" || args[0] == "help" {
		usage(stderr)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}

	for _, c := range commands {
		if c.name == args[0] {
			return c.run(e, args[1:])
		}
	}
	// A bare file argument means "run".
	return cmdRun(e, args)
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: sbc <command> [options]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  sbc %s\n", c.usage)
	}
	fmt.Fprintf(w, "\nA bare <file> argument is the same as 'sbc run <file>'.\n")
	fmt.Fprintf(w, "\nExit status: 0 ok, 1 usage, 2 I/O, 3 unknown or unimplemented opcode,\n")
	fmt.Fprintf(w, "4 malformed stream, 5 other VM fault.\n")
}

// vmFlags registers the flags shared by commands that execute code.
type vmFlags struct {
	trace        *bool
	conditionals *bool
	verbosity    *int
}

func addVMFlags(fs *flag.FlagSet, m *manifest.Manifest) vmFlags {
	return vmFlags{
		trace:        fs.Bool("trace", m.VM.Trace, "Log every executed instruction"),
		conditionals: fs.Bool("conditionals", m.VM.Conditionals, "Give IF/ELSE branching semantics"),
		verbosity:    fs.Int("v", m.Log.Verbosity, "Log verbosity"),
	}
}

// machine configures logging and builds a machine from the manifest and
// flag overrides.
func (e *env) machine(f vmFlags) *vm.Machine {
	verbosity := *f.verbosity
	if *f.trace && verbosity < 5 {
		verbosity = 5
	}
	commonlog.Configure(verbosity, e.manifest.LogFile())

	opts := e.manifest.MachineOptions()
	opts = append(opts, vm.WithTrace(*f.trace), vm.WithConditionals(*f.conditionals))
	return vm.New(builtins.Standard(e.stdout), opts...)
}

func newFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func cmdRun(e *env, args []string) int {
	fs := newFlagSet(e, "run")
	vf := addVMFlags(fs, e.manifest)
	printResult := fs.Bool("result", false, "Print the value the program yields")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(e.stderr, "Usage: sbc run [-trace] [-conditionals] [-result] <file>\n")
		return exitUsage
	}

	img, code := loadFile(e, fs.Arg(0))
	if img == nil {
		return code
	}

	res, err := e.machine(vf).Run(img.Code)
	if err != nil {
		return reportFault(e, err)
	}
	if *printResult {
		fmt.Fprintf(e.stdout, "%s\n", builtins.Format(res.Value))
	}
	return exitOK
}

func cmdDis(e *env, args []string) int {
	fs := newFlagSet(e, "dis")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(e.stderr, "Usage: sbc dis <file>\n")
		return exitUsage
	}
	img, code := loadFile(e, fs.Arg(0))
	if img == nil {
		return code
	}
	fmt.Fprint(e.stdout, bytecodeListing(img))
	return exitOK
}

func cmdPack(e *env, args []string) int {
	fs := newFlagSet(e, "pack")
	out := fs.String("o", "", "Output path (default: input with .sbci extension)")
	name := fs.String("name", "", "Program name (default: input base name)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(e.stderr, "Usage: sbc pack [-o out] [-name name] <file>\n")
		return exitUsage
	}
	path := fs.Arg(0)
	if *name == "" {
		*name = programName(path)
	}
	if *out == "" {
		*out = strings.TrimSuffix(path, filepath.Ext(path)) + ".sbci"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitIO
	}
	img, err := image.Pack(*name, data)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitMalformed
	}
	encoded, err := image.Marshal(img)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitIO
	}
	if err := os.WriteFile(*out, encoded, 0o644); err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitIO
	}
	log.Infof("packed %s (%d bytes of code) into %s", img.Name, len(img.Code), *out)
	return exitOK
}

func cmdBuiltins(e *env, args []string) int {
	for _, name := range builtins.Standard(io.Discard).Names() {
		fmt.Fprintln(e.stdout, name)
	}
	return exitOK
}

// loadFile reads a raw stream or packaged image. On failure it reports the
// error and returns a nil image with the exit status.
func loadFile(e *env, path string) (*image.Image, int) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return nil, exitIO
	}
	img, err := image.Load(programName(path), data)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return nil, exitMalformed
	}
	return img, exitOK
}

func programName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// reportFault prints a VM error and maps it to an exit status.
func reportFault(e *env, err error) int {
	fmt.Fprintf(e.stderr, "Error: %v\n", err)
	return exitStatus(err)
}

func exitStatus(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, vm.ErrUnknownOpcode), errors.Is(err, vm.ErrUnimplementedOpcode):
		return exitOpcode
	case errors.Is(err, vm.ErrMalformedStream):
		return exitMalformed
	default:
		return exitFault
	}
}
