package vm

import (
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// DefaultMaxDepth bounds EXEC nesting unless overridden with WithMaxDepth.
const DefaultMaxDepth = 256

// Machine executes instruction streams against a builtin registry. A
// Machine holds only configuration; every Run gets its own stacks and
// scopes, so one Machine may run several streams concurrently.
type Machine struct {
	id           string
	registry     *Registry
	trace        bool
	conditionals bool
	maxDepth     int
	stackLimit   int
	log          commonlog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithTrace enables per-instruction trace lines, logged at debug level.
func WithTrace(on bool) Option {
	return func(m *Machine) { m.trace = on }
}

// WithConditionals gives IF and ELSE runtime branching semantics. Without
// it they are reserved block markers and fault when executed.
func WithConditionals(on bool) Option {
	return func(m *Machine) { m.conditionals = on }
}

// WithMaxDepth bounds EXEC nesting. Values below 1 restore the default.
func WithMaxDepth(n int) Option {
	return func(m *Machine) {
		if n < 1 {
			n = DefaultMaxDepth
		}
		m.maxDepth = n
	}
}

// WithStackLimit bounds each invocation's operand stack; 0 is unlimited.
func WithStackLimit(n int) Option {
	return func(m *Machine) {
		if n < 0 {
			n = 0
		}
		m.stackLimit = n
	}
}

// WithLogger replaces the machine's logger.
func WithLogger(log commonlog.Logger) Option {
	return func(m *Machine) { m.log = log }
}

// New creates a Machine resolving builtins through registry, which may be
// nil for a machine without builtins.
func New(registry *Registry, opts ...Option) *Machine {
	if registry == nil {
		registry = MustRegistry()
	}
	m := &Machine{
		id:       uuid.NewString(),
		registry: registry,
		maxDepth: DefaultMaxDepth,
		log:      commonlog.GetLogger("sbc.vm"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ID returns the machine's unique identifier, used to tag trace output.
func (m *Machine) ID() string {
	return m.id
}

// Registry returns the registry the machine resolves builtins through.
func (m *Machine) Registry() *Registry {
	return m.registry
}

// State is how an invocation ended.
type State uint8

const (
	// StateExhausted means the cursor reached the end of the code.
	StateExhausted State = iota
	// StateReturned means an OpRet was executed.
	StateReturned
)

func (s State) String() string {
	if s == StateReturned {
		return "returned"
	}
	return "exhausted"
}

// Result is the outcome of a successful Run.
type Result struct {
	Value      Value // returned value, Null when exhausted
	State      State
	StackDepth int // operand stack depth when the invocation ended
	Steps      int // instructions executed, including nested invocations
}

// Run executes code and returns its result. The code is borrowed for the
// duration of the call and never modified. Errors are *Fault values.
func (m *Machine) Run(code []byte) (*Result, error) {
	r := &run{m: m}
	res, err := r.invoke(code, 0)
	if err != nil {
		if f, ok := AsFault(err); ok && m.log.AllowLevel(commonlog.Debug) {
			m.log.Debugf("%s: %v", m.shortID(), f)
		}
		return nil, err
	}
	res.Steps = r.steps
	return res, nil
}

// Exec executes code and returns the single value it yields.
func (m *Machine) Exec(code []byte) (Value, error) {
	res, err := m.Run(code)
	if err != nil {
		return Value{}, err
	}
	return res.Value, nil
}

func (m *Machine) shortID() string {
	if len(m.id) > 8 {
		return m.id[:8]
	}
	return m.id
}
