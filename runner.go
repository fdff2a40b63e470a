package fixtest

import (
	"context"
	"fmt"
	"path"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Test is one runnable test: a body plus the coordinates that decide which
// scope instances it runs inside. Path is the slash-separated test file
// path (e.g. "api/users_test.go"); its directory is the package scope and
// the file itself is the module scope. Class optionally groups tests within
// a file.
type Test struct {
	Name     string
	Path     string
	Class    string
	Fixtures []string
	Func     func(ctx context.Context, fx Values) error
}

func (t *Test) module() string {
	return cleanDir(t.Path)
}

func (t *Test) dir() string {
	return parentDir(t.module())
}

type Outcome int

const (
	OutcomePassed Outcome = iota
	// OutcomeFailed means the test body returned an error or panicked.
	OutcomeFailed
	// OutcomeErrored means the test never ran to a verdict: an unknown
	// fixture at collection, a setup failure, or a teardown failure after a
	// passing body.
	OutcomeErrored
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "passed"
	case OutcomeFailed:
		return "failed"
	case OutcomeErrored:
		return "errored"
	default:
		return "unknown"
	}
}

type Result struct {
	Test     *Test
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Summary aggregates one run.
type Summary struct {
	Passed  int
	Failed  int
	Errored int
	Elapsed time.Duration
}

func (s Summary) Total() int {
	return s.Passed + s.Failed + s.Errored
}

type RunnerOpt func(*Runner)

func NewRunner(registry *Registry, opts ...RunnerOpt) *Runner {
	r := &Runner{registry: registry}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger()
	}
	if r.manager == nil {
		r.manager = NewManager(registry, ManagerLogger(r.log))
	}
	return r
}

func RunnerLogger(logger *zap.Logger) RunnerOpt {
	return func(r *Runner) {
		r.log = logger
	}
}

func RunnerManager(manager *Manager) RunnerOpt {
	return func(r *Runner) {
		r.manager = manager
	}
}

// Runner resolves each test's declared fixtures, invokes the body, and
// signals scope closures to the manager as package/module/class boundaries
// are crossed. Tests run one at a time; a failing body never suppresses
// teardown of the fixtures it used.
type Runner struct {
	log      *zap.Logger
	registry *Registry
	manager  *Manager

	open      bool
	timer     *timer
	results   []Result
	closeErrs error
}

// Run executes a single test and records its result. The session opens
// lazily on the first test and stays open until Close.
func (r *Runner) Run(ctx context.Context, t *Test) Result {
	tm := newTimer()
	res := Result{Test: t, Outcome: OutcomePassed}

	if err := r.enter(ctx, t); err != nil {
		res.Outcome = OutcomeErrored
		res.Err = err
		return r.finish(ctx, tm, res)
	}

	fx := Values{}
	for _, name := range t.Fixtures {
		name = normalizeName(name)
		def, err := r.registry.Lookup(name, t.dir())
		if err != nil {
			res.Outcome = OutcomeErrored
			res.Err = err
			return r.finish(ctx, tm, res)
		}
		inst, err := r.manager.Resolve(ctx, def)
		if err != nil {
			res.Outcome = OutcomeErrored
			res.Err = err
			return r.finish(ctx, tm, res)
		}
		fx[name] = inst.Value()
	}

	if err := runBody(ctx, t, fx); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
	}
	return r.finish(ctx, tm, res)
}

// RunAll runs every test in order, closes the session, and returns the
// summary. The error collects every teardown failure seen during the run.
func (r *Runner) RunAll(ctx context.Context, tests ...*Test) (Summary, error) {
	for _, t := range tests {
		r.Run(ctx, t)
	}
	err := r.Close(ctx)
	return r.Summary(), err
}

// Close ends the run, tearing down everything still open up to and
// including session scope. Safe to call more than once.
func (r *Runner) Close(ctx context.Context) error {
	if r.open {
		r.closeErrs = multierr.Append(r.closeErrs, r.manager.Close(ctx, ScopeSession))
		r.open = false
		r.timer.Stop()
	}
	return r.closeErrs
}

func (r *Runner) Results() []Result {
	return append([]Result(nil), r.results...)
}

func (r *Runner) Summary() Summary {
	s := Summary{}
	for _, res := range r.results {
		switch res.Outcome {
		case OutcomePassed:
			s.Passed++
		case OutcomeFailed:
			s.Failed++
		default:
			s.Errored++
		}
	}
	if r.timer != nil {
		s.Elapsed = r.timer.Duration()
	}
	return s
}

// enter aligns the scope stack with the test's coordinates, closing crossed
// boundaries innermost-first and opening new ones, then opens the test's
// function scope. Teardown failures from closed boundaries belong to the
// run, not to this test, and are surfaced by Close.
func (r *Runner) enter(ctx context.Context, t *Test) error {
	if !r.open {
		r.timer = newTimer()
		if err := r.manager.Open(ScopeSession, "session"); err != nil {
			return err
		}
		r.open = true
	}
	pkg, mod := t.dir(), t.module()
	if cur, ok := r.manager.Current(ScopePackage); !ok || cur != pkg {
		r.closeScope(ctx, ScopePackage)
		if err := r.manager.Open(ScopePackage, pkg); err != nil {
			return err
		}
	}
	if cur, ok := r.manager.Current(ScopeModule); !ok || cur != mod {
		r.closeScope(ctx, ScopeModule)
		if err := r.manager.Open(ScopeModule, mod); err != nil {
			return err
		}
	}
	if cur, ok := r.manager.Current(ScopeClass); ok && cur != t.Class {
		r.closeScope(ctx, ScopeClass)
	}
	if t.Class != "" {
		if _, ok := r.manager.Current(ScopeClass); !ok {
			if err := r.manager.Open(ScopeClass, t.Class); err != nil {
				return err
			}
		}
	}
	return r.manager.Open(ScopeFunction, t.Name)
}

func (r *Runner) closeScope(ctx context.Context, level Level) {
	if err := r.manager.Close(ctx, level); err != nil {
		r.closeErrs = multierr.Append(r.closeErrs, err)
	}
}

// finish closes the test's function scope and records the result. A
// teardown failure after a passing body turns the result into an error; it
// never masks a body failure.
func (r *Runner) finish(ctx context.Context, tm *timer, res Result) Result {
	if err := r.manager.Close(ctx, ScopeFunction); err != nil {
		if res.Outcome == OutcomePassed {
			res.Outcome = OutcomeErrored
		}
		res.Err = multierr.Append(res.Err, err)
	}
	tm.Stop()
	res.Duration = tm.Duration()
	status := 0
	if res.Outcome != OutcomePassed {
		status = 1
	}
	r.log.Debug("result",
		zap.String("status", getStatusSymbol(status)),
		zap.String("test", path.Join(res.Test.Path, res.Test.Name)),
		zap.Stringer("outcome", res.Outcome),
		zap.Duration("duration", res.Duration),
		zap.Error(res.Err),
	)
	r.results = append(r.results, res)
	return res
}

func runBody(ctx context.Context, t *Test, fx Values) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("test '%v' panicked: %v", t.Name, rec)
		}
	}()
	return t.Func(ctx, fx)
}
