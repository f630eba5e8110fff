package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dop251/goja"

	"github.com/wricardo/jshero/game/engine"
)

const (
	// DefaultRunTimeout bounds a whole run, loops or not
	DefaultRunTimeout = 2 * time.Second

	// DefaultMaxCallStackSize stops runaway recursion
	DefaultMaxCallStackSize = 1024

	solutionName = "solution"
	scriptName   = "solution.js"
)

var (
	// ErrSolutionNotDefined is returned when the source does not define a solution function
	ErrSolutionNotDefined = errors.New("Solution function not defined, ensure solution function is valid")

	// ErrRunTimeout is the failure of a run interrupted by the wall-clock limit
	ErrRunTimeout = errors.New("Execution timed out")

	// ErrStackOverflow is the failure of a run that recursed too deep
	ErrStackOverflow = errors.New("Maximum call stack size exceeded")
)

// ScriptError is an error thrown by learner code, either while the source is
// evaluated or while the solution runs.
type ScriptError struct {
	Message string
}

func (e *ScriptError) Error() string {
	return e.Message
}

// Runner turns JavaScript source into engine solutions
type Runner struct {
	limit        Limit
	message      string
	timeout      time.Duration
	maxCallStack int
	logger       *log.Logger
}

// Option configures a Runner
type Option func(*Runner)

// WithLimit sets the per-loop budget
func WithLimit(limit Limit) Option {
	return func(r *Runner) { r.limit = limit }
}

// WithMessage sets the error message thrown by a guarded loop
func WithMessage(message string) Option {
	return func(r *Runner) {
		if message != "" {
			r.message = message
		}
	}
}

// WithTimeout sets the wall-clock limit of a single run. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Runner) { r.timeout = timeout }
}

// WithMaxCallStackSize sets the maximum JavaScript call depth
func WithMaxCallStackSize(size int) Option {
	return func(r *Runner) {
		if size > 0 {
			r.maxCallStack = size
		}
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a runner with the default loop budget and run timeout
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		limit:        DefaultLimit,
		message:      DefaultLoopMessage,
		timeout:      DefaultRunTimeout,
		maxCallStack: DefaultMaxCallStackSize,
		logger:       log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.limit = r.limit.normalized()
	return r
}

// Limit returns the loop budget applied by the runner
func (r *Runner) Limit() Limit {
	return r.limit
}

// Instrument guards the loops of source with the runner's budget
func (r *Runner) Instrument(source string) (string, error) {
	return Instrument(source, r.limit, r.message)
}

// Script is compiled learner code. It is safe to run concurrently; every
// run evaluates the program in its own JavaScript runtime.
type Script struct {
	Source       string `json:"source"`
	Instrumented string `json:"instrumented"`

	program *goja.Program
	runner  *Runner
}

// Compile instruments source, compiles it and checks that evaluating it
// defines a solution function.
func (r *Runner) Compile(source string) (*Script, error) {
	instrumented, err := r.Instrument(source)
	if err != nil {
		return nil, err
	}

	program, err := goja.Compile(scriptName, instrumented, false)
	if err != nil {
		return nil, compileError(err)
	}

	s := &Script{
		Source:       source,
		Instrumented: instrumented,
		program:      program,
		runner:       r,
	}

	ctx, cancel := r.runContext(context.Background())
	defer cancel()
	if _, _, err := s.load(ctx); err != nil {
		return nil, err
	}

	r.logger.Debug("script compiled", "bytes", len(source), "instrumented", len(instrumented))
	return s, nil
}

func compileError(err error) error {
	var syntax *goja.CompilerSyntaxError
	if errors.As(err, &syntax) {
		se := &SyntaxError{Message: syntax.Message}
		if syntax.File != nil {
			pos := syntax.File.Position(syntax.Offset)
			se.Line, se.Column = pos.Line, pos.Column
		}
		return se
	}
	return fmt.Errorf("compile script: %w", err)
}

func (r *Runner) runContext(parent context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(parent, r.timeout)
	}
	return context.WithCancel(parent)
}

// load evaluates the program in a fresh runtime and returns the solution
// function it defines. The runtime is interrupted once ctx is done.
func (s *Script) load(ctx context.Context) (*goja.Runtime, goja.Callable, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(s.runner.maxCallStack)

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ErrRunTimeout)
	})
	defer stop()

	if _, err := vm.RunProgram(s.program); err != nil {
		return nil, nil, s.runner.convert(err)
	}

	fn, ok := goja.AssertFunction(vm.Get(solutionName))
	if !ok {
		return nil, nil, ErrSolutionNotDefined
	}
	return vm, fn, nil
}

// Solution adapts the script to the engine. Every call of the returned
// function evaluates the script from scratch and calls its solution with
// a handle bound to the given player.
func (s *Script) Solution(ctx context.Context) engine.SolutionFunc {
	return func(p engine.Player) error {
		runCtx, cancel := s.runner.runContext(ctx)
		defer cancel()

		vm, fn, err := s.load(runCtx)
		if err != nil {
			return err
		}

		stop := context.AfterFunc(runCtx, func() {
			vm.Interrupt(ErrRunTimeout)
		})
		defer stop()

		_, err = fn(goja.Undefined(), newPlayerHandle(vm, p))
		if err != nil {
			err = s.runner.convert(err)
			s.runner.logger.Debug("solution failed", "err", err)
		}
		return err
	}
}

// Run resolves level with the script. It is a shorthand for
// engine.Resolve(level, s.Solution(ctx)).
func (s *Script) Run(ctx context.Context, level *engine.Level) (*engine.Result, error) {
	return engine.Resolve(level, s.Solution(ctx))
}

// convert maps a goja failure to the error reported for the run
func (r *Runner) convert(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause := interrupted.Unwrap(); cause != nil {
			return cause
		}
		return ErrRunTimeout
	}

	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return ErrStackOverflow
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		var levelErr *engine.LevelError
		if cause := exception.Unwrap(); cause != nil {
			if errors.As(cause, &levelErr) {
				return levelErr
			}
			return &ScriptError{Message: cause.Error()}
		}
		return &ScriptError{Message: exceptionMessage(exception)}
	}

	return &ScriptError{Message: err.Error()}
}

func exceptionMessage(ex *goja.Exception) string {
	val := ex.Value()
	if val == nil {
		return ex.Error()
	}
	if obj, ok := val.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) && !goja.IsNull(msg) {
			return msg.String()
		}
	}
	return val.String()
}
