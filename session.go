package wasmrepl

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	_ "github.com/xirelogy/go-wasmrepl/internal/builtins"
	"github.com/xirelogy/go-wasmrepl/internal/checker"
	"github.com/xirelogy/go-wasmrepl/internal/compiler"
	"github.com/xirelogy/go-wasmrepl/internal/lexer"
	"github.com/xirelogy/go-wasmrepl/internal/parser"
	"github.com/xirelogy/go-wasmrepl/internal/runtime"
	"github.com/xirelogy/go-wasmrepl/internal/types"
	"github.com/xirelogy/go-wasmrepl/internal/wasm"
)

const globalBase = compiler.GlobalBase

// Session is an incremental evaluation context. Every successful Run
// extends the declarations visible to later runs. At most one run is in
// flight at a time.
type Session struct {
	cfg     Config
	logger  *zap.Logger
	imports *zap.Logger

	mu     sync.Mutex
	busy   bool
	closed bool

	runtime wazero.Runtime
	memory  api.Memory
	env     *types.Env
	modules []api.Module
	epoch   string
	last    *compiler.Output

	outMu  sync.Mutex
	output []string
}

// New creates a session with an empty environment and a fresh memory.
func New(cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid session config")
	}
	s := &Session{
		cfg:     cfg,
		logger:  cfg.Logger.Named("session"),
		imports: cfg.Logger.Named("imports"),
	}
	if err := s.start(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// start builds the runtime, the shared memory and the import module.
func (s *Session) start(ctx context.Context) error {
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter().
		WithMemoryLimitPages(s.cfg.MaxPages))

	mem, err := r.InstantiateWithConfig(ctx, wasm.MemoryModule(compiler.MemoryName, s.cfg.memoryLimits()),
		wazero.NewModuleConfig().WithName(compiler.MemoryModule))
	if err != nil {
		r.Close(ctx)
		return errors.Wrap(err, "instantiate memory")
	}
	heapStart := compiler.HeapStart(s.cfg.MaxGlobals)
	if !mem.Memory().WriteUint32Le(compiler.HeapPointer, heapStart) {
		r.Close(ctx)
		return errors.New("memory too small for heap pointer")
	}
	if _, err := runtime.Instantiate(ctx, r, &host{s: s}); err != nil {
		r.Close(ctx)
		return errors.Wrap(err, "instantiate imports")
	}

	s.mu.Lock()
	s.runtime = r
	s.memory = mem.Memory()
	s.env = types.NewEnv(globalBase, s.cfg.MaxGlobals)
	s.modules = nil
	s.last = nil
	s.epoch = uuid.NewString()
	s.mu.Unlock()
	s.logger.Debug("session started",
		zap.String("epoch", s.epoch),
		zap.Uint32("heap_start", heapStart),
		zap.Uint32("memory_bytes", s.memory.Size()))
	return nil
}

// RunFuture represents an in-flight evaluation.
type RunFuture struct {
	ch <-chan runResult
}

type runResult struct {
	value Value
	err   error
}

// Await waits for the evaluation or for ctx to be done. Giving up on the
// wait does not stop the evaluation.
func (f RunFuture) Await(ctx context.Context) (Value, error) {
	select {
	case <-ctx.Done():
		return Value{}, ctx.Err()
	case res := <-f.ch:
		return res.value, res.err
	}
}

func resolved(err error) RunFuture {
	ch := make(chan runResult, 1)
	ch <- runResult{err: err}
	close(ch)
	return RunFuture{ch: ch}
}

// Run evaluates source and waits for the result.
func (s *Session) Run(ctx context.Context, source string) (Value, error) {
	return s.RunAsync(ctx, source).Await(ctx)
}

// RunAsync evaluates source on its own goroutine. A run started while
// another is in flight resolves with ErrBusy.
func (s *Session) RunAsync(ctx context.Context, source string) RunFuture {
	if err := s.acquire(); err != nil {
		return resolved(err)
	}

	ch := make(chan runResult, 1)
	go func() {
		defer close(ch)
		var res runResult
		select {
		case <-ctx.Done():
			res.err = ctx.Err()
		default:
			res.value, res.err = s.evaluate(context.WithoutCancel(ctx), source)
		}
		// the session is idle by the time Await returns
		s.release()
		ch <- res
	}()
	return RunFuture{ch: ch}
}

// evaluate runs one increment. It is only called with busy set, which
// keeps every other mutator out.
func (s *Session) evaluate(ctx context.Context, source string) (Value, error) {
	started := time.Now()
	name := fmt.Sprintf("repl-%d", len(s.modules)+1)

	p := parser.New(lexer.New(source))
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) != 0 {
		return Value{}, &CompileError{Stage: "parse", Messages: errs}
	}
	info, errs := checker.Check(prog, s.env, name)
	if len(errs) != 0 {
		return Value{}, &CompileError{Stage: "type", Messages: errs}
	}
	out, err := compiler.Compile(prog, info, compiler.Options{Module: name, Memory: s.cfg.memoryLimits()})
	if err != nil {
		return Value{}, &CompileError{Stage: "compile", Messages: []string{err.Error()}}
	}

	mod, err := s.runtime.InstantiateWithConfig(ctx, out.Binary, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return Value{}, &CompileError{Stage: "link", Messages: []string{err.Error()}}
	}
	res, err := mod.ExportedFunction(compiler.RunExport).Call(ctx)
	if err != nil {
		mod.Close(ctx)
		rerr := runtimeError(err)
		s.logger.Debug("increment trapped", zap.String("module", name), zap.Error(rerr))
		return Value{}, rerr
	}

	s.mu.Lock()
	s.env = info.Env
	s.modules = append(s.modules, mod)
	s.last = out
	epoch := s.epoch
	s.mu.Unlock()

	s.logger.Debug("increment evaluated",
		zap.String("module", name),
		zap.Int("functions", len(info.Funcs)),
		zap.Int("classes", len(info.Classes)),
		zap.Duration("elapsed", time.Since(started)))

	if !info.HasResult {
		return None(), nil
	}
	v := fromWord(info.Result, api.DecodeI32(res[0]))
	if v.Kind == KindObject {
		v.epoch = epoch
	}
	return v, nil
}

// runtimeError converts a failed call into a RuntimeError. Host traps keep
// their message; wasm traps are prefixed the same way.
func runtimeError(err error) error {
	var trap *runtime.Trap
	if errors.As(err, &trap) {
		return &RuntimeError{Message: trap.Message, Cause: err}
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	msg = strings.TrimPrefix(msg, "wasm error: ")
	return &RuntimeError{Message: "RUNTIME ERROR: " + msg, Cause: err}
}

// acquire marks the session busy for a synchronous operation.
func (s *Session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Reset discards every declaration, the memory and the output log.
// Objects obtained before the reset can no longer be inspected.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	if err := s.runtime.Close(ctx); err != nil {
		s.logger.Warn("closing runtime", zap.Error(err))
	}
	s.outMu.Lock()
	s.output = nil
	s.outMu.Unlock()
	if err := s.start(ctx); err != nil {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		return err
	}
	return nil
}

// Close releases the runtime. The session cannot be used afterwards.
func (s *Session) Close(ctx context.Context) error {
	if err := s.acquire(); err != nil {
		if errors.Is(err, ErrClosed) {
			return nil
		}
		return err
	}
	s.mu.Lock()
	s.closed = true
	s.busy = false
	s.mu.Unlock()
	return errors.Wrap(s.runtime.Close(ctx), "close runtime")
}

// TypeEnv returns the environment of the last successful run. The
// returned value is never modified by the session.
func (s *Session) TypeEnv() *TypeEnv {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env
}

// Memory returns the session memory. The view stays valid until Reset.
func (s *Session) Memory() Memory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory
}

// Inspect materializes an object value against the session memory.
func (s *Session) Inspect(v Value) ([]FieldNode, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	if v.epoch != "" && v.epoch != s.epoch {
		return nil, ErrStaleValue
	}
	return MaterializeDepth(v, s.memory, s.env, s.cfg.MaxDepth)
}

// Lookup reads the current value of a global variable.
func (s *Session) Lookup(name string) (Value, error) {
	if err := s.acquire(); err != nil {
		return Value{}, err
	}
	defer s.release()
	g, ok := s.env.Global(name)
	if !ok {
		return Value{}, errors.Errorf("name %q is not defined", name)
	}
	word, ok := s.memory.ReadUint32Le(g.Address)
	if !ok {
		return Value{}, &LayoutError{Kind: ErrOutOfBounds, Field: name, Address: g.Address}
	}
	v := fromWord(g.Type, int32(word))
	if v.Kind == KindObject {
		v.epoch = s.epoch
	}
	return v, nil
}

// Output returns a copy of every line printed since the session started
// or was last reset.
func (s *Session) Output() []string {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return append([]string(nil), s.output...)
}

// Stats describes the memory and module usage of a session.
type Stats struct {
	Epoch       string
	Increments  int
	MemoryBytes uint32
	HeapStart   uint32
	HeapPointer uint32
}

// Stats reports the current memory usage.
func (s *Session) Stats() (Stats, error) {
	if err := s.acquire(); err != nil {
		return Stats{}, err
	}
	defer s.release()
	hp, _ := s.memory.ReadUint32Le(compiler.HeapPointer)
	return Stats{
		Epoch:       s.epoch,
		Increments:  len(s.modules),
		MemoryBytes: s.memory.Size(),
		HeapStart:   compiler.HeapStart(s.cfg.MaxGlobals),
		HeapPointer: hp,
	}, nil
}

// Disassemble writes the instructions of the last successful increment.
func (s *Session) Disassemble(w io.Writer) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	if s.last == nil {
		return errors.New("nothing evaluated yet")
	}
	return wasm.NewDisassembler(w).DisassembleModule(s.last.Module)
}

// host adapts a session to the import handlers.
type host struct {
	s *Session
}

func (h *host) Print(t types.Type, word int32) {
	line := Stringify(t, int64(word))
	h.s.outMu.Lock()
	h.s.output = append(h.s.output, line)
	h.s.outMu.Unlock()
	h.s.imports.Debug("print", zap.String("type", t.String()), zap.Int32("value", word))
	if w := h.s.cfg.Output; w != nil {
		fmt.Fprintln(w, line)
	}
}

func (h *host) Logger() *zap.Logger {
	return h.s.imports
}
