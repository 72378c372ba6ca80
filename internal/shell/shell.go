// Package shell is the interactive front end of a session: it reads
// increments, prints their results and handles the colon commands.
package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xirelogy/go-wasmrepl"
	"github.com/xirelogy/go-wasmrepl/internal/transcript"
)

const (
	promptMain = ">>> "
	promptCont = "... "
)

// LineReader supplies input lines. *liner.State implements it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// Options configures a Shell.
type Options struct {
	Session *wasmrepl.Session
	// Store, when set, receives every evaluated increment.
	Store *transcript.Store
	Out   io.Writer
	Err   io.Writer
	Color bool
	// ReadFile and WriteFile default to the os functions.
	ReadFile  func(name string) ([]byte, error)
	WriteFile func(name string, data []byte) error
	Logger    *zap.Logger
}

// Shell drives one session.
type Shell struct {
	opts      Options
	logger    *zap.Logger
	sessionID string
	last      wasmrepl.Value
	// sources holds the increments that evaluated successfully, for :save.
	sources []string
}

func New(opts Options) *Shell {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	if opts.WriteFile == nil {
		opts.WriteFile = func(name string, data []byte) error {
			return os.WriteFile(name, data, 0o644)
		}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Shell{
		opts:      opts,
		logger:    opts.Logger.Named("shell"),
		sessionID: transcript.NewSession(),
		last:      wasmrepl.None(),
	}
}

// SessionID identifies the shell's transcript session.
func (sh *Shell) SessionID() string { return sh.sessionID }

// Loop reads and evaluates input until EOF or :quit.
func (sh *Shell) Loop(ctx context.Context, in LineReader) error {
	for {
		src, err := readSource(in)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(sh.opts.Out)
			return nil
		}
		if err != nil {
			return err
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		in.AppendHistory(strings.TrimRight(src, "\n"))
		if strings.HasPrefix(trimmed, ":") {
			quit, err := sh.Command(ctx, trimmed)
			if err != nil {
				sh.printError(err)
			}
			if quit {
				return nil
			}
			continue
		}
		if _, err := sh.Eval(ctx, src); err != nil {
			sh.printError(err)
		}
	}
}

// readSource reads one increment. A line opening a block is followed by
// continuation lines up to the first blank one.
func readSource(in LineReader) (string, error) {
	line, err := in.Prompt(promptMain)
	if err != nil {
		return "", err
	}
	if !opensBlock(line) {
		return line + "\n", nil
	}
	var b strings.Builder
	b.WriteString(line)
	b.WriteByte('\n')
	for {
		line, err := in.Prompt(promptCont)
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) == "" {
			return b.String(), nil
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
}

func opensBlock(line string) bool {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.HasSuffix(strings.TrimSpace(line), ":")
}

// Eval runs one increment, prints its result and records it.
func (sh *Shell) Eval(ctx context.Context, src string) (wasmrepl.Value, error) {
	before := len(sh.opts.Session.Output())
	v, err := sh.opts.Session.Run(ctx, src)
	sh.record(ctx, src, v, err, before)
	if err != nil {
		return v, err
	}
	sh.sources = append(sh.sources, src)
	sh.last = v
	if v.Kind != wasmrepl.KindNone {
		fmt.Fprintln(sh.opts.Out, sh.paint(colorValue, wasmrepl.RenderTop(v)))
	}
	return v, nil
}

func (sh *Shell) record(ctx context.Context, src string, v wasmrepl.Value, runErr error, before int) {
	if sh.opts.Store == nil {
		return
	}
	e := transcript.Entry{Session: sh.sessionID, Source: src}
	if output := sh.opts.Session.Output(); before < len(output) {
		e.Output = output[before:]
	}
	if runErr != nil {
		e.Error = runErr.Error()
	} else {
		e.Result = wasmrepl.RenderTop(v)
	}
	if _, err := sh.opts.Store.Record(ctx, e); err != nil {
		sh.logger.Warn("transcript write failed", zap.Error(err))
	}
}

// Command executes a colon command. quit reports whether the shell should
// stop.
func (sh *Shell) Command(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]
	switch name {
	case ":quit", ":q":
		return true, nil
	case ":help":
		fmt.Fprint(sh.opts.Out, helpText)
		return false, nil
	case ":reset":
		return false, sh.reset(ctx)
	case ":inspect":
		return false, sh.inspect(args)
	case ":env":
		return false, sh.env()
	case ":mem":
		return false, sh.mem()
	case ":load":
		if len(args) != 1 {
			return false, errors.New("usage: :load FILE")
		}
		return false, sh.load(ctx, args[0])
	case ":save":
		if len(args) != 1 {
			return false, errors.New("usage: :save FILE")
		}
		return false, sh.save(args[0])
	case ":history":
		return false, sh.history(ctx)
	case ":dump":
		return false, sh.opts.Session.Disassemble(sh.opts.Out)
	default:
		return false, errors.Errorf("unknown command %s; type :help for a list", name)
	}
}

const helpText = `:quit            leave the shell
:reset           forget every definition and start a fresh memory
:inspect [NAME]  show the fields of the last result or of a global
:env             list classes and globals
:mem             show memory usage
:load FILE       evaluate a source file
:save FILE       write the evaluated sources to a file
:history         list the increments of this session
:dump            disassemble the last increment
`

func (sh *Shell) reset(ctx context.Context) error {
	if err := sh.opts.Session.Reset(ctx); err != nil {
		return err
	}
	sh.sessionID = transcript.NewSession()
	sh.sources = nil
	sh.last = wasmrepl.None()
	fmt.Fprintln(sh.opts.Out, "session reset")
	return nil
}

func (sh *Shell) inspect(args []string) error {
	v := sh.last
	if len(args) > 0 {
		var err error
		if v, err = sh.opts.Session.Lookup(args[0]); err != nil {
			return err
		}
	}
	if !v.IsObject() {
		fmt.Fprintln(sh.opts.Out, wasmrepl.RenderTop(v))
		return nil
	}
	nodes, err := sh.opts.Session.Inspect(v)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.opts.Out, wasmrepl.RenderTop(v))
	fmt.Fprint(sh.opts.Out, indent(wasmrepl.RenderTree(nodes)))
	return nil
}

func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l != "" {
			b.WriteString("  ")
			b.WriteString(l)
		}
	}
	return b.String()
}

func (sh *Shell) env() error {
	env := sh.opts.Session.TypeEnv()
	for _, name := range env.ClassNames() {
		layout, _ := env.Class(name)
		fields := make([]string, len(layout.Fields))
		for i, f := range layout.Fields {
			fields[i] = fmt.Sprintf("%s: %s", f.Name, f.Type)
		}
		methods := make([]string, 0, len(layout.Methods))
		for m := range layout.Methods {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		fmt.Fprintf(sh.opts.Out, "class %s(%s)", name, strings.Join(fields, ", "))
		if len(methods) > 0 {
			fmt.Fprintf(sh.opts.Out, " methods %s", strings.Join(methods, ", "))
		}
		fmt.Fprintln(sh.opts.Out)
	}
	for _, g := range env.Globals() {
		v, err := sh.opts.Session.Lookup(g.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.opts.Out, "%s: %s = %s\n", g.Name, g.Type, wasmrepl.RenderTop(v))
	}
	return nil
}

func (sh *Shell) mem() error {
	st, err := sh.opts.Session.Stats()
	if err != nil {
		return err
	}
	used := uint64(st.HeapPointer - st.HeapStart)
	fmt.Fprintf(sh.opts.Out, "memory %s, heap %s used at %d..%d, %s\n",
		humanize.IBytes(uint64(st.MemoryBytes)), humanize.IBytes(used), st.HeapStart, st.HeapPointer,
		plural(st.Increments, "increment"))
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return humanize.Comma(int64(n)) + " " + word + "s"
}

func (sh *Shell) load(ctx context.Context, name string) error {
	data, err := sh.opts.ReadFile(name)
	if err != nil {
		return errors.Wrap(err, "load")
	}
	_, err = sh.Eval(ctx, string(data))
	return err
}

func (sh *Shell) save(name string) error {
	var b strings.Builder
	for _, src := range sh.sources {
		b.WriteString(src)
		if !strings.HasSuffix(src, "\n") {
			b.WriteByte('\n')
		}
	}
	if err := sh.opts.WriteFile(name, []byte(b.String())); err != nil {
		return errors.Wrap(err, "save")
	}
	fmt.Fprintf(sh.opts.Out, "saved %s to %s\n", plural(len(sh.sources), "increment"), name)
	return nil
}

func (sh *Shell) history(ctx context.Context) error {
	if sh.opts.Store == nil {
		for i, src := range sh.sources {
			fmt.Fprintf(sh.opts.Out, "[%d] %s\n", i+1, firstLine(src))
		}
		return nil
	}
	entries, err := sh.opts.Store.Session(ctx, sh.sessionID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		status := e.Result
		if e.Error != "" {
			status = sh.paint(colorError, e.Error)
		}
		fmt.Fprintf(sh.opts.Out, "[%d] %s  %s  => %s\n", e.Seq, humanize.Time(e.Time), firstLine(e.Source), status)
	}
	return nil
}

func firstLine(src string) string {
	src = strings.TrimSpace(src)
	if i := strings.IndexByte(src, '\n'); i >= 0 {
		return src[:i] + " ..."
	}
	return src
}

func (sh *Shell) printError(err error) {
	fmt.Fprintln(sh.opts.Err, sh.paint(colorError, err.Error()))
}
