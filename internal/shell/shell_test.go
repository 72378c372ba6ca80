package shell

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/xirelogy/go-wasmrepl"
	"github.com/xirelogy/go-wasmrepl/internal/transcript"
)

type scriptReader struct {
	lines   []string
	prompts []string
	history []string
}

func (r *scriptReader) Prompt(p string) (string, error) {
	r.prompts = append(r.prompts, p)
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptReader) AppendHistory(item string) {
	r.history = append(r.history, item)
}

type fixture struct {
	shell *Shell
	out   *bytes.Buffer
	err   *bytes.Buffer
	files map[string]string
}

func newFixture(t *testing.T, store *transcript.Store) *fixture {
	t.Helper()
	f := &fixture{out: &bytes.Buffer{}, err: &bytes.Buffer{}, files: map[string]string{}}
	s, err := wasmrepl.New(wasmrepl.Config{Output: f.out})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	f.shell = New(Options{
		Session: s,
		Store:   store,
		Out:     f.out,
		Err:     f.err,
		ReadFile: func(name string) ([]byte, error) {
			data, ok := f.files[name]
			if !ok {
				return nil, os.ErrNotExist
			}
			return []byte(data), nil
		},
		WriteFile: func(name string, data []byte) error {
			f.files[name] = string(data)
			return nil
		},
	})
	return f
}

func (f *fixture) run(t *testing.T, lines ...string) *scriptReader {
	t.Helper()
	r := &scriptReader{lines: lines}
	if err := f.shell.Loop(context.Background(), r); err != nil {
		t.Fatalf("loop: %v", err)
	}
	return r
}

func TestLoopEvaluatesBlocks(t *testing.T) {
	f := newFixture(t, nil)
	r := f.run(t,
		"def twice(n: int) -> int:",
		"    return n * 2",
		"",
		"print(twice(4))",
		"twice(5)",
		"x: int = 1",
	)
	if got := f.out.String(); got != "8\n10\n\n" {
		t.Fatalf("unexpected output %q", got)
	}
	wantPrompts := []string{">>> ", "... ", "... ", ">>> ", ">>> ", ">>> ", ">>> "}
	if strings.Join(r.prompts, "|") != strings.Join(wantPrompts, "|") {
		t.Fatalf("unexpected prompts %q", r.prompts)
	}
	if len(r.history) != 4 || r.history[0] != "def twice(n: int) -> int:\n    return n * 2" {
		t.Fatalf("unexpected history %q", r.history)
	}
	if f.err.Len() != 0 {
		t.Fatalf("unexpected errors %q", f.err.String())
	}
}

func TestLoopReportsErrorsAndQuits(t *testing.T) {
	f := newFixture(t, nil)
	r := f.run(t, "1 // 0", "undefined", ":bogus", ":quit", "2")
	errs := f.err.String()
	for _, want := range []string{"RUNTIME ERROR: integer divide by zero", "TYPE ERROR", "unknown command :bogus"} {
		if !strings.Contains(errs, want) {
			t.Fatalf("expected %q in %q", want, errs)
		}
	}
	if len(r.lines) != 1 {
		t.Fatalf("expected :quit to stop before the last line, %d left", len(r.lines))
	}
	if strings.Contains(errs, "\x1b[") {
		t.Fatalf("expected no colour without a terminal")
	}
}

func TestInspectAndEnv(t *testing.T) {
	f := newFixture(t, nil)
	f.run(t,
		"class Point(object):",
		"    x: int = 1",
		"    y: int = 2",
		"    def norm(self: Point) -> int:",
		"        return abs(self.x) + abs(self.y)",
		"",
		"p: Point = None",
		"p = Point()",
		"p",
	)
	f.out.Reset()
	ctx := context.Background()
	if _, err := f.shell.Command(ctx, ":inspect"); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	out := f.out.String()
	for _, want := range []string{"<Point object at", "  address: ", "  x: 1\n", "  y: 2\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}

	f.out.Reset()
	if _, err := f.shell.Command(ctx, ":inspect p"); err != nil {
		t.Fatalf("inspect p: %v", err)
	}
	if !strings.Contains(f.out.String(), "  x: 1\n") {
		t.Fatalf("unexpected inspect output %q", f.out.String())
	}

	f.out.Reset()
	if _, err := f.shell.Command(ctx, ":env"); err != nil {
		t.Fatalf("env: %v", err)
	}
	out = f.out.String()
	if !strings.Contains(out, "class Point(x: int, y: int) methods norm") || !strings.Contains(out, "p: Point = <Point object at") {
		t.Fatalf("unexpected env output %q", out)
	}

	f.out.Reset()
	if _, err := f.shell.Command(ctx, ":mem"); err != nil {
		t.Fatalf("mem: %v", err)
	}
	if !strings.Contains(f.out.String(), "memory 64 KiB, heap 8 B used") {
		t.Fatalf("unexpected mem output %q", f.out.String())
	}

	if _, err := f.shell.Command(ctx, ":inspect nothing"); err == nil {
		t.Fatalf("expected error for unknown global")
	}
}

func TestSaveLoadAndReset(t *testing.T) {
	f := newFixture(t, nil)
	f.run(t, "x: int = 40", "x + 2", "1 // 0")
	ctx := context.Background()
	if _, err := f.shell.Command(ctx, ":save prog.py"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := f.files["prog.py"]; got != "x: int = 40\nx + 2\n" {
		t.Fatalf("unexpected saved source %q", got)
	}

	if _, err := f.shell.Command(ctx, ":reset"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := f.shell.Eval(ctx, "x\n"); err == nil {
		t.Fatalf("expected x to be gone after reset")
	}
	f.out.Reset()
	if _, err := f.shell.Command(ctx, ":load prog.py"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := f.out.String(); got != "42\n" {
		t.Fatalf("expected 42 after load, got %q", got)
	}
	if _, err := f.shell.Command(ctx, ":load missing.py"); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := f.shell.Command(ctx, ":save"); err == nil {
		t.Fatalf("expected usage error")
	}
}

func TestSaveSeparatesIncrements(t *testing.T) {
	f := newFixture(t, nil)
	f.files["lib.py"] = "y: int = 1"
	ctx := context.Background()
	if _, err := f.shell.Command(ctx, ":load lib.py"); err != nil {
		t.Fatalf("load: %v", err)
	}
	f.run(t, "y + 1")
	if _, err := f.shell.Command(ctx, ":save all.py"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := f.files["all.py"]; got != "y: int = 1\ny + 1\n" {
		t.Fatalf("unexpected saved source %q", got)
	}
}

func TestHistoryFromTranscript(t *testing.T) {
	store, err := transcript.Open(":memory:", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	f := newFixture(t, store)
	f.run(t, "print(3)", "1 // 0")

	entries, err := store.Session(context.Background(), f.shell.SessionID())
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Result != "None" || len(entries[0].Output) != 1 || entries[0].Output[0] != "3" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Error != "RUNTIME ERROR: integer divide by zero" {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}

	f.out.Reset()
	if _, err := f.shell.Command(context.Background(), ":history"); err != nil {
		t.Fatalf("history: %v", err)
	}
	out := f.out.String()
	if !strings.Contains(out, "[1]") || !strings.Contains(out, "print(3)") || !strings.Contains(out, "=> RUNTIME ERROR") {
		t.Fatalf("unexpected history output %q", out)
	}
}

func TestDump(t *testing.T) {
	f := newFixture(t, nil)
	f.run(t, "1 + 2")
	f.out.Reset()
	if _, err := f.shell.Command(context.Background(), ":dump"); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(f.out.String(), "i32.add") {
		t.Fatalf("expected disassembly, got %q", f.out.String())
	}
}

func TestOpensBlock(t *testing.T) {
	cases := map[string]bool{
		"if x:":              true,
		"while i < 3:  # go": true,
		"x: int = 1":         false,
		"print(1)":           false,
		"# only a comment:":  false,
	}
	for line, want := range cases {
		if got := opensBlock(line); got != want {
			t.Fatalf("%q: expected %v, got %v", line, want, got)
		}
	}
}
