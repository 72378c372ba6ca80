package shell

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"go.uber.org/zap"
)

const (
	colorError = "\x1b[31m"
	colorValue = "\x1b[32m"
	colorReset = "\x1b[0m"
)

const historyFile = ".wasmrepl_history"

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (sh *Shell) paint(color, s string) string {
	if !sh.opts.Color {
		return s
	}
	return color + s + colorReset
}

// Interactive runs the shell on the process terminal with line editing
// and a persistent history file in the home directory.
func (sh *Shell) Interactive(ctx context.Context) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetMultiLineMode(true)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		f, err := os.Create(histPath)
		if err != nil {
			sh.logger.Warn("history not saved", zap.Error(err))
			return
		}
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}()

	return sh.Loop(ctx, &interruptible{ln})
}

// interruptible maps Ctrl-C on an empty prompt to end of input.
type interruptible struct {
	*liner.State
}

func (r *interruptible) Prompt(p string) (string, error) {
	line, err := r.State.Prompt(p)
	if err == liner.ErrPromptAborted {
		return "", io.EOF
	}
	return line, err
}
