package wasmrepl

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrBusy is returned when an evaluation is started while another one
	// is in flight on the same session.
	ErrBusy = errors.New("session is busy; concurrent Run not allowed")
	// ErrClosed is returned by every operation on a closed session.
	ErrClosed = errors.New("session is closed")
	// ErrStaleValue is returned when inspecting an object produced before
	// the last reset.
	ErrStaleValue = errors.New("value belongs to a previous session memory")
)

// Layout violations reported by the materializer.
var (
	ErrUnknownClass  = errors.New("unknown class")
	ErrOutOfBounds   = errors.New("address out of bounds")
	ErrCyclicGraph   = errors.New("cyclic object graph")
	ErrDepthExceeded = errors.New("object graph too deep")
)

// CompileError reports source that was rejected before execution. Stage is
// one of "parse", "type" or "compile".
type CompileError struct {
	Stage    string
	Messages []string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s ERROR: %s", strings.ToUpper(e.Stage), strings.Join(e.Messages, "; "))
}

// RuntimeError is a trap raised while an increment was executing.
type RuntimeError struct {
	Message string
	Cause   error
}

func (e *RuntimeError) Error() string {
	return e.Message
}

func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// LayoutError reports memory contents that do not match the type
// environment. Kind is one of the materializer sentinels and matches with
// errors.Is.
type LayoutError struct {
	Kind    error
	Class   string
	Field   string
	Address uint32
}

func (e *LayoutError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Class != "" {
		b.WriteString(": ")
		b.WriteString(e.Class)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
	}
	fmt.Fprintf(&b, " at %d", e.Address)
	return b.String()
}

func (e *LayoutError) Unwrap() error {
	return e.Kind
}
