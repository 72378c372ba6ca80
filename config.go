package wasmrepl

import (
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xirelogy/go-wasmrepl/internal/compiler"
	"github.com/xirelogy/go-wasmrepl/internal/wasm"
)

// maxMemoryPages is the largest 32-bit linear memory.
const maxMemoryPages = 65536

// Config controls the resources of a Session.
type Config struct {
	// InitialPages and MaxPages bound the linear memory, in 64KiB pages.
	InitialPages uint32
	MaxPages     uint32
	// MaxGlobals is the number of global variable words reserved below the
	// heap.
	MaxGlobals int
	// MaxDepth bounds object nesting when inspecting values.
	MaxDepth int
	// Logger receives session diagnostics. Nil disables logging.
	Logger *zap.Logger
	// Output, when set, receives every printed line as it is produced.
	Output io.Writer
}

// DefaultConfig returns the configuration used for zero fields.
func DefaultConfig() Config {
	return Config{
		InitialPages: 1,
		MaxPages:     64,
		MaxGlobals:   1024,
		MaxDepth:     10000,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.InitialPages == 0 {
		c.InitialPages = def.InitialPages
	}
	if c.MaxPages == 0 {
		c.MaxPages = def.MaxPages
	}
	if c.MaxGlobals == 0 {
		c.MaxGlobals = def.MaxGlobals
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = def.MaxDepth
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Validate checks that the memory limits are consistent and leave room for
// the global area.
func (c Config) Validate() error {
	if c.MaxPages > maxMemoryPages-1 {
		return errors.Errorf("max pages %d exceeds %d", c.MaxPages, maxMemoryPages-1)
	}
	if c.InitialPages > c.MaxPages {
		return errors.Errorf("initial pages %d exceeds max pages %d", c.InitialPages, c.MaxPages)
	}
	if c.MaxGlobals < 0 {
		return errors.New("max globals must not be negative")
	}
	if c.MaxDepth < 1 {
		return errors.New("max depth must be positive")
	}
	if start := uint64(compiler.HeapStart(c.MaxGlobals)); start > uint64(c.InitialPages)*wasm.PageSize {
		return errors.Errorf("%d globals do not fit in %d initial pages", c.MaxGlobals, c.InitialPages)
	}
	return nil
}

func (c Config) memoryLimits() wasm.Limits {
	return wasm.Limits{Min: c.InitialPages, Max: c.MaxPages, HasMax: true}
}
