// Package wasm builds WebAssembly binary modules. It covers the subset of
// the format the code generator needs: i32 functions, imported and defined
// memories, imports, exports and code.
package wasm

import "fmt"

// Magic and version of the binary format.
var header = []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

// FuncType is a function signature over i32 values.
type FuncType struct {
	Params  int
	Results int
}

// Limits bounds a memory in pages. HasMax is false for an unbounded memory.
type Limits struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// Import is a function or memory provided by another module.
type Import struct {
	Module string
	Name   string
	Kind   byte
	Type   uint32 // function type index, EXT_FUNC only
	Limits Limits // EXT_MEMORY only
}

// Export exposes a function or memory under a name.
type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

// Func is a function defined in the module.
type Func struct {
	Name      string
	Type      uint32
	Params    int
	NumLocals int // i32 locals beyond the parameters
	Body      *CodeWriter
}

// Module is an in-memory module under construction. All imported functions
// must be added before the first defined function.
type Module struct {
	Types   []FuncType
	Imports []Import
	Funcs   []*Func
	Memory  *Limits
	Exports []Export

	importedFuncs int
}

// NewModule creates an empty module.
func NewModule() *Module {
	return &Module{}
}

// TypeIndex returns the index of the signature, adding it when missing.
func (m *Module) TypeIndex(params, results int) uint32 {
	ft := FuncType{Params: params, Results: results}
	for i, t := range m.Types {
		if t == ft {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// ImportFunc adds a function import and returns its function index.
func (m *Module) ImportFunc(module, name string, params, results int) uint32 {
	if len(m.Funcs) > 0 {
		panic("wasm: function import after defined function")
	}
	m.Imports = append(m.Imports, Import{
		Module: module,
		Name:   name,
		Kind:   EXT_FUNC,
		Type:   m.TypeIndex(params, results),
	})
	m.importedFuncs++
	return uint32(m.importedFuncs - 1)
}

// ImportMemory adds a memory import.
func (m *Module) ImportMemory(module, name string, limits Limits) {
	m.Imports = append(m.Imports, Import{Module: module, Name: name, Kind: EXT_MEMORY, Limits: limits})
}

// DefineMemory gives the module its own memory.
func (m *Module) DefineMemory(limits Limits) {
	m.Memory = &limits
}

// AddFunc declares a function and returns its index. The body may be
// filled in later, which lets mutually recursive functions call each other.
func (m *Module) AddFunc(name string, params, results int) (uint32, *Func) {
	f := &Func{
		Name:   name,
		Type:   m.TypeIndex(params, results),
		Params: params,
		Body:   &CodeWriter{},
	}
	m.Funcs = append(m.Funcs, f)
	return uint32(m.importedFuncs + len(m.Funcs) - 1), f
}

// ImportedFuncs is the number of imported functions.
func (m *Module) ImportedFuncs() int {
	return m.importedFuncs
}

// FuncName returns a printable name for a function index.
func (m *Module) FuncName(idx uint32) string {
	if int(idx) < m.importedFuncs {
		n := 0
		for _, imp := range m.Imports {
			if imp.Kind != EXT_FUNC {
				continue
			}
			if n == int(idx) {
				return imp.Module + "." + imp.Name
			}
			n++
		}
	}
	local := int(idx) - m.importedFuncs
	if local >= 0 && local < len(m.Funcs) {
		return m.Funcs[local].Name
	}
	return fmt.Sprintf("func[%d]", idx)
}

// Export exposes an item of the module.
func (m *Module) Export(name string, kind byte, idx uint32) {
	m.Exports = append(m.Exports, Export{Name: name, Kind: kind, Index: idx})
}

// Encode serialises the module in binary form.
func (m *Module) Encode() []byte {
	out := append([]byte{}, header...)

	if len(m.Types) > 0 {
		var sec []byte
		sec = AppendULEB128(sec, uint64(len(m.Types)))
		for _, t := range m.Types {
			sec = append(sec, TYPE_FUNC)
			sec = appendI32Vec(sec, t.Params)
			sec = appendI32Vec(sec, t.Results)
		}
		out = appendSection(out, SECTION_TYPE, sec)
	}

	if len(m.Imports) > 0 {
		var sec []byte
		sec = AppendULEB128(sec, uint64(len(m.Imports)))
		for _, imp := range m.Imports {
			sec = appendName(sec, imp.Module)
			sec = appendName(sec, imp.Name)
			sec = append(sec, imp.Kind)
			switch imp.Kind {
			case EXT_FUNC:
				sec = AppendULEB128(sec, uint64(imp.Type))
			case EXT_MEMORY:
				sec = appendLimits(sec, imp.Limits)
			}
		}
		out = appendSection(out, SECTION_IMPORT, sec)
	}

	if len(m.Funcs) > 0 {
		var sec []byte
		sec = AppendULEB128(sec, uint64(len(m.Funcs)))
		for _, f := range m.Funcs {
			sec = AppendULEB128(sec, uint64(f.Type))
		}
		out = appendSection(out, SECTION_FUNCTION, sec)
	}

	if m.Memory != nil {
		var sec []byte
		sec = AppendULEB128(sec, 1)
		sec = appendLimits(sec, *m.Memory)
		out = appendSection(out, SECTION_MEMORY, sec)
	}

	if len(m.Exports) > 0 {
		var sec []byte
		sec = AppendULEB128(sec, uint64(len(m.Exports)))
		for _, e := range m.Exports {
			sec = appendName(sec, e.Name)
			sec = append(sec, e.Kind)
			sec = AppendULEB128(sec, uint64(e.Index))
		}
		out = appendSection(out, SECTION_EXPORT, sec)
	}

	if len(m.Funcs) > 0 {
		var sec []byte
		sec = AppendULEB128(sec, uint64(len(m.Funcs)))
		for _, f := range m.Funcs {
			var body []byte
			if f.NumLocals > 0 {
				body = AppendULEB128(body, 1)
				body = AppendULEB128(body, uint64(f.NumLocals))
				body = append(body, TYPE_I32)
			} else {
				body = AppendULEB128(body, 0)
			}
			body = append(body, f.Body.Code...)
			body = append(body, OP_END)
			sec = AppendULEB128(sec, uint64(len(body)))
			sec = append(sec, body...)
		}
		out = appendSection(out, SECTION_CODE, sec)
	}

	return out
}

func appendSection(out []byte, id byte, payload []byte) []byte {
	out = append(out, id)
	out = AppendULEB128(out, uint64(len(payload)))
	return append(out, payload...)
}

func appendName(out []byte, s string) []byte {
	out = AppendULEB128(out, uint64(len(s)))
	return append(out, s...)
}

func appendI32Vec(out []byte, n int) []byte {
	out = AppendULEB128(out, uint64(n))
	for i := 0; i < n; i++ {
		out = append(out, TYPE_I32)
	}
	return out
}

func appendLimits(out []byte, l Limits) []byte {
	if l.HasMax {
		out = append(out, 0x01)
		out = AppendULEB128(out, uint64(l.Min))
		return AppendULEB128(out, uint64(l.Max))
	}
	out = append(out, 0x00)
	return AppendULEB128(out, uint64(l.Min))
}

// MemoryModule returns a module that defines a memory and exports it under
// name, so other modules can import it.
func MemoryModule(name string, limits Limits) []byte {
	m := NewModule()
	m.DefineMemory(limits)
	m.Export(name, EXT_MEMORY, 0)
	return m.Encode()
}
