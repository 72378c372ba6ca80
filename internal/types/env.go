package types

import (
	"fmt"
	"sort"
)

// Field is one declared slot of a class layout. Init is the word a new
// instance starts with.
type Field struct {
	Name string
	Type Type
	Init int32
}

// FuncSig describes a compiled function or method and where it lives.
// Params includes the receiver for methods.
type FuncSig struct {
	Name   string
	Class  string
	Params []Type
	Return Type
	// Module is the name of the wasm module instance that exports the
	// function; Export is the export name inside it.
	Module string
	Export string
}

// ClassLayout is the ordered field list of a class. Field i lives in word
// i of the object.
type ClassLayout struct {
	Name    string
	Fields  []Field
	Methods map[string]*FuncSig
}

// FieldIndex returns the slot index of the named field.
func (c *ClassLayout) FieldIndex(name string) (int, bool) {
	for i, f := range c.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Words is the number of heap words an instance occupies.
func (c *ClassLayout) Words() int {
	if len(c.Fields) == 0 {
		return 1
	}
	return len(c.Fields)
}

// Global is a global variable bound to a fixed memory word.
type Global struct {
	Name    string
	Type    Type
	Address uint32
}

// Env is the static environment of a session: class layouts, globals and
// functions. A committed Env is never mutated; Extend returns a copy that
// the checker may grow.
type Env struct {
	classes    map[string]*ClassLayout
	globals    map[string]*Global
	funcs      map[string]*FuncSig
	globalBase uint32
	maxGlobals int
}

// NewEnv creates an empty environment whose globals are laid out from
// globalBase, one word each, up to maxGlobals.
func NewEnv(globalBase uint32, maxGlobals int) *Env {
	return &Env{
		classes:    make(map[string]*ClassLayout),
		globals:    make(map[string]*Global),
		funcs:      make(map[string]*FuncSig),
		globalBase: globalBase,
		maxGlobals: maxGlobals,
	}
}

// Extend returns a copy of env that can be modified without affecting env.
func (e *Env) Extend() *Env {
	out := NewEnv(e.globalBase, e.maxGlobals)
	for k, v := range e.classes {
		out.classes[k] = v
	}
	for k, v := range e.globals {
		out.globals[k] = v
	}
	for k, v := range e.funcs {
		out.funcs[k] = v
	}
	return out
}

// Class looks up a class layout.
func (e *Env) Class(name string) (*ClassLayout, bool) {
	c, ok := e.classes[name]
	return c, ok
}

// ClassNames returns the declared class names in sorted order.
func (e *Env) ClassNames() []string {
	names := make([]string, 0, len(e.classes))
	for name := range e.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Global looks up a global variable.
func (e *Env) Global(name string) (*Global, bool) {
	g, ok := e.globals[name]
	return g, ok
}

// Globals returns all globals ordered by address.
func (e *Env) Globals() []*Global {
	out := make([]*Global, 0, len(e.globals))
	for _, g := range e.globals {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Func looks up a top-level function.
func (e *Env) Func(name string) (*FuncSig, bool) {
	f, ok := e.funcs[name]
	return f, ok
}

// Declared reports whether name is already bound at the top level.
func (e *Env) Declared(name string) bool {
	if _, ok := e.classes[name]; ok {
		return true
	}
	if _, ok := e.globals[name]; ok {
		return true
	}
	_, ok := e.funcs[name]
	return ok
}

// AddClass binds a class layout.
func (e *Env) AddClass(c *ClassLayout) {
	e.classes[c.Name] = c
}

// AddFunc binds a top-level function.
func (e *Env) AddFunc(f *FuncSig) {
	e.funcs[f.Name] = f
}

// AddGlobal assigns the next free global word to name. It reports false
// when the global area is full.
func (e *Env) AddGlobal(name string, t Type) (*Global, bool) {
	if len(e.globals) >= e.maxGlobals {
		return nil, false
	}
	g := &Global{
		Name:    name,
		Type:    t,
		Address: e.globalBase + uint32(4*len(e.globals)),
	}
	e.globals[name] = g
	return g, true
}

// GlobalEnd is the first byte past the global area.
func (e *Env) GlobalEnd() uint32 {
	return e.globalBase + uint32(4*e.maxGlobals)
}

// Validate checks that every class-typed field names a class of the
// environment.
func (e *Env) Validate() error {
	for _, name := range e.ClassNames() {
		for _, f := range e.classes[name].Fields {
			if !f.Type.IsClass() {
				continue
			}
			if _, ok := e.classes[f.Type.Name]; !ok {
				return fmt.Errorf("class %s: field %s refers to undeclared class %s", name, f.Name, f.Type.Name)
			}
		}
	}
	return nil
}
