package wasmrepl

import (
	"math"

	"github.com/xirelogy/go-wasmrepl/internal/types"
)

// AddressField is the name of the synthetic leaf that leads every
// materialized object.
const AddressField = "address"

// FieldNode is one entry of a materialized object. A leaf holds a primitive
// Value. A branch holds the nested object in Value and its expansion in
// Children. A class-typed field that holds None is a leaf, so an object has
// at most one branch per class-typed field.
type FieldNode struct {
	Field    string
	Value    Value
	Branch   bool
	Children []FieldNode
}

// Materialize expands an object value into its fields by reading mem
// according to env. Primitive values expand to an empty list. mem is never
// written.
func Materialize(v Value, mem Memory, env *TypeEnv) ([]FieldNode, error) {
	return MaterializeDepth(v, mem, env, DefaultConfig().MaxDepth)
}

// MaterializeDepth is Materialize with an explicit bound on the nesting of
// objects.
func MaterializeDepth(v Value, mem Memory, env *TypeEnv, maxDepth int) ([]FieldNode, error) {
	if v.Kind != KindObject {
		return []FieldNode{}, nil
	}
	m := &materializer{
		mem:      mem,
		env:      env,
		maxDepth: maxDepth,
		onPath:   make(map[uint32]bool),
	}
	return m.object(v, 0)
}

type materializer struct {
	mem      Memory
	env      *TypeEnv
	maxDepth int
	// onPath holds the addresses of the objects being expanded above the
	// current one. Shared substructure is fine; revisiting an ancestor is not.
	onPath map[uint32]bool
}

func (m *materializer) object(v Value, depth int) ([]FieldNode, error) {
	if m.env == nil {
		return nil, &LayoutError{Kind: ErrUnknownClass, Class: v.Class, Address: v.Address}
	}
	layout, ok := m.env.Class(v.Class)
	if !ok {
		return nil, &LayoutError{Kind: ErrUnknownClass, Class: v.Class, Address: v.Address}
	}
	if depth >= m.maxDepth {
		return nil, &LayoutError{Kind: ErrDepthExceeded, Class: v.Class, Address: v.Address}
	}
	if m.onPath[v.Address] {
		return nil, &LayoutError{Kind: ErrCyclicGraph, Class: v.Class, Address: v.Address}
	}
	m.onPath[v.Address] = true
	defer delete(m.onPath, v.Address)

	nodes := make([]FieldNode, 0, len(layout.Fields)+1)
	nodes = append(nodes, FieldNode{Field: AddressField, Value: Num(int32(v.Address))})

	index := uint64(v.Address / 4)
	for _, f := range layout.Fields {
		offset := index * 4
		index++
		if offset > math.MaxUint32 {
			return nil, &LayoutError{Kind: ErrOutOfBounds, Class: v.Class, Field: f.Name, Address: v.Address}
		}
		word, ok := m.mem.ReadUint32Le(uint32(offset))
		if !ok {
			return nil, &LayoutError{Kind: ErrOutOfBounds, Class: v.Class, Field: f.Name, Address: uint32(offset)}
		}
		node, err := m.field(f, word, depth)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (m *materializer) field(f types.Field, word uint32, depth int) (FieldNode, error) {
	switch f.Type.Tag {
	case types.TagNumber:
		return FieldNode{Field: f.Name, Value: Num(int32(word))}, nil
	case types.TagBool:
		return FieldNode{Field: f.Name, Value: Bool(word != 0)}, nil
	case types.TagNone:
		return FieldNode{Field: f.Name, Value: None()}, nil
	case types.TagClass:
		if word == 0 {
			return FieldNode{Field: f.Name, Value: None()}, nil
		}
		nested := Object(f.Type.Name, word)
		children, err := m.object(nested, depth+1)
		if err != nil {
			return FieldNode{}, err
		}
		return FieldNode{Field: f.Name, Value: nested, Branch: true, Children: children}, nil
	default:
		return FieldNode{}, &LayoutError{Kind: ErrUnknownClass, Class: f.Type.String(), Field: f.Name}
	}
}
