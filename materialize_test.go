package wasmrepl

import (
	"bytes"
	"testing"

	"github.com/kr/pretty"
	"github.com/pkg/errors"
)

func pointEnv() *TypeEnv {
	env := NewTypeEnv()
	env.AddClass(&ClassLayout{Name: "Point", Fields: []Field{
		{Name: "x", Type: NumberType},
		{Name: "y", Type: NumberType},
	}})
	return env
}

func nodeEnv() *TypeEnv {
	env := NewTypeEnv()
	env.AddClass(&ClassLayout{Name: "Node", Fields: []Field{
		{Name: "value", Type: NumberType},
		{Name: "next", Type: ClassType("Node")},
	}})
	return env
}

// writeNode stores a Node at addr.
func writeNode(t *testing.T, mem ByteMemory, addr uint32, value int32, next uint32) {
	t.Helper()
	if !mem.WriteUint32Le(addr, uint32(value)) || !mem.WriteUint32Le(addr+4, next) {
		t.Fatalf("node at %d does not fit in %d bytes", addr, len(mem))
	}
}

func assertNodes(t *testing.T, got, want []FieldNode) {
	t.Helper()
	if diff := pretty.Diff(got, want); len(diff) != 0 {
		t.Fatalf("materialized tree differs:\n%s", diff)
	}
}

func TestMaterializePrimitives(t *testing.T) {
	mem := make(ByteMemory, 64)
	for _, v := range []Value{Num(0), Num(-3), Bool(true), Bool(false), None()} {
		nodes, err := Materialize(v, mem, pointEnv())
		if err != nil {
			t.Fatalf("materialize %v: %v", v, err)
		}
		if nodes == nil || len(nodes) != 0 {
			t.Fatalf("expected empty list for %v, got %#v", v, nodes)
		}
	}
}

func TestMaterializePoint(t *testing.T) {
	mem := make(ByteMemory, 256)
	mem.WriteUint32Le(100, 3)
	mem.WriteUint32Le(104, 4)

	nodes, err := Materialize(Object("Point", 100), mem, pointEnv())
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	assertNodes(t, nodes, []FieldNode{
		{Field: "address", Value: Num(100)},
		{Field: "x", Value: Num(3)},
		{Field: "y", Value: Num(4)},
	})
}

func TestMaterializeFieldCount(t *testing.T) {
	env := NewTypeEnv()
	env.AddClass(&ClassLayout{Name: "Empty"})
	env.AddClass(&ClassLayout{Name: "Mixed", Fields: []Field{
		{Name: "n", Type: NumberType},
		{Name: "b", Type: BoolType},
		{Name: "z", Type: NoneType},
		{Name: "o", Type: ClassType("Empty")},
	}})
	mem := make(ByteMemory, 128)
	mem.WriteUint32Le(32, 7)
	mem.WriteUint32Le(36, 2)
	mem.WriteUint32Le(40, 99)

	nodes, err := Materialize(Object("Mixed", 32), mem, env)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	assertNodes(t, nodes, []FieldNode{
		{Field: "address", Value: Num(32)},
		{Field: "n", Value: Num(7)},
		{Field: "b", Value: Bool(true)},
		{Field: "z", Value: None()},
		{Field: "o", Value: None()},
	})

	nodes, err = Materialize(Object("Empty", 8), mem, env)
	if err != nil {
		t.Fatalf("materialize empty: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Field != AddressField {
		t.Fatalf("expected only the address leaf, got %#v", nodes)
	}
}

func TestMaterializeChain(t *testing.T) {
	mem := make(ByteMemory, 64)
	writeNode(t, mem, 16, 1, 32)
	writeNode(t, mem, 32, 2, 0)

	nodes, err := Materialize(Object("Node", 16), mem, nodeEnv())
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	assertNodes(t, nodes, []FieldNode{
		{Field: "address", Value: Num(16)},
		{Field: "value", Value: Num(1)},
		{Field: "next", Value: Object("Node", 32), Branch: true, Children: []FieldNode{
			{Field: "address", Value: Num(32)},
			{Field: "value", Value: Num(2)},
			{Field: "next", Value: None()},
		}},
	})
}

func TestMaterializeLongChain(t *testing.T) {
	const length = 1000
	mem := make(ByteMemory, 16+8*length)
	for i := 0; i < length; i++ {
		addr := uint32(16 + 8*i)
		next := addr + 8
		if i == length-1 {
			next = 0
		}
		writeNode(t, mem, addr, int32(i), next)
	}

	nodes, err := Materialize(Object("Node", 16), mem, nodeEnv())
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	count := 0
	for {
		count++
		if got := nodes[1].Value.Num; got != int32(count-1) {
			t.Fatalf("node %d: expected value %d, got %d", count, count-1, got)
		}
		if !nodes[2].Branch {
			break
		}
		nodes = nodes[2].Children
	}
	if count != length {
		t.Fatalf("expected %d nodes, got %d", length, count)
	}

	_, err = MaterializeDepth(Object("Node", 16), mem, nodeEnv(), 10)
	if !errors.Is(err, ErrDepthExceeded) {
		t.Fatalf("expected depth error, got %v", err)
	}
}

func TestMaterializeCycle(t *testing.T) {
	mem := make(ByteMemory, 64)
	writeNode(t, mem, 16, 1, 24)
	writeNode(t, mem, 24, 2, 16)

	_, err := Materialize(Object("Node", 16), mem, nodeEnv())
	if !errors.Is(err, ErrCyclicGraph) {
		t.Fatalf("expected cyclic graph error, got %v", err)
	}
	var lerr *LayoutError
	if !errors.As(err, &lerr) || lerr.Address != 16 || lerr.Class != "Node" {
		t.Fatalf("expected layout error at Node 16, got %#v", err)
	}
}

func TestMaterializeSharedSubobject(t *testing.T) {
	env := nodeEnv()
	env.AddClass(&ClassLayout{Name: "Pair", Fields: []Field{
		{Name: "a", Type: ClassType("Node")},
		{Name: "b", Type: ClassType("Node")},
	}})
	mem := make(ByteMemory, 64)
	writeNode(t, mem, 16, 5, 0)
	mem.WriteUint32Le(32, 16)
	mem.WriteUint32Le(36, 16)

	nodes, err := Materialize(Object("Pair", 32), mem, env)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if len(nodes) != 3 || !nodes[1].Branch || !nodes[2].Branch {
		t.Fatalf("expected two branches, got %# v", pretty.Formatter(nodes))
	}
}

func TestMaterializeLayoutErrors(t *testing.T) {
	mem := make(ByteMemory, 256)

	_, err := Materialize(Object("Ghost", 8), mem, pointEnv())
	if !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("expected unknown class, got %v", err)
	}

	_, err = Materialize(Object("Point", 252), mem, pointEnv())
	var lerr *LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != ErrOutOfBounds {
		t.Fatalf("expected out of bounds, got %v", err)
	}
	if lerr.Field != "y" || lerr.Address != 256 {
		t.Fatalf("expected y at 256, got %s at %d", lerr.Field, lerr.Address)
	}
	if got := lerr.Error(); got != "address out of bounds: Point.y at 256" {
		t.Fatalf("unexpected message %q", got)
	}

	_, err = Materialize(Object("Point", 0xFFFFFFFC), mem, pointEnv())
	if !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected out of bounds near the top of the address space, got %v", err)
	}

	env := nodeEnv()
	env.AddClass(&ClassLayout{Name: "Holder", Fields: []Field{{Name: "ghost", Type: ClassType("Ghost")}}})
	mem.WriteUint32Le(64, 16)
	_, err = Materialize(Object("Holder", 64), mem, env)
	if !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("expected unknown nested class, got %v", err)
	}

	_, err = Materialize(Object("Point", 8), mem, nil)
	if !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("expected unknown class without an environment, got %v", err)
	}
}

func TestMaterializeDoesNotWrite(t *testing.T) {
	mem := make(ByteMemory, 64)
	writeNode(t, mem, 16, 1, 32)
	writeNode(t, mem, 32, 2, 0)
	before := append(ByteMemory(nil), mem...)
	if _, err := Materialize(Object("Node", 16), mem, nodeEnv()); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if !bytes.Equal(before, mem) {
		t.Fatalf("memory changed during materialization")
	}
}
