package wasm

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

func TestLEB128(t *testing.T) {
	if got := AppendULEB128(nil, 624485); !bytes.Equal(got, []byte{0xE5, 0x8E, 0x26}) {
		t.Fatalf("unexpected ULEB128 encoding % X", got)
	}
	if got := AppendSLEB128(nil, -123456); !bytes.Equal(got, []byte{0xC0, 0xBB, 0x78}) {
		t.Fatalf("unexpected SLEB128 encoding % X", got)
	}
	for _, v := range []int64{0, 63, 64, -64, -65, 2147483647, -2147483648} {
		buf := AppendSLEB128(nil, v)
		ip := 0
		got, err := readSLEB128(buf, &ip)
		if err != nil || got != v || ip != len(buf) {
			t.Fatalf("SLEB128 %d: got %d (err %v, consumed %d of %d)", v, got, err, ip, len(buf))
		}
	}
}

func TestMemoryModuleBytes(t *testing.T) {
	got := MemoryModule("memory", Limits{Min: 1, Max: 4, HasMax: true})
	want := []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		SECTION_MEMORY, 0x04, 0x01, 0x01, 0x01, 0x04,
		SECTION_EXPORT, 0x0A, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', EXT_MEMORY, 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("expected % X, got % X", want, got)
	}
}

func TestTypeIndexDedup(t *testing.T) {
	m := NewModule()
	a := m.TypeIndex(1, 1)
	b := m.TypeIndex(2, 1)
	c := m.TypeIndex(1, 1)
	if a != c || a == b || len(m.Types) != 2 {
		t.Fatalf("expected 2 distinct types, got %v", m.Types)
	}
}

func TestImportAfterFuncPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	m := NewModule()
	m.AddFunc("f", 0, 1)
	m.ImportFunc("env", "g", 0, 1)
}

func buildCounter() *Module {
	m := NewModule()
	m.ImportMemory("js", "memory", Limits{Min: 1, Max: 2, HasMax: true})
	// add(a, b) = a + b, stored at address 8 as a side effect
	idx, f := m.AddFunc("add", 2, 1)
	f.NumLocals = 1
	w := f.Body
	w.SetLine(1)
	w.I32Const(8)
	w.LocalGet(0)
	w.LocalGet(1)
	w.Op(OP_I32_ADD)
	w.LocalTee(2)
	w.Store(0)
	w.LocalGet(2)
	m.Export("add", EXT_FUNC, idx)

	// loop decrementing n to zero, returns iterations
	idx, f = m.AddFunc("count", 1, 1)
	f.NumLocals = 1
	w = f.Body
	w.Block(BLOCK_EMPTY)
	w.Loop(BLOCK_EMPTY)
	w.LocalGet(0)
	w.I32Const(0)
	w.Op(OP_I32_LE_S)
	w.BrIf(1)
	w.LocalGet(0)
	w.I32Const(1)
	w.Op(OP_I32_SUB)
	w.LocalSet(0)
	w.LocalGet(1)
	w.I32Const(1)
	w.Op(OP_I32_ADD)
	w.LocalSet(1)
	w.Br(0)
	w.End()
	w.End()
	w.LocalGet(1)
	m.Export("count", EXT_FUNC, idx)
	return m
}

func TestEncodedModuleRuns(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer r.Close(ctx)

	memMod, err := r.InstantiateWithConfig(ctx,
		MemoryModule("memory", Limits{Min: 1, Max: 2, HasMax: true}),
		wazero.NewModuleConfig().WithName("js"))
	if err != nil {
		t.Fatalf("instantiate memory: %v", err)
	}

	mod, err := r.InstantiateWithConfig(ctx, buildCounter().Encode(), wazero.NewModuleConfig().WithName("counter"))
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	res, err := mod.ExportedFunction("add").Call(ctx, api.EncodeI32(40), api.EncodeI32(2))
	if err != nil {
		t.Fatalf("call add: %v", err)
	}
	if got := api.DecodeI32(res[0]); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if word, ok := memMod.Memory().ReadUint32Le(8); !ok || word != 42 {
		t.Fatalf("expected 42 stored in shared memory, got %d", word)
	}
	res, err = mod.ExportedFunction("count").Call(ctx, api.EncodeI32(5))
	if err != nil {
		t.Fatalf("call count: %v", err)
	}
	if got := api.DecodeI32(res[0]); got != 5 {
		t.Fatalf("expected 5 iterations, got %d", got)
	}
}

func TestDisassemble(t *testing.T) {
	m := NewModule()
	m.ImportFunc("imports", "print_num", 1, 1)
	_, f := m.AddFunc("run", 0, 1)
	f.Body.SetLine(3)
	f.Body.I32Const(-7)
	f.Body.Call(0)

	var buf bytes.Buffer
	if err := NewDisassembler(&buf).DisassembleModule(m); err != nil {
		t.Fatalf("disassemble: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"func run [1]", "i32.const", "-7", "call", "imports.print_num", "   3 "} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	bad := &Func{Name: "bad", Body: &CodeWriter{Code: []byte{0xFE}}}
	if err := NewDisassembler(&buf).DisassembleFunc(m, 9, bad); err == nil {
		t.Fatalf("expected error for unknown opcode")
	}
}
