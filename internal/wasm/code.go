package wasm

// LineInfo maps a code offset to a source line (start-inclusive).
type LineInfo struct {
	Offset int
	Line   int
}

// CodeWriter accumulates the instruction stream of one function body. The
// final end opcode is added by the module encoder.
type CodeWriter struct {
	Code  []byte
	Lines []LineInfo
}

// SetLine records that the following instructions come from line.
func (w *CodeWriter) SetLine(line int) {
	if line <= 0 {
		return
	}
	if n := len(w.Lines); n > 0 && w.Lines[n-1].Line == line {
		return
	}
	w.Lines = append(w.Lines, LineInfo{Offset: len(w.Code), Line: line})
}

// Op emits a bare opcode.
func (w *CodeWriter) Op(op byte) {
	w.Code = append(w.Code, op)
}

func (w *CodeWriter) opU32(op byte, v uint32) {
	w.Code = append(w.Code, op)
	w.Code = AppendULEB128(w.Code, uint64(v))
}

func (w *CodeWriter) I32Const(v int32) {
	w.Code = append(w.Code, OP_I32_CONST)
	w.Code = AppendSLEB128(w.Code, int64(v))
}

func (w *CodeWriter) LocalGet(idx uint32) { w.opU32(OP_LOCAL_GET, idx) }
func (w *CodeWriter) LocalSet(idx uint32) { w.opU32(OP_LOCAL_SET, idx) }
func (w *CodeWriter) LocalTee(idx uint32) { w.opU32(OP_LOCAL_TEE, idx) }
func (w *CodeWriter) Call(idx uint32)     { w.opU32(OP_CALL, idx) }
func (w *CodeWriter) Br(depth uint32)     { w.opU32(OP_BR, depth) }
func (w *CodeWriter) BrIf(depth uint32)   { w.opU32(OP_BR_IF, depth) }

// Load emits i32.load with 4-byte alignment at the given static offset.
func (w *CodeWriter) Load(offset uint32) {
	w.Code = append(w.Code, OP_I32_LOAD, 2)
	w.Code = AppendULEB128(w.Code, uint64(offset))
}

// Store emits i32.store with 4-byte alignment at the given static offset.
func (w *CodeWriter) Store(offset uint32) {
	w.Code = append(w.Code, OP_I32_STORE, 2)
	w.Code = AppendULEB128(w.Code, uint64(offset))
}

func (w *CodeWriter) MemorySize() { w.Code = append(w.Code, OP_MEMORY_SIZE, 0x00) }
func (w *CodeWriter) MemoryGrow() { w.Code = append(w.Code, OP_MEMORY_GROW, 0x00) }

// Block opens a block with the given block type (BLOCK_EMPTY or TYPE_I32).
func (w *CodeWriter) Block(bt byte) { w.Code = append(w.Code, OP_BLOCK, bt) }
func (w *CodeWriter) Loop(bt byte)  { w.Code = append(w.Code, OP_LOOP, bt) }
func (w *CodeWriter) If(bt byte)    { w.Code = append(w.Code, OP_IF, bt) }
func (w *CodeWriter) Else()         { w.Code = append(w.Code, OP_ELSE) }
func (w *CodeWriter) End()          { w.Code = append(w.Code, OP_END) }
