package wasm

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Disassembler formats function bodies as a readable assembly-style dump.
type Disassembler struct {
	w       io.Writer
	printed bool
}

// NewDisassembler constructs a disassembler that writes to w.
func NewDisassembler(w io.Writer) *Disassembler {
	return &Disassembler{w: w}
}

// DisassembleModule dumps every defined function of m.
func (d *Disassembler) DisassembleModule(m *Module) error {
	for i, f := range m.Funcs {
		idx := uint32(m.ImportedFuncs() + i)
		if err := d.DisassembleFunc(m, idx, f); err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	return nil
}

// DisassembleFunc dumps one function. m resolves call targets.
func (d *Disassembler) DisassembleFunc(m *Module, idx uint32, f *Func) error {
	if f == nil || f.Body == nil {
		return fmt.Errorf("nil function")
	}
	d.startSection()
	name := f.Name
	if name == "" {
		name = fmt.Sprintf("func[%d]", idx)
	}
	fmt.Fprintf(d.w, "func %s [%d] (params=%d, locals=%d)\n", name, idx, f.Params, f.NumLocals)

	code := f.Body.Code
	depth := 1
	for ip := 0; ip < len(code); {
		offset := ip
		op := code[ip]
		ip++
		line := lineForOffset(f.Body.Lines, offset)
		lineStr := "-"
		if line > 0 {
			lineStr = strconv.Itoa(line)
		}
		operands, err := decodeOperands(m, op, code, &ip)
		if err != nil {
			return err
		}
		if op == OP_END || op == OP_ELSE {
			depth--
		}
		indent := strings.Repeat("  ", max(depth-1, 0))
		fmt.Fprintf(d.w, "%04d %4s %s%-12s", offset, lineStr, indent, opName(op))
		if operands != "" {
			fmt.Fprintf(d.w, " %s", operands)
		}
		fmt.Fprintln(d.w)
		switch op {
		case OP_BLOCK, OP_LOOP, OP_IF, OP_ELSE:
			depth++
		}
	}
	return nil
}

func (d *Disassembler) startSection() {
	if d.printed {
		fmt.Fprintln(d.w)
	}
	d.printed = true
}

func decodeOperands(m *Module, op byte, code []byte, ip *int) (string, error) {
	switch op {
	case OP_BLOCK, OP_LOOP, OP_IF:
		bt, err := readU8(code, ip)
		if err != nil {
			return "", err
		}
		if bt == TYPE_I32 {
			return "(result i32)", nil
		}
		return "", nil
	case OP_BR, OP_BR_IF, OP_LOCAL_GET, OP_LOCAL_SET, OP_LOCAL_TEE:
		v, err := readULEB128(code, ip)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(v, 10), nil
	case OP_CALL:
		v, err := readULEB128(code, ip)
		if err != nil {
			return "", err
		}
		if m == nil {
			return strconv.FormatUint(v, 10), nil
		}
		return fmt.Sprintf("%d ; %s", v, m.FuncName(uint32(v))), nil
	case OP_I32_CONST:
		v, err := readSLEB128(code, ip)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(v, 10), nil
	case OP_I32_LOAD, OP_I32_STORE:
		if _, err := readULEB128(code, ip); err != nil {
			return "", err
		}
		off, err := readULEB128(code, ip)
		if err != nil {
			return "", err
		}
		if off == 0 {
			return "", nil
		}
		return "offset=" + strconv.FormatUint(off, 10), nil
	case OP_MEMORY_SIZE, OP_MEMORY_GROW:
		_, err := readU8(code, ip)
		return "", err
	default:
		if _, ok := opNames[op]; !ok {
			return "", fmt.Errorf("unknown opcode 0x%02X at %d", op, *ip-1)
		}
		return "", nil
	}
}

func opName(op byte) string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op_0x%02X", op)
}

func lineForOffset(lines []LineInfo, offset int) int {
	line := 0
	for _, info := range lines {
		if info.Offset > offset {
			break
		}
		line = info.Line
	}
	return line
}

func readU8(code []byte, ip *int) (byte, error) {
	if *ip >= len(code) {
		return 0, fmt.Errorf("unexpected end of code")
	}
	val := code[*ip]
	*ip = *ip + 1
	return val, nil
}
