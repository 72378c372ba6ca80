package wasm

// Instruction opcodes used by the code generator. Values are fixed by the
// WebAssembly binary format.
const (
	OP_UNREACHABLE byte = 0x00
	OP_NOP         byte = 0x01
	OP_BLOCK       byte = 0x02
	OP_LOOP        byte = 0x03
	OP_IF          byte = 0x04
	OP_ELSE        byte = 0x05
	OP_END         byte = 0x0B
	OP_BR          byte = 0x0C
	OP_BR_IF       byte = 0x0D
	OP_RETURN      byte = 0x0F
	OP_CALL        byte = 0x10
	OP_DROP        byte = 0x1A
	OP_SELECT      byte = 0x1B

	OP_LOCAL_GET byte = 0x20
	OP_LOCAL_SET byte = 0x21
	OP_LOCAL_TEE byte = 0x22

	OP_I32_LOAD    byte = 0x28
	OP_I32_STORE   byte = 0x36
	OP_MEMORY_SIZE byte = 0x3F
	OP_MEMORY_GROW byte = 0x40

	OP_I32_CONST byte = 0x41

	OP_I32_EQZ  byte = 0x45
	OP_I32_EQ   byte = 0x46
	OP_I32_NE   byte = 0x47
	OP_I32_LT_S byte = 0x48
	OP_I32_LT_U byte = 0x49
	OP_I32_GT_S byte = 0x4A
	OP_I32_GT_U byte = 0x4B
	OP_I32_LE_S byte = 0x4C
	OP_I32_LE_U byte = 0x4D
	OP_I32_GE_S byte = 0x4E
	OP_I32_GE_U byte = 0x4F

	OP_I32_ADD   byte = 0x6A
	OP_I32_SUB   byte = 0x6B
	OP_I32_MUL   byte = 0x6C
	OP_I32_DIV_S byte = 0x6D
	OP_I32_DIV_U byte = 0x6E
	OP_I32_REM_S byte = 0x6F
	OP_I32_REM_U byte = 0x70
	OP_I32_AND   byte = 0x71
	OP_I32_OR    byte = 0x72
	OP_I32_XOR   byte = 0x73
	OP_I32_SHL   byte = 0x74
	OP_I32_SHR_S byte = 0x75
	OP_I32_SHR_U byte = 0x76
)

// Value and block types.
const (
	TYPE_I32    byte = 0x7F
	TYPE_FUNC   byte = 0x60
	BLOCK_EMPTY byte = 0x40
)

// External kinds for imports and exports.
const (
	EXT_FUNC   byte = 0x00
	EXT_TABLE  byte = 0x01
	EXT_MEMORY byte = 0x02
	EXT_GLOBAL byte = 0x03
)

// Section ids, in the order they must appear.
const (
	SECTION_CUSTOM   byte = 0
	SECTION_TYPE     byte = 1
	SECTION_IMPORT   byte = 2
	SECTION_FUNCTION byte = 3
	SECTION_MEMORY   byte = 5
	SECTION_EXPORT   byte = 7
	SECTION_CODE     byte = 10
)

// PageSize is the size of one linear memory page in bytes.
const PageSize = 65536

var opNames = map[byte]string{
	OP_UNREACHABLE: "unreachable",
	OP_NOP:         "nop",
	OP_BLOCK:       "block",
	OP_LOOP:        "loop",
	OP_IF:          "if",
	OP_ELSE:        "else",
	OP_END:         "end",
	OP_BR:          "br",
	OP_BR_IF:       "br_if",
	OP_RETURN:      "return",
	OP_CALL:        "call",
	OP_DROP:        "drop",
	OP_SELECT:      "select",
	OP_LOCAL_GET:   "local.get",
	OP_LOCAL_SET:   "local.set",
	OP_LOCAL_TEE:   "local.tee",
	OP_I32_LOAD:    "i32.load",
	OP_I32_STORE:   "i32.store",
	OP_MEMORY_SIZE: "memory.size",
	OP_MEMORY_GROW: "memory.grow",
	OP_I32_CONST:   "i32.const",
	OP_I32_EQZ:     "i32.eqz",
	OP_I32_EQ:      "i32.eq",
	OP_I32_NE:      "i32.ne",
	OP_I32_LT_S:    "i32.lt_s",
	OP_I32_LT_U:    "i32.lt_u",
	OP_I32_GT_S:    "i32.gt_s",
	OP_I32_GT_U:    "i32.gt_u",
	OP_I32_LE_S:    "i32.le_s",
	OP_I32_LE_U:    "i32.le_u",
	OP_I32_GE_S:    "i32.ge_s",
	OP_I32_GE_U:    "i32.ge_u",
	OP_I32_ADD:     "i32.add",
	OP_I32_SUB:     "i32.sub",
	OP_I32_MUL:     "i32.mul",
	OP_I32_DIV_S:   "i32.div_s",
	OP_I32_DIV_U:   "i32.div_u",
	OP_I32_REM_S:   "i32.rem_s",
	OP_I32_REM_U:   "i32.rem_u",
	OP_I32_AND:     "i32.and",
	OP_I32_OR:      "i32.or",
	OP_I32_XOR:     "i32.xor",
	OP_I32_SHL:     "i32.shl",
	OP_I32_SHR_S:   "i32.shr_s",
	OP_I32_SHR_U:   "i32.shr_u",
}
