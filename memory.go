package wasmrepl

import "encoding/binary"

// Memory is a read-only view of a linear memory. wazero's api.Memory
// satisfies it.
type Memory interface {
	// ReadUint32Le reads the little-endian word at offset. ok is false when
	// the word is not fully inside the memory.
	ReadUint32Le(offset uint32) (uint32, bool)
	Size() uint32
}

// ByteMemory is a Memory over a plain byte slice.
type ByteMemory []byte

func (m ByteMemory) ReadUint32Le(offset uint32) (uint32, bool) {
	if uint64(offset)+4 > uint64(len(m)) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m[offset:]), true
}

func (m ByteMemory) Size() uint32 { return uint32(len(m)) }

// WriteUint32Le stores a little-endian word at offset.
func (m ByteMemory) WriteUint32Le(offset, v uint32) bool {
	if uint64(offset)+4 > uint64(len(m)) {
		return false
	}
	binary.LittleEndian.PutUint32(m[offset:], v)
	return true
}
