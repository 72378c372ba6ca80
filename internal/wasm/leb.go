package wasm

import "fmt"

// AppendULEB128 appends v in unsigned LEB128 form.
func AppendULEB128(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

// AppendSLEB128 appends v in signed LEB128 form.
func AppendSLEB128(buf []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		buf = append(buf, b)
		if done {
			return buf
		}
	}
}

func readULEB128(code []byte, ip *int) (uint64, error) {
	var result uint64
	var shift uint
	for {
		if *ip >= len(code) {
			return 0, fmt.Errorf("unexpected end of code")
		}
		b := code[*ip]
		*ip = *ip + 1
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, fmt.Errorf("LEB128 value too long")
		}
	}
}

func readSLEB128(code []byte, ip *int) (int64, error) {
	var result int64
	var shift uint
	for {
		if *ip >= len(code) {
			return 0, fmt.Errorf("unexpected end of code")
		}
		b := code[*ip]
		*ip = *ip + 1
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
		if shift >= 64 {
			return 0, fmt.Errorf("LEB128 value too long")
		}
	}
}
