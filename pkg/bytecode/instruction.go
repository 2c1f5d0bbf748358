package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Instruction is a single decoded opcode plus its inline literal, already
// extended to a full 64-bit slot. Literal is meaningless (and always zero)
// for opcodes that do not carry one.
type Instruction struct {
	Opcode  Opcode
	Literal uint64
}

// DecodeError reports a failure to decode an instruction at a given offset.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at offset %d: %s", e.Offset, e.Reason)
}

// Decode reads a single instruction from code starting at offset. It returns
// the decoded instruction and the offset of the byte immediately following
// it (the "next offset"). Reserved opcodes decode successfully: they carry
// no literal and next == offset+1.
//
// Decode returns an error for a truncated literal (fewer bytes remain than
// the opcode's literal width requires) and for an offset outside
// [0, len(code)). Offset == len(code) is therefore reported as an "offset
// out of range" error; the engine treats that position as its normal halt
// signal and checks bounds before calling Decode, so it never sees it.
func Decode(code []byte, offset int) (Instruction, int, error) {
	if offset < 0 || offset >= len(code) {
		return Instruction{}, offset, &DecodeError{Offset: offset, Reason: "offset out of range"}
	}

	op := Opcode(code[offset])
	width := literalLen(op)
	litStart := offset + 1
	litEnd := litStart + width

	if litEnd > len(code) {
		return Instruction{}, offset, &DecodeError{Offset: offset, Reason: "truncated literal"}
	}

	var literal uint64
	if width > 0 {
		literal = extendLiteral(op, code[litStart:litEnd])
	}

	return Instruction{Opcode: op, Literal: literal}, litEnd, nil
}

// extendLiteral reads a big-endian literal of len(raw) bytes and extends it
// to 64 bits per the opcode's zero/sign-extension rule.
func extendLiteral(op Opcode, raw []byte) uint64 {
	var unsigned uint64
	var signed bool

	switch op {
	case OpPush8:
		unsigned = uint64(raw[0])
	case OpPush8S:
		unsigned = uint64(raw[0])
		signed = true
	case OpPush16:
		unsigned = uint64(binary.BigEndian.Uint16(raw))
	case OpPush16S:
		unsigned = uint64(binary.BigEndian.Uint16(raw))
		signed = true
	case OpPush32:
		unsigned = uint64(binary.BigEndian.Uint32(raw))
	case OpPush32S:
		unsigned = uint64(binary.BigEndian.Uint32(raw))
		signed = true
	case OpPush64:
		unsigned = binary.BigEndian.Uint64(raw)
	}

	if !signed {
		return unsigned
	}

	bits := uint(len(raw)) * 8
	signBit := uint64(1) << (bits - 1)
	if unsigned&signBit == 0 {
		return unsigned
	}
	// Sign-extend: set all bits above the literal's width.
	return unsigned | (^uint64(0) << bits)
}

// Encode produces the byte sequence for i: one opcode byte followed by the
// opcode's literal width worth of big-endian literal bytes (truncating
// Literal to that width). Opcodes with no literal width produce exactly one
// byte regardless of the value left in Literal.
func (i Instruction) Encode() []byte {
	width := literalLen(i.Opcode)
	out := make([]byte, 1+width)
	out[0] = byte(i.Opcode)

	switch width {
	case 0:
	case 1:
		out[1] = byte(i.Literal)
	case 2:
		binary.BigEndian.PutUint16(out[1:], uint16(i.Literal))
	case 4:
		binary.BigEndian.PutUint32(out[1:], uint32(i.Literal))
	case 8:
		binary.BigEndian.PutUint64(out[1:], i.Literal)
	}

	return out
}

// Len returns the encoded length of i in bytes: one opcode byte plus its
// literal width.
func (i Instruction) Len() int {
	return 1 + literalLen(i.Opcode)
}
