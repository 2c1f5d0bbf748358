package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders program as a human-readable instruction listing, one
// line per instruction: its address, raw bytes, mnemonic, and literal (in
// hex) where present. Reserved opcodes are listed as "reserved(0xNN)" rather
// than a mnemonic, per the codec's contract to report them distinctly.
//
// A truncated literal at the end of the program is reported as a trailing
// ".byte" pseudo-line rather than aborting the listing, so a disassembler
// can still show everything that decoded cleanly before it.
func Disassemble(program []byte) string {
	var b strings.Builder
	offset := 0
	for offset < len(program) {
		instr, next, err := Decode(program, offset)
		if err != nil {
			fmt.Fprintf(&b, "%06x: %02x             .byte (truncated literal)\n", offset, program[offset])
			break
		}

		raw := program[offset:next]
		fmt.Fprintf(&b, "%06x: %-14s %s", offset, hexBytes(raw), instr.Opcode.String())
		if literalLen(instr.Opcode) > 0 {
			fmt.Fprintf(&b, " 0x%x", instr.Literal)
		}
		b.WriteByte('\n')

		offset = next
	}
	return b.String()
}

func hexBytes(bs []byte) string {
	var b strings.Builder
	for i, c := range bs {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", c)
	}
	return b.String()
}
