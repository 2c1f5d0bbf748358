// Package bytecode implements the slot-based bytecode format and execution
// engine for the VM: the opcode table, the instruction codec (decode/encode
// plus inline-literal extension), the dispatch loop, and the disassembler.
//
// The package has no knowledge of where a program comes from or where its
// input/output streams lead; callers supply a raw byte program and two
// io.Reader/io.Writer-shaped streams and get back a VM they can Step or Run.
package bytecode
