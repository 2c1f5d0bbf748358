package bytecode

import (
	"testing"
)

func TestDecodeZeroExtend(t *testing.T) {
	code := []byte{byte(OpPush8), 0xff}
	instr, next, err := Decode(code, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if instr.Literal != 0xff {
		t.Errorf("push8 0xff zero-extended = 0x%x, want 0xff", instr.Literal)
	}
	if next != 2 {
		t.Errorf("next = %d, want 2", next)
	}
}

func TestDecodeSignExtend(t *testing.T) {
	cases := []struct {
		name string
		code []byte
		want uint64
	}{
		{"push8s negative", []byte{byte(OpPush8S), 0xff}, 0xFFFFFFFFFFFFFFFF},
		{"push8s positive", []byte{byte(OpPush8S), 0x7f}, 0x7f},
		{"push16s negative", []byte{byte(OpPush16S), 0xff, 0xfe}, 0xFFFFFFFFFFFFFFFE},
		{"push32s negative", []byte{byte(OpPush32S), 0xff, 0xff, 0xff, 0xff}, 0xFFFFFFFFFFFFFFFF},
		{"push64 identity", []byte{byte(OpPush64), 0, 0, 0, 0, 0, 0, 0, 1}, 1},
	}
	for _, c := range cases {
		instr, _, err := Decode(c.code, 0)
		if err != nil {
			t.Fatalf("%s: Decode: %v", c.name, err)
		}
		if instr.Literal != c.want {
			t.Errorf("%s: Literal = 0x%x, want 0x%x", c.name, instr.Literal, c.want)
		}
	}
}

func TestDecodeTruncatedLiteral(t *testing.T) {
	code := []byte{byte(OpPush32), 0x01, 0x02}
	_, _, err := Decode(code, 0)
	if err == nil {
		t.Fatal("expected truncated literal error, got nil")
	}
}

func TestDecodeReservedOpcode(t *testing.T) {
	code := []byte{0x07}
	instr, next, err := Decode(code, 0)
	if err != nil {
		t.Fatalf("Decode reserved: %v", err)
	}
	if !instr.Opcode.IsReserved() {
		t.Error("decoded opcode not reported reserved")
	}
	if next != 1 {
		t.Errorf("next = %d, want 1", next)
	}
}

func TestEncodeIgnoresLiteralOnBareOpcode(t *testing.T) {
	instr := Instruction{Opcode: OpAdd, Literal: 0xdeadbeef}
	got := instr.Encode()
	want := []byte{byte(OpAdd)}
	if len(got) != len(want) || got[0] != want[0] {
		t.Errorf("Encode() = %v, want %v", got, want)
	}
}

func TestEncodeTruncatesToWidth(t *testing.T) {
	instr := Instruction{Opcode: OpPush8, Literal: 0x1ff}
	got := instr.Encode()
	want := []byte{byte(OpPush8), 0xff}
	if len(got) != 2 || got[1] != want[1] {
		t.Errorf("Encode() = %v, want %v", got, want)
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	programs := [][]byte{
		{byte(OpPush8), 0x2a},
		{byte(OpPush8S), 0xff},
		{byte(OpPush16), 0x01, 0x02},
		{byte(OpPush16S), 0xff, 0x00},
		{byte(OpPush32), 0x01, 0x02, 0x03, 0x04},
		{byte(OpPush32S), 0xff, 0xff, 0xff, 0xff},
		{byte(OpPush64), 0, 0, 0, 0, 0, 0, 0, 0x7f},
		{byte(OpAdd)},
		{byte(OpJump)},
		{byte(OpHalt)},
		{0x07}, // reserved
	}
	for _, code := range programs {
		instr, next, err := Decode(code, 0)
		if err != nil {
			t.Fatalf("Decode(%v): %v", code, err)
		}
		if next != len(code) {
			t.Fatalf("Decode(%v) next = %d, want %d", code, next, len(code))
		}
		reencoded := instr.Encode()
		if len(reencoded) != len(code) {
			t.Fatalf("Encode(Decode(%v)) = %v, length mismatch", code, reencoded)
		}
		for i := range code {
			if code[i] != reencoded[i] {
				t.Fatalf("Encode(Decode(%v)) = %v, want %v", code, reencoded, code)
			}
		}

		instr2, next2, err := Decode(reencoded, 0)
		if err != nil {
			t.Fatalf("Decode(Encode(Decode(%v))): %v", code, err)
		}
		if instr2 != instr || next2 != next {
			t.Fatalf("decode not idempotent across encode for %v", code)
		}
	}
}

func TestInstructionLen(t *testing.T) {
	if (Instruction{Opcode: OpPush32}).Len() != 5 {
		t.Error("push32 Len() should be 5")
	}
	if (Instruction{Opcode: OpHalt}).Len() != 1 {
		t.Error("halt Len() should be 1")
	}
}
