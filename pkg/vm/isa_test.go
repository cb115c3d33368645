package vm

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodeOpcodeIsTotal(t *testing.T) {
	for b := 0; b < 256; b++ {
		op, ok := DecodeOpcode(byte(b))
		wantOk := b <= int(OpRet)
		if ok != wantOk {
			t.Errorf("DecodeOpcode(0x%02X): expected ok=%t, got %t", b, wantOk, ok)
		}
		if ok && byte(op) != byte(b) {
			t.Errorf("DecodeOpcode(0x%02X): expected opcode 0x%02X, got 0x%02X", b, b, byte(op))
		}
	}
}

func TestInstructionLength(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpNop, 1},
		{OpHalt, 1},
		{OpPush, 9},
		{OpPop, 1},
		{OpJump, 1},
		{OpDupeAt, 9},
		{OpInterrupt, 2},
		{OpCall, 1},
		{OpRet, 1},
	}
	for _, tc := range tests {
		if got := tc.op.Length(); got != tc.want {
			t.Errorf("%s.Length(): expected %d, got %d", tc.op, tc.want, got)
		}
	}
}

func TestInstructionRoundTrip(t *testing.T) {
	imms := []int64{0, 1, -1, 0x7FFF_FFFF_FFFF_FFFF, -0x8000_0000_0000_0000, 0x8000}
	for op := OpNop; op <= OpRet; op++ {
		cases := []int64{0}
		switch op.ImmediateSize() {
		case 8:
			cases = imms
		case 1:
			cases = []int64{0, 1, 0x7F, 0xFF}
		}
		for _, imm := range cases {
			in := Instruction{Op: op, Imm: imm}
			enc := in.Encode()
			if len(enc) != op.Length() {
				t.Errorf("%s: encoded length %d, expected %d", op, len(enc), op.Length())
				continue
			}
			got, err := DecodeInstruction(enc, 0)
			if err != nil {
				t.Errorf("%s %d: decode failed: %v", op, imm, err)
				continue
			}
			if got != in {
				t.Errorf("%s %d: decoded %+v", op, imm, got)
			}
			if re := got.Encode(); !bytes.Equal(re, enc) {
				t.Errorf("%s %d: re-encoded % x, expected % x", op, imm, re, enc)
			}
		}
	}
}

func TestDecodeInstructionErrors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		addr int
		want FaultKind
	}{
		{"past end", []byte{byte(OpNop)}, 1, FaultPCOutOfBounds},
		{"negative", []byte{byte(OpNop)}, -1, FaultPCOutOfBounds},
		{"unknown opcode", []byte{0x11}, 0, FaultInvalidInstruction},
		{"truncated push", []byte{byte(OpPush), 1, 2, 3}, 0, FaultOperandOutOfBounds},
		{"truncated int", []byte{byte(OpInterrupt)}, 0, FaultOperandOutOfBounds},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeInstruction(tc.code, tc.addr)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLookupMnemonic(t *testing.T) {
	for op := OpNop; op <= OpRet; op++ {
		got, ok := LookupMnemonic(op.Mnemonic())
		if !ok || got != op {
			t.Errorf("LookupMnemonic(%q): expected %s, got %s (ok=%t)", op.Mnemonic(), op, got, ok)
		}
	}
	if op, ok := LookupMnemonic("DUPP"); !ok || op != OpDupeAt {
		t.Errorf("LookupMnemonic is expected to be case-insensitive, got %s %t", op, ok)
	}
	if _, ok := LookupMnemonic("jnz"); ok {
		t.Error("LookupMnemonic(\"jnz\"): expected no match")
	}
}
