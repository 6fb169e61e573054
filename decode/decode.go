// Package decode turns raw section bytes into a sequence of decoded
// Instructions and UnknownSpans. It never fails: every input byte is
// accounted for in one or the other. Grounded on the linear-sweep
// decoder in Urethramancer-m68k's disassembler/disassemble.go (the
// `for pc := 0; ...` loop and its central `decode()` dispatch switch),
// rewritten against the z/Architecture RR/RX/RS/SI/SS/RI/RIL formats in
// github.com/go-zarch/zrecon/isa instead of m68k's effective-address
// modes.
package decode

import (
	"encoding/binary"

	"github.com/go-zarch/zrecon/isa"
)

// Instruction is a decoded unit at a specific address.
type Instruction struct {
	Address  uint64
	Raw      []byte
	Mnemonic string
	Operands []isa.Operand
	Category isa.Category
	Valid    bool

	// ResolvedTarget is set for direct branches/calls whose destination
	// is statically known. Absent (HasTarget == false) for indirect
	// branches/calls and for conditional branches this pipeline could
	// not resolve.
	ResolvedTarget uint64
	HasTarget      bool

	// Mask holds the 4-bit condition mask for BC/BCR/BRC; zero for
	// every other mnemonic, where it has no meaning.
	Mask uint8
}

// Len returns the instruction length in bytes, always one of 2, 4, 6.
func (i Instruction) Len() int { return len(i.Raw) }

// UnknownSpanReason is a closed set of reasons a span of bytes did not
// become an Instruction.
type UnknownSpanReason string

const (
	ReasonDecodeFailed  UnknownSpanReason = "decode-failed"
	ReasonClassifiedData UnknownSpanReason = "classified-data"
	ReasonMisaligned    UnknownSpanReason = "misaligned"
	ReasonOverlapping   UnknownSpanReason = "overlapping"
)

// UnknownSpan is a contiguous region of bytes that could not be decoded
// or was classified as non-code.
type UnknownSpan struct {
	Start  uint64
	Length uint64
	Raw    []byte
	Reason UnknownSpanReason
}

// Result is the decoder's output for one section: a total partition of
// the section's bytes into Instructions and UnknownSpans, in ascending
// address order.
type Result struct {
	Instructions []Instruction
	Unknown      []UnknownSpan
	// ByAddress indexes decoded instructions for O(1) leader/target
	// lookups during CFG construction.
	ByAddress map[uint64]*Instruction
}

// Section is the minimal decoder input: a base address and the bytes
// that live there.
type Section struct {
	Base  uint64
	Bytes []byte
}

// Decode performs the linear sweep over one section described in
// spec.md §4.2: decode from the base, advance by the decoded length on
// success, advance by one byte and emit a 1-byte UnknownSpan on
// failure. Every byte of sec.Bytes ends up in exactly one Instruction
// or UnknownSpan (spec.md §8 invariant 1, byte accounting).
func Decode(sec Section) Result {
	res := Result{ByAddress: make(map[uint64]*Instruction)}

	pos := 0
	n := len(sec.Bytes)
	for pos < n {
		addr := sec.Base + uint64(pos)
		remaining := sec.Bytes[pos:]

		inst, consumed, ok := decodeOne(addr, remaining)
		if !ok {
			res.Unknown = append(res.Unknown, UnknownSpan{
				Start:  addr,
				Length: 1,
				Raw:    append([]byte(nil), sec.Bytes[pos:pos+1]...),
				Reason: ReasonDecodeFailed,
			})
			pos++
			continue
		}

		res.Instructions = append(res.Instructions, inst)
		res.ByAddress[addr] = &res.Instructions[len(res.Instructions)-1]
		pos += consumed
	}

	return res
}

// decodeOne decodes a single instruction at addr from the head of buf.
// ok is false when the opcode is unrecognized or buf is shorter than
// the format's declared length, per spec.md §4.2.
func decodeOne(addr uint64, buf []byte) (Instruction, int, bool) {
	if len(buf) == 0 {
		return Instruction{}, 0, false
	}

	b0 := buf[0]
	declared := isa.LengthClass(b0)
	if len(buf) < declared {
		return Instruction{}, 0, false
	}

	var b1 byte
	if len(buf) > 1 {
		b1 = buf[1]
	}
	def, ok := isa.Lookup(b0, b1)
	if !ok || def.Length() != declared {
		return Instruction{}, 0, false
	}

	raw := append([]byte(nil), buf[:def.Length()]...)
	inst := Instruction{
		Address:  addr,
		Raw:      raw,
		Mnemonic: def.Mnemonic,
		Valid:    true,
	}

	switch def.Format {
	case isa.FormatRR:
		decodeRR(&inst, raw)
	case isa.FormatRX:
		decodeRX(&inst, raw)
	case isa.FormatRS:
		decodeRS(&inst, raw)
	case isa.FormatSI:
		decodeSI(&inst, raw)
	case isa.FormatSS:
		decodeSS(&inst, raw)
	case isa.FormatRI:
		decodeRI(&inst, raw)
	case isa.FormatRIL:
		decodeRIL(&inst, raw)
	}

	assignCategory(&inst)
	return inst, def.Length(), true
}

func be16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func be32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

func signExtend16(v uint16) int32 {
	return int32(int16(v))
}

func signExtend32(v uint32) int64 {
	return int64(int32(v))
}
