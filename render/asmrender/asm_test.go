package asmrender_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-zarch/zrecon/decode"
	"github.com/go-zarch/zrecon/isa"
	"github.com/go-zarch/zrecon/procedure"
	"github.com/go-zarch/zrecon/render/asmrender"
)

func TestRenderReturnInstructionLine(t *testing.T) {
	inst := &decode.Instruction{
		Address:  0,
		Raw:      []byte{0x07, 0xFE},
		Mnemonic: "BCR",
		Category: isa.CategoryReturn,
		Mask:     15,
		Operands: []isa.Operand{{Kind: isa.OperandRegister, Reg: 14}},
	}

	out := asmrender.Render(asmrender.Input{
		Instructions: map[uint64]*decode.Instruction{0: inst},
		Procedures: []procedure.Procedure{
			{ID: "PROC_00000000", Entry: 0, Linkage: procedure.LinkageUnknown, Confidence: isa.Low},
		},
	})

	assert.Contains(t, out, "07 FE")
	assert.Contains(t, out, "bcr")
	assert.Contains(t, out, "PROC_00000000")
	assert.True(t, strings.HasPrefix(out, "00000000"))
}

func TestRenderUnresolvedBranchShowsLiteral(t *testing.T) {
	inst := &decode.Instruction{
		Address:   0x10,
		Raw:       []byte{0x07, 0x1F},
		Mnemonic:  "BCR",
		Category:  isa.CategoryIndirect,
		Mask:      1,
		HasTarget: false,
		Operands:  []isa.Operand{{Kind: isa.OperandRegister, Reg: 15}},
	}

	out := asmrender.Render(asmrender.Input{
		Instructions: map[uint64]*decode.Instruction{0x10: inst},
	})

	assert.Contains(t, out, "UNRESOLVED_TARGET")
	assert.Contains(t, out, "R15")
}

func TestRenderUnknownSpanHexDumpsIn16ByteLines(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i)
	}
	span := decode.UnknownSpan{Start: 0x100, Length: 20, Raw: raw, Reason: decode.ReasonDecodeFailed}

	out := asmrender.Render(asmrender.Input{Unknown: []decode.UnknownSpan{span}})

	assert.Contains(t, out, "Unknown/Undecodable Region: 0x00000100-0x00000114 (20 bytes)")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require := 3 // header + 2 dump lines (16 + 4 bytes)
	assert.GreaterOrEqual(t, len(lines), require)
}
