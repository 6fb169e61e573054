package pseudo_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-zarch/zrecon/cfgbuild"
	"github.com/go-zarch/zrecon/classify"
	"github.com/go-zarch/zrecon/decode"
	"github.com/go-zarch/zrecon/isa"
	"github.com/go-zarch/zrecon/procedure"
	"github.com/go-zarch/zrecon/render/pseudo"
)

func TestRenderStraightLineProcedureEndsInReturn(t *testing.T) {
	instrs := map[uint64]*decode.Instruction{
		0x1000: {Address: 0x1000, Mnemonic: "LHI", Category: isa.CategorySequential, Raw: make([]byte, 4)},
		0x1004: {Address: 0x1004, Mnemonic: "BCR", Category: isa.CategoryReturn, Mask: 15, Raw: make([]byte, 2),
			Operands: []isa.Operand{{Kind: isa.OperandRegister, Reg: 14}}},
	}
	region := classify.Region{Kind: classify.Code, Start: 0x1000, End: 0x1006}
	cfg, unresolved := cfgbuild.Build([]classify.Region{region}, instrs)
	require.Empty(t, unresolved)

	procs, _ := procedure.Infer(cfg, instrs, []uint64{0x1000})

	out := pseudo.Render(pseudo.Input{Instructions: instrs, CFG: cfg, Procedures: procs})

	assert.Contains(t, out, "void PROC_00001000() {")
	assert.Contains(t, out, "return;")
	assert.Contains(t, out, "@0x00001004")
}

func TestRenderIfElseReconverges(t *testing.T) {
	instrs := map[uint64]*decode.Instruction{
		0x2000: {Address: 0x2000, Mnemonic: "BC", Category: isa.CategoryConditionalBranch, Mask: 8,
			ResolvedTarget: 0x200C, HasTarget: true, Raw: make([]byte, 4)},
		0x2004: {Address: 0x2004, Mnemonic: "LHI", Category: isa.CategorySequential, Raw: make([]byte, 4)},
		0x2008: {Address: 0x2008, Mnemonic: "BRC", Category: isa.CategoryUnconditionalBranch,
			Mask: 15, ResolvedTarget: 0x2010, HasTarget: true, Raw: make([]byte, 4)},
		0x200C: {Address: 0x200C, Mnemonic: "LHI", Category: isa.CategorySequential, Raw: make([]byte, 4)},
		0x2010: {Address: 0x2010, Mnemonic: "BCR", Category: isa.CategoryReturn, Mask: 15, Raw: make([]byte, 2),
			Operands: []isa.Operand{{Kind: isa.OperandRegister, Reg: 14}}},
	}
	region := classify.Region{Kind: classify.Code, Start: 0x2000, End: 0x2012}
	cfg, unresolved := cfgbuild.Build([]classify.Region{region}, instrs)
	require.Empty(t, unresolved)

	procs, _ := procedure.Infer(cfg, instrs, []uint64{0x2000})

	out := pseudo.Render(pseudo.Input{Instructions: instrs, CFG: cfg, Procedures: procs})

	assert.Contains(t, out, "if (mask(8)) {")
	assert.Contains(t, out, "} else {")
	assert.True(t, strings.Contains(out, "return;"))
}

func TestRenderPythonStyleUsesColonBlocks(t *testing.T) {
	instrs := map[uint64]*decode.Instruction{
		0x1000: {Address: 0x1000, Mnemonic: "BCR", Category: isa.CategoryReturn, Mask: 15, Raw: make([]byte, 2),
			Operands: []isa.Operand{{Kind: isa.OperandRegister, Reg: 14}}},
	}
	region := classify.Region{Kind: classify.Code, Start: 0x1000, End: 0x1002}
	cfg, unresolved := cfgbuild.Build([]classify.Region{region}, instrs)
	require.Empty(t, unresolved)

	procs, _ := procedure.Infer(cfg, instrs, []uint64{0x1000})

	out := pseudo.Render(pseudo.Input{Instructions: instrs, CFG: cfg, Procedures: procs, Style: pseudo.StylePythonLike})

	assert.Contains(t, out, "def PROC_00001000():")
}
