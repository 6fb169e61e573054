package decode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-zarch/zrecon/decode"
	"github.com/go-zarch/zrecon/isa"
)

func TestDecodeReturnInstruction(t *testing.T) {
	res := decode.Decode(decode.Section{Base: 0, Bytes: []byte{0x07, 0xFE}})

	require.Len(t, res.Instructions, 1)
	assert.Empty(t, res.Unknown)
	inst := res.Instructions[0]
	assert.Equal(t, "BCR", inst.Mnemonic)
	assert.Equal(t, isa.CategoryReturn, inst.Category)
	assert.Equal(t, uint8(15), inst.Mask)
	require.Len(t, inst.Operands, 1)
	assert.Equal(t, uint8(14), inst.Operands[0].Reg)
}

func TestDecodeUnrecognizedOpcodeProducesOneByteUnknownSpan(t *testing.T) {
	res := decode.Decode(decode.Section{Base: 0x100, Bytes: []byte{0xFF, 0x07, 0xFE}})

	require.Len(t, res.Unknown, 1)
	assert.Equal(t, uint64(0x100), res.Unknown[0].Start)
	assert.Equal(t, uint64(1), res.Unknown[0].Length)
	assert.Equal(t, decode.ReasonDecodeFailed, res.Unknown[0].Reason)

	require.Len(t, res.Instructions, 1)
	assert.Equal(t, uint64(0x101), res.Instructions[0].Address)
}

func TestDecodeAccountsForEveryByte(t *testing.T) {
	data := []byte{0x18, 0x1E, 0xFF, 0x07, 0xFE} // LR 1,14; one bad byte; BCR 15,14
	res := decode.Decode(decode.Section{Base: 0, Bytes: data})

	var total int
	for _, inst := range res.Instructions {
		total += inst.Len()
	}
	for _, span := range res.Unknown {
		total += int(span.Length)
	}
	assert.Equal(t, len(data), total)
}

func TestDecodeBCResolvesUnconditionalTarget(t *testing.T) {
	// BC 15,32(,R0) at address 0x10: mask=15, base=0, disp=0x20 -> target 0x30.
	data := []byte{0x47, 0xF0, 0x00, 0x20}
	res := decode.Decode(decode.Section{Base: 0x10, Bytes: data})

	require.Len(t, res.Instructions, 1)
	inst := res.Instructions[0]
	assert.Equal(t, isa.CategoryUnconditionalBranch, inst.Category)
	assert.True(t, inst.HasTarget)
	assert.Equal(t, uint64(0x30), inst.ResolvedTarget)
}

func TestDecodeBRASLResolvesCallTargetAndLinkRegister(t *testing.T) {
	// BRASL 14,<halfword displacement 4> at address 0: target = 0 + 4*2 = 8.
	data := []byte{0xC0, 0xE5, 0x00, 0x00, 0x00, 0x04}
	res := decode.Decode(decode.Section{Base: 0, Bytes: data})

	require.Len(t, res.Instructions, 1)
	inst := res.Instructions[0]
	assert.Equal(t, isa.CategoryCall, inst.Category)
	assert.True(t, inst.HasTarget)
	assert.Equal(t, uint64(8), inst.ResolvedTarget)
	require.Len(t, inst.Operands, 2)
	assert.Equal(t, uint8(14), inst.Operands[0].Reg)
}

func TestDecodeBCRIndirectWhenNotReturn(t *testing.T) {
	// BCR 15,4: mask 15 but target register isn't 14, so it's indirect.
	data := []byte{0x07, 0xF4}
	res := decode.Decode(decode.Section{Base: 0, Bytes: data})

	require.Len(t, res.Instructions, 1)
	assert.Equal(t, isa.CategoryIndirect, res.Instructions[0].Category)
}
