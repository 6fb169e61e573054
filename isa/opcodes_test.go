package isa_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-zarch/zrecon/isa"
)

func TestLengthClassMapsTopTwoBits(t *testing.T) {
	assert.Equal(t, 2, isa.LengthClass(0x07)) // 00xxxxxx
	assert.Equal(t, 4, isa.LengthClass(0x47)) // 01xxxxxx
	assert.Equal(t, 4, isa.LengthClass(0x90)) // 10xxxxxx
	assert.Equal(t, 6, isa.LengthClass(0xD2)) // 11xxxxxx
}

func TestLookupResolvesKnownOpcodes(t *testing.T) {
	def, ok := isa.Lookup(0x07, 0xFE)
	assert.True(t, ok)
	assert.Equal(t, "BCR", def.Mnemonic)
	assert.Equal(t, isa.FormatRR, def.Format)
	assert.Equal(t, 2, def.Length())

	def, ok = isa.Lookup(0x47, 0x00)
	assert.True(t, ok)
	assert.Equal(t, "BC", def.Mnemonic)
	assert.Equal(t, 4, def.Length())
}

func TestLookupGroupsA7ByLowNibble(t *testing.T) {
	def, ok := isa.Lookup(0xA7, 0x84) // R1=8 arbitrary, low nibble 4 -> BRC
	assert.True(t, ok)
	assert.Equal(t, "BRC", def.Mnemonic)

	def, ok = isa.Lookup(0xA7, 0x85)
	assert.True(t, ok)
	assert.Equal(t, "BRAS", def.Mnemonic)

	_, ok = isa.Lookup(0xA7, 0x81) // nibble 1 is unassigned
	assert.False(t, ok)
}

func TestLookupGroupsC0ByLowNibble(t *testing.T) {
	def, ok := isa.Lookup(0xC0, 0x05)
	assert.True(t, ok)
	assert.Equal(t, "BRASL", def.Mnemonic)

	_, ok = isa.Lookup(0xC0, 0x0F)
	assert.False(t, ok)
}

func TestLookupRejectsUnrecognizedOpcode(t *testing.T) {
	_, ok := isa.Lookup(0xFF, 0x00)
	assert.False(t, ok)
}

func TestDefaultCategoryExcludesConditionalMnemonics(t *testing.T) {
	_, ok := isa.DefaultCategory("BC")
	assert.False(t, ok)
	_, ok = isa.DefaultCategory("BCR")
	assert.False(t, ok)
	_, ok = isa.DefaultCategory("BRC")
	assert.False(t, ok)

	cat, ok := isa.DefaultCategory("BALR")
	assert.True(t, ok)
	assert.Equal(t, isa.CategoryCall, cat)
}
