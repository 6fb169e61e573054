package isa_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-zarch/zrecon/isa"
)

func TestCategoryStringCoversKnownValues(t *testing.T) {
	assert.Equal(t, "sequential", isa.CategorySequential.String())
	assert.Equal(t, "conditional-branch", isa.CategoryConditionalBranch.String())
	assert.Equal(t, "unconditional-branch", isa.CategoryUnconditionalBranch.String())
	assert.Equal(t, "call", isa.CategoryCall.String())
	assert.Equal(t, "return", isa.CategoryReturn.String())
	assert.Equal(t, "indirect", isa.CategoryIndirect.String())
	assert.Equal(t, "unknown", isa.CategoryUnknown.String())
}

func TestConfidenceOrdering(t *testing.T) {
	assert.True(t, isa.Low.Less(isa.Medium))
	assert.True(t, isa.Medium.Less(isa.High))
	assert.False(t, isa.High.Less(isa.Low))

	assert.True(t, isa.High.AtLeast(isa.Medium))
	assert.True(t, isa.Medium.AtLeast(isa.Medium))
	assert.False(t, isa.Low.AtLeast(isa.Medium))
}

func TestConfidenceStringCoversKnownValues(t *testing.T) {
	assert.Equal(t, "LOW", isa.Low.String())
	assert.Equal(t, "MEDIUM", isa.Medium.String())
	assert.Equal(t, "HIGH", isa.High.String())
}
