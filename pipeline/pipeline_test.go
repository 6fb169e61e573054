package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-zarch/zrecon/pipeline"
	"github.com/go-zarch/zrecon/procedure"
)

func TestAnalyzeEmptyInputIsFailure(t *testing.T) {
	result, err := pipeline.Analyze(nil, "empty.bin", nil, pipeline.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusFailure, result.Status)
	assert.Equal(t, 0, result.Statistics.DecodedInstructionCount)
}

func TestAnalyzeTwoByteReturnIsSuccess(t *testing.T) {
	data := []byte{0x07, 0xFE} // BCR 15,14
	result, err := pipeline.Analyze(data, "ret.bin", nil, pipeline.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusSuccess, result.Status)
	assert.Equal(t, 1.0, result.Statistics.DecodeRate)
	assert.Len(t, result.Instructions, 1)
	require.Len(t, result.Procedures, 1)
	assert.Equal(t, "PROC_00000000", result.Procedures[0].ID)
	assert.Equal(t, procedure.LinkageUnknown, result.Procedures[0].Linkage)
	assert.Contains(t, result.AsmListing, "bcr")
	assert.Contains(t, result.PseudoListing, "PROC_00000000")
}

func TestAnalyzePartialDecodeRateYieldsPartialStatus(t *testing.T) {
	data := []byte{0xFF, 0x07, 0xFE} // one undecodable byte, then BCR 15,14
	result, err := pipeline.Analyze(data, "mixed.bin", nil, pipeline.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusPartial, result.Status)
	assert.InDelta(t, 2.0/3.0, result.Statistics.DecodeRate, 0.001)
	assert.Len(t, result.Unknown, 1)
	assert.Equal(t, uint64(1), result.Statistics.UnknownByteCount)
}

func TestAnalyzeUsesPythonStyleWhenConfigured(t *testing.T) {
	data := []byte{0x07, 0xFE}
	cfg := pipeline.DefaultConfig()
	cfg.PseudocodeStyle = pipeline.PseudoPythonLike

	result, err := pipeline.Analyze(data, "ret.bin", nil, cfg)
	require.NoError(t, err)

	assert.Contains(t, result.PseudoListing, "def PROC_00000000():")
}

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := pipeline.DefaultConfig()

	assert.Equal(t, 64, cfg.DecodeWindowSize)
	assert.Equal(t, 0.70, cfg.CodeThreshold)
	assert.Equal(t, 0.30, cfg.DataThreshold)
	assert.True(t, cfg.EmitHex)
	assert.Equal(t, pipeline.PseudoCLike, cfg.PseudocodeStyle)
}
