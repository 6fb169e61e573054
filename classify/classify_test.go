package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-zarch/zrecon/classify"
	"github.com/go-zarch/zrecon/decode"
	"github.com/go-zarch/zrecon/ingest"
)

func TestClassifyFullyDecodableSectionIsCode(t *testing.T) {
	data := []byte{0x07, 0xFE, 0x07, 0xFE} // two BCR instructions, fully decodable
	sec := ingest.Section{Name: "CSECT", Base: 0, Bytes: data}
	dr := decode.Decode(decode.Section{Base: sec.Base, Bytes: sec.Bytes})

	regions := classify.Classify([]ingest.Section{sec}, map[uint64]decode.Result{sec.Base: dr},
		classify.Config{WindowSize: 4, CodeThreshold: 0.70, DataThreshold: 0.30})

	require.Len(t, regions, 1)
	assert.Equal(t, classify.Code, regions[0].Kind)
	assert.Equal(t, uint64(0), regions[0].Start)
	assert.Equal(t, uint64(4), regions[0].End)
}

func TestClassifyUndecodableSectionIsData(t *testing.T) {
	data := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	sec := ingest.Section{Name: "CSECT", Base: 0, Bytes: data}
	dr := decode.Decode(decode.Section{Base: sec.Base, Bytes: sec.Bytes})

	regions := classify.Classify([]ingest.Section{sec}, map[uint64]decode.Result{sec.Base: dr},
		classify.Config{WindowSize: 4, CodeThreshold: 0.70, DataThreshold: 0.30})

	require.Len(t, regions, 1)
	assert.Equal(t, classify.Data, regions[0].Kind)
}

func TestClassifyRegionsTileSectionExactly(t *testing.T) {
	data := []byte{0x07, 0xFE, 0xFF, 0xFF, 0xFF, 0xFF, 0x07, 0xFE}
	sec := ingest.Section{Name: "CSECT", Base: 0x1000, Bytes: data}
	dr := decode.Decode(decode.Section{Base: sec.Base, Bytes: sec.Bytes})

	regions := classify.Classify([]ingest.Section{sec}, map[uint64]decode.Result{sec.Base: dr},
		classify.Config{WindowSize: 2, CodeThreshold: 0.70, DataThreshold: 0.30})

	require.NotEmpty(t, regions)
	assert.Equal(t, sec.Base, regions[0].Start)
	assert.Equal(t, sec.Base+uint64(len(data)), regions[len(regions)-1].End)
	for i := 1; i < len(regions); i++ {
		assert.Equal(t, regions[i-1].End, regions[i].Start, "regions must be contiguous with no gap or overlap")
	}
}

func TestClassifyConstantPoolRecognizesAddressesIntoOtherSections(t *testing.T) {
	// CSECT holds a 48-byte BCR-only run followed by a 16-byte constant
	// pool of pointers into OTHER (the second section), not into
	// itself — a single 64-byte decode-rate window classifies the whole
	// span CODE (60/64 bytes decode: the BCR run plus three STM-shaped
	// words inside the pool itself), so only the address-pattern check
	// can split the pool back out, and it must look at every section.
	other := ingest.Section{Name: "OTHER", Base: 0x9000, Bytes: make([]byte, 16)}
	code := make([]byte, 48)
	for i := 0; i < len(code); i += 2 {
		code[i], code[i+1] = 0x07, 0xFE
	}
	pool := []byte{
		0x00, 0x00, 0x90, 0x00,
		0x00, 0x00, 0x90, 0x04,
		0x00, 0x00, 0x90, 0x08,
		0x00, 0x00, 0x90, 0x0C,
	}
	data := append(append([]byte{}, code...), pool...)
	csect := ingest.Section{Name: "CSECT", Base: 0, Bytes: data}

	dr := decode.Decode(decode.Section{Base: csect.Base, Bytes: csect.Bytes})
	regions := classify.Classify([]ingest.Section{csect, other}, map[uint64]decode.Result{csect.Base: dr},
		classify.Config{WindowSize: 64, CodeThreshold: 0.70, DataThreshold: 0.30})

	var sawPool bool
	for _, r := range regions {
		if r.Kind == classify.Data && r.Rationale == "constant-pool" {
			sawPool = true
			assert.Equal(t, uint64(48), r.Start)
			assert.Equal(t, uint64(64), r.End)
		}
	}
	assert.True(t, sawPool, "expected a constant-pool region recognizing addresses into another section")
}

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := classify.DefaultConfig()

	assert.Equal(t, 64, cfg.WindowSize)
	assert.Equal(t, 0.70, cfg.CodeThreshold)
	assert.Equal(t, 0.30, cfg.DataThreshold)
}
