// Package classify implements the Region Classifier of spec.md §4.3: a
// sliding fixed-size window over each section's bytes, scored by decode
// rate against the decoded instruction stream, coalesced into a
// gap-free, overlap-free partition of CODE/DATA/UNKNOWN regions.
package classify

import (
	"github.com/go-zarch/zrecon/decode"
	"github.com/go-zarch/zrecon/ingest"
	"github.com/go-zarch/zrecon/isa"
)

// Kind is the closed set of region classifications.
type Kind int

const (
	Code Kind = iota
	Data
	Unknown
)

func (k Kind) String() string {
	switch k {
	case Code:
		return "CODE"
	case Data:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

// Region is a classified, non-overlapping span of one section.
type Region struct {
	Kind       Kind
	Start, End uint64 // [Start, End)
	Confidence isa.Confidence
	Rationale  string
}

// Config is the subset of pipeline.Config the classifier consumes.
type Config struct {
	WindowSize    int
	CodeThreshold float64
	DataThreshold float64
}

// DefaultConfig matches spec.md §6's configuration defaults.
func DefaultConfig() Config {
	return Config{WindowSize: 64, CodeThreshold: 0.70, DataThreshold: 0.30}
}

const constantPoolMinBytes = 16

// Classify partitions every section into Regions. decoded supplies the
// per-section decode results the sliding window scores against.
func Classify(sections []ingest.Section, decoded map[uint64]decode.Result, cfg Config) []Region {
	var regions []Region
	for _, sec := range sections {
		regions = append(regions, classifySection(sec, decoded[sec.Base], cfg, sections)...)
	}
	return regions
}

func classifySection(sec ingest.Section, dr decode.Result, cfg Config, sections []ingest.Section) []Region {
	n := len(sec.Bytes)
	if n == 0 {
		return nil
	}

	decodedByte := make([]bool, n)
	for _, inst := range dr.Instructions {
		off := int(inst.Address - sec.Base)
		for i := 0; i < inst.Len() && off+i < n; i++ {
			decodedByte[off+i] = true
		}
	}

	window := cfg.WindowSize
	if window <= 0 {
		window = 64
	}

	kinds := make([]Kind, n)
	prevKind := Code // arbitrary seed; only read for the first window's tie-break
	for start := 0; start < n; start += window {
		end := start + window
		if end > n {
			end = n
		}
		decoded := 0
		for i := start; i < end; i++ {
			if decodedByte[i] {
				decoded++
			}
		}
		rate := float64(decoded) / float64(end-start)

		var kind Kind
		switch {
		case rate > cfg.CodeThreshold:
			kind = Code
		case rate < cfg.DataThreshold:
			kind = Data
		case rate == cfg.CodeThreshold || rate == cfg.DataThreshold:
			// Exact threshold equality: prefer the prior window's
			// kind (deterministic, favors stability), per spec.md
			// §4.3's tie-break rule.
			kind = prevKind
		default:
			kind = Unknown
		}
		for i := start; i < end; i++ {
			kinds[i] = kind
		}
		prevKind = kind
	}

	regions := coalesce(sec, kinds, dr)
	regions = applyConstantPoolDowngrade(sec, regions, sections)
	return regions
}

// coalesce merges adjacent same-kind windows into Regions, snapping
// kind-change boundaries to the nearest instruction boundary at or
// before the transition so a region never splits an instruction.
func coalesce(sec ingest.Section, kinds []Kind, dr decode.Result) []Region {
	n := len(kinds)
	if n == 0 {
		return nil
	}

	leaders := instructionStarts(dr, sec.Base)

	var regions []Region
	segStart := 0
	for segStart < n {
		kind := kinds[segStart]
		i := segStart + 1
		for i < n && kinds[i] == kind {
			i++
		}
		boundary := i
		if i < n {
			boundary = snapToBoundary(segStart, i, leaders)
			if boundary <= segStart {
				boundary = i
			}
		}
		regions = append(regions, Region{
			Kind:       kind,
			Start:      sec.Base + uint64(segStart),
			End:        sec.Base + uint64(boundary),
			Confidence: confidenceFor(kind),
			Rationale:  rationaleFor(kind),
		})
		segStart = boundary
	}
	return regions
}

// instructionStarts returns the section-relative offsets at which a
// decoded instruction begins, matching the offsets coalesce works in.
func instructionStarts(dr decode.Result, base uint64) map[int]bool {
	starts := make(map[int]bool, len(dr.Instructions))
	for addr := range dr.ByAddress {
		starts[int(addr-base)] = true
	}
	return starts
}

// snapToBoundary moves a proposed kind-change boundary back to the
// start of the instruction straddling it, if any; offsets that already
// land on an instruction start (or where nothing decoded there) are
// returned unchanged.
func snapToBoundary(segStart, proposed int, leaders map[int]bool) int {
	if leaders[proposed] {
		return proposed
	}
	for b := proposed - 1; b > segStart; b-- {
		if leaders[b] {
			return b
		}
	}
	return proposed
}

func confidenceFor(k Kind) isa.Confidence {
	switch k {
	case Code:
		return isa.High
	case Data:
		return isa.Medium
	default:
		return isa.Low
	}
}

func rationaleFor(k Kind) string {
	switch k {
	case Code:
		return "decode-rate-high"
	case Data:
		return "decode-rate-low"
	default:
		return "decode-rate-ambiguous"
	}
}

// applyConstantPoolDowngrade implements spec.md §4.3's constant-pool
// detection: within a CODE region, a sub-span of at least 16 bytes of
// aligned 4-byte values that look like section-relative addresses
// downgrades to DATA/constant-pool.
func applyConstantPoolDowngrade(sec ingest.Section, regions []Region, sections []ingest.Section) []Region {
	out := make([]Region, 0, len(regions))
	for _, r := range regions {
		if r.Kind != Code {
			out = append(out, r)
			continue
		}
		out = append(out, splitConstantPools(sec, r, sections)...)
	}
	return out
}

func splitConstantPools(sec ingest.Section, r Region, sections []ingest.Section) []Region {
	start := int(r.Start - sec.Base)
	end := int(r.End - sec.Base)

	// align to a 4-byte boundary within the region
	wordStart := start
	if wordStart%4 != 0 {
		wordStart += 4 - wordStart%4
	}

	var out []Region
	cursor := start
	i := wordStart
	for i+4 <= end {
		runStart := i
		for i+4 <= end && looksLikeSectionAddress(sections, sec.Bytes[i:i+4]) {
			i += 4
		}
		if i-runStart >= constantPoolMinBytes {
			if cursor < runStart {
				out = append(out, Region{Kind: Code, Start: sec.Base + uint64(cursor), End: sec.Base + uint64(runStart), Confidence: r.Confidence, Rationale: r.Rationale})
			}
			out = append(out, Region{Kind: Data, Start: sec.Base + uint64(runStart), End: sec.Base + uint64(i), Confidence: isa.Medium, Rationale: "constant-pool"})
			cursor = i
		} else if i == runStart {
			i += 4
		}
	}
	if cursor < end {
		out = append(out, Region{Kind: Code, Start: sec.Base + uint64(cursor), End: sec.Base + uint64(end), Confidence: r.Confidence, Rationale: r.Rationale})
	}
	if len(out) == 0 {
		return []Region{r}
	}
	return out
}

// looksLikeSectionAddress reports whether word, read big-endian, falls
// within the bounds of any section in the artifact — not just the one
// currently being scanned, since a constant pool commonly holds
// pointers into other sections (a CSECT referencing a DSECT, say).
func looksLikeSectionAddress(sections []ingest.Section, word []byte) bool {
	v := uint64(word[0])<<24 | uint64(word[1])<<16 | uint64(word[2])<<8 | uint64(word[3])
	for _, sec := range sections {
		if v >= sec.Base && v < sec.Base+uint64(len(sec.Bytes)) {
			return true
		}
	}
	return false
}
