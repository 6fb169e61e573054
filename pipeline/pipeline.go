// Package pipeline is the sole entry point of the analysis core, per
// spec.md §6: it wires Ingest → Decode → Classify → CFG build →
// Procedure inference → render into one pure function. Grounded on the
// read→process→emit sequencing of Urethramancer-m68k's
// cmd/dis68/main.go, lifted out of main() into a reusable library call
// so cmd/zrecon can stay a thin CLI shell.
package pipeline

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-zarch/zrecon/cfgbuild"
	"github.com/go-zarch/zrecon/classify"
	"github.com/go-zarch/zrecon/decode"
	"github.com/go-zarch/zrecon/ingest"
	"github.com/go-zarch/zrecon/isa"
	"github.com/go-zarch/zrecon/procedure"
	"github.com/go-zarch/zrecon/render/asmrender"
	"github.com/go-zarch/zrecon/render/pseudo"
)

// PseudocodeStyle selects the pseudocode renderer's surface syntax, per
// spec.md §6's configuration struct.
type PseudocodeStyle string

const (
	PseudoCLike      PseudocodeStyle = "c-like"
	PseudoPythonLike PseudocodeStyle = "python-like"
)

// Config is the external interface's configuration struct, spec.md §6.
type Config struct {
	DecodeWindowSize int
	CodeThreshold    float64
	DataThreshold    float64
	EmitHex          bool
	PseudocodeStyle  PseudocodeStyle
}

// DefaultConfig matches spec.md §6's stated defaults.
func DefaultConfig() Config {
	return Config{
		DecodeWindowSize: 64,
		CodeThreshold:    0.70,
		DataThreshold:    0.30,
		EmitHex:          true,
		PseudocodeStyle:  PseudoCLike,
	}
}

// Status is the three-valued tag spec.md §6 derives from decode_rate,
// distinct from the classifier's own 0.70/0.30 thresholds.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailure Status = "failure"
)

const (
	statusSuccessThreshold = 0.80
	statusFailureThreshold = 0.20
)

// Statistics summarizes one analysis run, per spec.md §6's outbound
// interface.
type Statistics struct {
	DecodedInstructionCount int            `yaml:"decoded_instruction_count"`
	DecodedByteCount        uint64         `yaml:"decoded_byte_count"`
	UnknownByteCount        uint64         `yaml:"unknown_byte_count"`
	DecodeRate              float64        `yaml:"decode_rate"`
	BranchCount             int            `yaml:"branch_count"`
	CallCount               int            `yaml:"call_count"`
	ReturnCount             int            `yaml:"return_count"`
	MnemonicHistogram       map[string]int `yaml:"mnemonic_histogram"`
	CategoryHistogram       map[string]int `yaml:"category_histogram"`
}

// AnalysisResult is the full outbound tree spec.md §6 describes.
type AnalysisResult struct {
	Artifact     ingest.Artifact
	Instructions map[uint64]*decode.Instruction
	Unknown      []decode.UnknownSpan
	Regions      []classify.Region
	CFG          *cfgbuild.CFG
	Procedures   []procedure.Procedure
	CallGraph    procedure.CallGraph
	Statistics   Statistics
	Status       Status

	AsmListing    string
	PseudoListing string
}

// Analyze is the sole core entry point: bytes in, a complete result
// tree and two deterministic text streams out. The only fatal path is
// ingestion failure (spec.md §7); every other non-fatal condition is
// recorded in the result rather than surfaced as an error.
func Analyze(data []byte, filename string, entryHints []uint64, cfg Config) (AnalysisResult, error) {
	art, err := ingest.Ingest(data, filename, entryHints)
	if err != nil {
		return AnalysisResult{Status: StatusFailure}, errors.Wrap(err, "pipeline: ingestion failed")
	}

	if len(art.Sections) == 0 {
		return AnalysisResult{Artifact: art, Status: StatusFailure, Statistics: emptyStatistics()}, nil
	}

	instrs := make(map[uint64]*decode.Instruction)
	var unknown []decode.UnknownSpan
	decodedPerSection := make(map[uint64]decode.Result)
	for _, sec := range art.Sections {
		res := decode.Decode(decode.Section{Base: sec.Base, Bytes: sec.Bytes})
		decodedPerSection[sec.Base] = res
		for addr, inst := range res.ByAddress {
			instrs[addr] = inst
		}
		unknown = append(unknown, res.Unknown...)
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i].Start < unknown[j].Start })

	classifyCfg := classify.Config{
		WindowSize:    cfg.DecodeWindowSize,
		CodeThreshold: cfg.CodeThreshold,
		DataThreshold: cfg.DataThreshold,
	}
	regions := classify.Classify(art.Sections, decodedPerSection, classifyCfg)

	graph, _ := cfgbuild.Build(regions, instrs)

	procs, callGraph := procedure.Infer(graph, instrs, art.EntryPoints)

	stats := computeStatistics(instrs, unknown, art.Sections)

	result := AnalysisResult{
		Artifact:     art,
		Instructions: instrs,
		Unknown:      unknown,
		Regions:      regions,
		CFG:          graph,
		Procedures:   procs,
		CallGraph:    callGraph,
		Statistics:   stats,
		Status:       statusFor(stats.DecodeRate),
	}

	result.AsmListing = asmrender.Render(asmrender.Input{
		Instructions: instrs,
		Unknown:      unknown,
		Regions:      regions,
		CFG:          graph,
		Procedures:   procs,
	})
	result.PseudoListing = pseudo.Render(pseudo.Input{
		Instructions: instrs,
		CFG:          graph,
		Procedures:   procs,
		Style:        pseudoStyleFor(cfg.PseudocodeStyle),
	})

	return result, nil
}

func pseudoStyleFor(s PseudocodeStyle) pseudo.Style {
	if s == PseudoPythonLike {
		return pseudo.StylePythonLike
	}
	return pseudo.StyleCLike
}

func statusFor(decodeRate float64) Status {
	switch {
	case decodeRate > statusSuccessThreshold:
		return StatusSuccess
	case decodeRate < statusFailureThreshold:
		return StatusFailure
	default:
		return StatusPartial
	}
}

func emptyStatistics() Statistics {
	return Statistics{
		MnemonicHistogram: map[string]int{},
		CategoryHistogram: map[string]int{},
	}
}

func computeStatistics(instrs map[uint64]*decode.Instruction, unknown []decode.UnknownSpan, sections []ingest.Section) Statistics {
	stats := emptyStatistics()

	var decodedBytes, totalBytes uint64
	for _, sec := range sections {
		totalBytes += uint64(len(sec.Bytes))
	}

	for _, inst := range instrs {
		stats.DecodedInstructionCount++
		decodedBytes += uint64(inst.Len())
		stats.MnemonicHistogram[strings.ToLower(inst.Mnemonic)]++
		stats.CategoryHistogram[inst.Category.String()]++

		switch inst.Category {
		case isa.CategoryConditionalBranch, isa.CategoryUnconditionalBranch:
			stats.BranchCount++
		case isa.CategoryCall:
			stats.CallCount++
		case isa.CategoryReturn:
			stats.ReturnCount++
		}
	}

	var unknownBytes uint64
	for _, span := range unknown {
		unknownBytes += span.Length
	}

	stats.DecodedByteCount = decodedBytes
	stats.UnknownByteCount = unknownBytes
	if totalBytes > 0 {
		stats.DecodeRate = float64(decodedBytes) / float64(totalBytes)
	}
	return stats
}
