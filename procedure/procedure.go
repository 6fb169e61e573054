// Package procedure groups CFG basic blocks into procedures and infers
// their calling-convention linkage, per spec.md §4.5. It never decodes
// bytes itself; it only reasons over the CFG and the instructions the
// decoder already produced.
package procedure

import (
	"fmt"
	"sort"

	"github.com/go-zarch/zrecon/cfgbuild"
	"github.com/go-zarch/zrecon/decode"
	"github.com/go-zarch/zrecon/isa"
)

// Linkage is the closed set of calling-convention classifications a
// procedure can be assigned.
type Linkage string

const (
	LinkageStandard      Linkage = "standard"
	LinkageLEConformant  Linkage = "le-conformant"
	LinkageUnknown       Linkage = "unknown"
)

// DetectionReason records which entry-point source produced a
// procedure, per spec.md §4.5's four-source ordering.
type DetectionReason string

const (
	ReasonDeclared             DetectionReason = "declared"
	ReasonCallTarget           DetectionReason = "call-target"
	ReasonProloguePattern      DetectionReason = "prologue-pattern"
	ReasonRegionStartFallback  DetectionReason = "region-start-fallback"
	ReasonOrphan               DetectionReason = "orphan"
)

// Procedure is a connected set of basic blocks rooted at one entry
// address.
type Procedure struct {
	ID         string // PROC_<hex-addr>, or PROC_ORPHAN_<hex-addr>
	Entry      uint64
	Exits      []uint64 // ascending
	Blocks     []uint64 // leader addresses, ascending
	Linkage    Linkage
	Confidence isa.Confidence
	Reason     DetectionReason
}

// Infer builds every procedure and the call graph over an artifact's
// CFG, per spec.md §4.5.
func Infer(cfg *cfgbuild.CFG, instrs map[uint64]*decode.Instruction, declaredEntries []uint64) ([]Procedure, CallGraph) {
	entries := collectEntries(cfg, instrs, declaredEntries)

	claimed := make(map[uint64]bool)
	var procs []Procedure
	for _, e := range entries {
		if claimed[e.addr] {
			continue
		}
		if _, ok := cfg.BlockAt(e.addr); !ok {
			continue
		}
		p := walkBody(cfg, instrs, e, claimed)
		procs = append(procs, p)
	}

	procs = append(procs, orphanProcedures(cfg, claimed)...)
	sort.Slice(procs, func(i, j int) bool { return procs[i].Entry < procs[j].Entry })

	graph := buildCallGraph(cfg, procs)
	return procs, graph
}

type entryCandidate struct {
	addr       uint64
	confidence isa.Confidence
	reason     DetectionReason
}

// collectEntries implements spec.md §4.5's four-source, deduplicated,
// address-ordered union: declared entries, CALL-edge targets, prologue
// matches, then one fallback per CODE region, each source only
// contributing an address the earlier sources didn't already claim.
func collectEntries(cfg *cfgbuild.CFG, instrs map[uint64]*decode.Instruction, declared []uint64) []entryCandidate {
	seen := make(map[uint64]bool)
	var out []entryCandidate

	add := func(addr uint64, conf isa.Confidence, reason DetectionReason) {
		if seen[addr] {
			return
		}
		seen[addr] = true
		out = append(out, entryCandidate{addr: addr, confidence: conf, reason: reason})
	}

	for _, a := range declared {
		add(a, isa.High, ReasonDeclared)
	}

	for _, edges := range cfg.Edges {
		for _, e := range edges {
			if e.Type == cfgbuild.EdgeCall && e.HasTo {
				add(e.To, isa.High, ReasonCallTarget)
			}
		}
	}

	for _, b := range cfg.Blocks {
		if b.External {
			continue
		}
		if matchesProloguePattern(b, instrs) {
			add(b.Leader, isa.Medium, ReasonProloguePattern)
		}
	}

	for _, r := range cfg.Regions {
		if blk, ok := firstBlockInRegion(cfg, r); ok {
			add(blk, isa.Low, ReasonRegionStartFallback)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].addr < out[j].addr })
	return out
}

func firstBlockInRegion(cfg *cfgbuild.CFG, r cfgbuild.RegionSpan) (uint64, bool) {
	best := uint64(0)
	found := false
	for _, b := range cfg.Blocks {
		if b.External || b.Leader < r.Start || b.Leader >= r.End {
			continue
		}
		if !found || b.Leader < best {
			best = b.Leader
			found = true
		}
	}
	return best, found
}

// matchesProloguePattern implements the prologue heuristic: an STM
// R14,R12,12(R13) at block start, optionally followed by a
// base-register establishment (LR Rn,R15 or BALR Rn,0).
func matchesProloguePattern(b cfgbuild.BasicBlock, instrs map[uint64]*decode.Instruction) bool {
	if len(b.Instrs) == 0 {
		return false
	}
	first := instrs[b.Instrs[0]]
	return isSTMProlog(first)
}

func isSTMProlog(inst *decode.Instruction) bool {
	if inst == nil || inst.Mnemonic != "STM" || len(inst.Operands) != 3 {
		return false
	}
	r1, r3, mem := inst.Operands[0], inst.Operands[1], inst.Operands[2]
	return r1.Reg == 14 && r3.Reg == 12 && mem.Base == 13 && mem.Disp == 12
}

// establishesBaseRegister12 reports whether the instruction sets up R12
// as a base register (LR 12,15 or BALR 12,0), the USING *,R12 pattern
// spec.md §4.5 calls the le-conformant signal.
func establishesBaseRegister12(inst *decode.Instruction) bool {
	if inst == nil || len(inst.Operands) == 0 {
		return false
	}
	switch inst.Mnemonic {
	case "LR":
		return len(inst.Operands) == 2 && inst.Operands[0].Reg == 12 && inst.Operands[1].Reg == 15
	case "BALR":
		return len(inst.Operands) == 2 && inst.Operands[0].Reg == 12 && inst.Operands[1].Reg == 0
	}
	return false
}

// walkBody performs the forward reachability walk of spec.md §4.5:
// follow FALLTHROUGH/BRANCH_*/UNCONDITIONAL edges, stop at RETURN and
// at blocks already claimed by an earlier entry. CALL edges never
// extend the body.
func walkBody(cfg *cfgbuild.CFG, instrs map[uint64]*decode.Instruction, e entryCandidate, claimed map[uint64]bool) Procedure {
	p := Procedure{
		ID:         fmt.Sprintf("PROC_%08X", e.addr),
		Entry:      e.addr,
		Confidence: e.confidence,
		Reason:     e.reason,
	}

	queue := []uint64{e.addr}
	visited := make(map[uint64]bool)
	hasProlog := false
	hasEpilog := false
	hasBase12 := false

	for len(queue) > 0 {
		addr := queue[0]
		queue = queue[1:]
		if visited[addr] || claimed[addr] {
			continue
		}
		blk, ok := cfg.BlockAt(addr)
		if !ok || blk.External {
			continue
		}
		visited[addr] = true
		claimed[addr] = true
		p.Blocks = append(p.Blocks, addr)

		if addr == e.addr && len(blk.Instrs) > 0 {
			first := instrs[blk.Instrs[0]]
			hasProlog = isSTMProlog(first)
			if len(blk.Instrs) > 1 && establishesBaseRegister12(instrs[blk.Instrs[1]]) {
				hasBase12 = true
			}
		}

		if blk.TermKind == cfgbuild.TermReturn {
			p.Exits = append(p.Exits, blk.Terminator)
			hasEpilog = true
		}
		if isEpilogBlock(blk, instrs) {
			hasEpilog = true
		}

		for _, edge := range cfg.Edges[addr] {
			switch edge.Type {
			case cfgbuild.EdgeFallthrough, cfgbuild.EdgeBranchTaken, cfgbuild.EdgeBranchNotTaken, cfgbuild.EdgeUnconditional:
				if edge.HasTo && !visited[edge.To] && !claimed[edge.To] {
					queue = append(queue, edge.To)
				}
			}
		}
	}

	sort.Slice(p.Blocks, func(i, j int) bool { return p.Blocks[i] < p.Blocks[j] })
	sort.Slice(p.Exits, func(i, j int) bool { return p.Exits[i] < p.Exits[j] })
	p.Linkage = classifyLinkage(hasProlog, hasEpilog, hasBase12)
	return p
}

// isEpilogBlock recognizes BR 14 / BCR 15,14 at a block's terminator,
// the return-site pattern spec.md §4.5 requires for "standard" linkage
// independent of the category-level Return classification (a raw BCR
// 15,14 is already categorized CategoryReturn upstream, but this check
// keeps the linkage rule self-contained and explicit about the pattern
// it is matching).
func isEpilogBlock(b *cfgbuild.BasicBlock, instrs map[uint64]*decode.Instruction) bool {
	if len(b.Instrs) == 0 {
		return false
	}
	last := instrs[b.Instrs[len(b.Instrs)-1]]
	if last == nil || last.Mnemonic != "BCR" || len(last.Operands) != 1 {
		return false
	}
	return last.Mask == 15 && last.Operands[0].Reg == 14
}

func classifyLinkage(hasProlog, hasEpilog, hasBase12 bool) Linkage {
	switch {
	case hasProlog && hasEpilog && hasBase12:
		return LinkageLEConformant
	case hasProlog && hasEpilog:
		return LinkageStandard
	default:
		return LinkageUnknown
	}
}

// orphanProcedures implements spec.md §4: blocks no entry walk claimed
// become a synthetic PROC_ORPHAN_<region-start> procedure, one per
// CODE region that still has unclaimed blocks.
func orphanProcedures(cfg *cfgbuild.CFG, claimed map[uint64]bool) []Procedure {
	byRegion := make(map[uint64][]uint64)
	for _, r := range cfg.Regions {
		for _, b := range cfg.Blocks {
			if b.External || claimed[b.Leader] {
				continue
			}
			if b.Leader >= r.Start && b.Leader < r.End {
				byRegion[r.Start] = append(byRegion[r.Start], b.Leader)
			}
		}
	}

	var starts []uint64
	for start := range byRegion {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	var procs []Procedure
	for _, start := range starts {
		blocks := byRegion[start]
		sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })
		for _, addr := range blocks {
			claimed[addr] = true
		}
		procs = append(procs, Procedure{
			ID:         fmt.Sprintf("PROC_ORPHAN_%08X", start),
			Entry:      blocks[0],
			Blocks:     blocks,
			Linkage:    LinkageUnknown,
			Confidence: isa.Low,
			Reason:     ReasonOrphan,
		})
	}
	return procs
}
