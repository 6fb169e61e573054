package procedure

import (
	"sort"

	"github.com/go-zarch/zrecon/cfgbuild"
)

// CallGraphEdge is a call site resolved (or not) against the procedure
// set, grounded on the CallEdge shape of
// cf0b33e4_zboralski-unflutter's internal/disasm/calledge.go.
type CallGraphEdge struct {
	FromPC     uint64 `json:"from_pc"`
	FromProc   string `json:"from_proc"`
	TargetPC   uint64 `json:"target_pc,omitempty"`
	TargetProc string `json:"target_proc,omitempty"`
	Resolved   bool   `json:"resolved"`
}

// CallGraph is the directed graph over procedures spec.md §3 describes,
// with edges labeled by call-site address.
type CallGraph struct {
	Edges []CallGraphEdge
}

// buildCallGraph implements spec.md §4.5: for every CALL edge whose
// target lies inside some procedure, emit a call-graph edge labeled by
// call-site address; indirect calls contribute an UNRESOLVED entry.
func buildCallGraph(cfg *cfgbuild.CFG, procs []Procedure) CallGraph {
	procByBlock := make(map[uint64]*Procedure)
	for i := range procs {
		for _, b := range procs[i].Blocks {
			procByBlock[b] = &procs[i]
		}
	}
	procByEntry := make(map[uint64]*Procedure)
	for i := range procs {
		procByEntry[procs[i].Entry] = &procs[i]
	}

	var fromAddrs []uint64
	for addr := range cfg.Edges {
		fromAddrs = append(fromAddrs, addr)
	}
	sort.Slice(fromAddrs, func(i, j int) bool { return fromAddrs[i] < fromAddrs[j] })

	var g CallGraph
	for _, leader := range fromAddrs {
		fromProc := procByBlock[leader]
		fromID := ""
		if fromProc != nil {
			fromID = fromProc.ID
		}
		// The call site is the block's terminator instruction, not its
		// leader: a CALL only ever terminates a block, but the block may
		// have a prologue or other sequential instructions before it.
		callSite := leader
		if blk, ok := cfg.BlockAt(leader); ok {
			callSite = blk.Terminator
		}

		for _, e := range cfg.Edges[leader] {
			if e.Type != cfgbuild.EdgeCall {
				continue
			}
			if !e.HasTo {
				g.Edges = append(g.Edges, CallGraphEdge{FromPC: callSite, FromProc: fromID, Resolved: false})
				continue
			}
			target := procByEntry[e.To]
			if target == nil {
				target = procByBlock[e.To]
			}
			if target == nil {
				continue
			}
			g.Edges = append(g.Edges, CallGraphEdge{
				FromPC:     callSite,
				FromProc:   fromID,
				TargetPC:   e.To,
				TargetProc: target.ID,
				Resolved:   true,
			})
		}
	}
	return g
}
