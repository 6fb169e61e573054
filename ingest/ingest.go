// Package ingest implements the Ingestor described in spec.md §4.1: it
// takes raw bytes and a filename and produces an immutable Artifact —
// detected format, sections, and declared entry points — without
// decoding a single instruction. Nothing downstream mutates an
// Artifact once Ingest returns it.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Format is the closed set of artifact formats this pipeline
// recognizes by leading-byte heuristics.
type Format string

const (
	FormatLoadModule    Format = "load-module"
	FormatProgramObject Format = "program-object"
	FormatUnknown       Format = "unknown"
)

// Section is an ordered, addressed span of an Artifact's bytes.
type Section struct {
	Name    string
	Base    uint64
	Bytes   []byte
}

// Artifact is the immutable container produced by Ingest.
type Artifact struct {
	ID           string
	Hash         string
	Format       Format
	Sections     []Section
	EntryPoints  []uint64
}

// eyecatcherGOFF is the leading 4-byte eyecatcher of a GOFF/object-deck
// program object ("\x03\xF0\x00\x00" identifies a GOFF ESD record in
// the first physical record); eyecatcherLoadModule below is the classic
// load-module "IEWL"-style marker some packagers prepend. Both are
// best-effort: anything else falls back to FormatUnknown, per spec.md
// §4.1 ("format detection is best-effort... on failure, format is
// unknown and the entire file becomes a single section at address 0x0").
var (
	eyecatcherGOFF        = []byte{0x03, 0xF0, 0x00, 0x00}
	eyecatcherLoadModule  = []byte("IEWL")
)

// Ingest detects the artifact's format and builds its section table.
// An unreadable-file condition is the caller's responsibility to
// surface before calling Ingest (spec.md §4.1: "an unreadable file
// surfaces as a fatal ingestion error"); Ingest itself only ever fails
// if filename is empty, since every other input — including a
// zero-length file — yields a valid, empty-but-well-formed Artifact.
func Ingest(data []byte, filename string, entryHints []uint64) (Artifact, error) {
	if filename == "" {
		return Artifact{}, errors.New("ingest: filename must not be empty")
	}

	sum := sha256.Sum256(data)
	art := Artifact{
		ID:   stem(filename),
		Hash: hex.EncodeToString(sum[:]),
	}

	switch {
	case len(data) == 0:
		art.Format = FormatUnknown
	case hasPrefix(data, eyecatcherGOFF):
		art.Format = FormatProgramObject
	case hasPrefix(data, eyecatcherLoadModule):
		art.Format = FormatLoadModule
	default:
		art.Format = FormatUnknown
	}

	art.Sections = sectionsFor(art.Format, data)
	art.EntryPoints = dedupeSorted(append(declaredEntryPoints(art.Format, data), entryHints...))

	return art, nil
}

func hasPrefix(data, prefix []byte) bool {
	return len(data) >= len(prefix) && string(data[:len(prefix)]) == string(prefix)
}

func stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// sectionsFor returns the section table for a recognized format, or a
// single section at address 0x0 covering the whole file when the
// format is unknown (spec.md §4.1).
func sectionsFor(format Format, data []byte) []Section {
	if len(data) == 0 {
		return nil
	}
	switch format {
	case FormatLoadModule, FormatProgramObject:
		// Recognized headers are assumed to carry their own base
		// address in a fixed header field; this pipeline does not
		// implement the full GOFF/load-module header grammar (out of
		// the analysis core's scope per spec.md §1 — "mainframe-side
		// artifact extraction" is an external collaborator), so a
		// recognized format still degrades to a single section unless
		// a more specific extractor has already split it upstream.
		return []Section{{Name: "CSECT", Base: 0, Bytes: data}}
	default:
		return []Section{{Name: "UNKNOWN", Base: 0, Bytes: data}}
	}
}

// declaredEntryPoints extracts entry addresses from a recognized
// header. Neither format's header grammar is parsed here (see
// sectionsFor); declared entries are therefore always empty unless
// supplied via entryHints, matching spec.md §4.1's "otherwise empty."
func declaredEntryPoints(format Format, data []byte) []uint64 {
	return nil
}

func dedupeSorted(addrs []uint64) []uint64 {
	if len(addrs) == 0 {
		return nil
	}
	seen := make(map[uint64]bool, len(addrs))
	out := make([]uint64, 0, len(addrs))
	for _, a := range addrs {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	// insertion sort is fine here: entry-point lists are tiny.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
