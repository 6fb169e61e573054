package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-zarch/zrecon/ingest"
)

func TestIngestRejectsEmptyFilename(t *testing.T) {
	_, err := ingest.Ingest([]byte{0x01}, "", nil)
	assert.Error(t, err)
}

func TestIngestEmptyFileYieldsNoSections(t *testing.T) {
	art, err := ingest.Ingest(nil, "empty.bin", nil)
	require.NoError(t, err)

	assert.Equal(t, ingest.FormatUnknown, art.Format)
	assert.Empty(t, art.Sections)
}

func TestIngestUnrecognizedFormatFallsBackToSingleSection(t *testing.T) {
	data := []byte{0x07, 0xFE, 0x00, 0x00}
	art, err := ingest.Ingest(data, "prog.bin", nil)
	require.NoError(t, err)

	assert.Equal(t, ingest.FormatUnknown, art.Format)
	require.Len(t, art.Sections, 1)
	assert.Equal(t, uint64(0), art.Sections[0].Base)
	assert.Equal(t, data, art.Sections[0].Bytes)
}

func TestIngestDedupesAndSortsEntryHints(t *testing.T) {
	art, err := ingest.Ingest([]byte{0x00}, "prog.bin", []uint64{0x200, 0x100, 0x200})
	require.NoError(t, err)

	assert.Equal(t, []uint64{0x100, 0x200}, art.EntryPoints)
}

func TestIngestStemsFilenameIntoID(t *testing.T) {
	art, err := ingest.Ingest([]byte{0x00}, "/tmp/dir/program.load", nil)
	require.NoError(t, err)

	assert.Equal(t, "program", art.ID)
	assert.NotEmpty(t, art.Hash)
}
