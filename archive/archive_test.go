package archive

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/josevcm/nfc-laboratory-sub003/nfc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFromFrame_HexEncodingIsUppercaseColonSeparated(t *testing.T) {
	f := nfc.RawFrame{
		TechType:   nfc.NfcA,
		FramePhase: nfc.PhaseSense,
		Flags:      nfc.FlagCrcError,
		FrameRate:  106000,
		Data:       []byte{0x26, 0xab, 0x00},
	}
	rec := RecordFromFrame(f)
	assert.Equal(t, "26:AB:00", rec.FrameData)
	assert.Equal(t, "NfcA", rec.FrameCmd)
	assert.Equal(t, "Sense", rec.FramePhase)
	assert.Equal(t, "CrcError", rec.FrameFlags)
	assert.Equal(t, 106000, rec.FrameRate)
}

func TestRecordFromFrame_EmptyDataIsEmptyString(t *testing.T) {
	rec := RecordFromFrame(nfc.RawFrame{})
	assert.Equal(t, "", rec.FrameData)
	assert.Equal(t, "none", rec.FrameFlags)
}

func TestWriter_ClosesAsFramesDocument(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Append(nfc.RawFrame{TechType: nfc.NfcA, Data: []byte{0x01}})
	w.Append(nfc.RawFrame{TechType: nfc.NfcB, Data: []byte{0x02}})
	require.NoError(t, w.Close())

	var doc Archive
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Frames, 2)
	assert.Equal(t, "NfcA", doc.Frames[0].FrameCmd)
	assert.Equal(t, "NfcB", doc.Frames[1].FrameCmd)
	assert.Equal(t, "01", doc.Frames[0].FrameData)
}

func TestWriter_NoFramesStillProducesValidDocument(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Close())

	var doc Archive
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Empty(t, doc.Frames)
}
