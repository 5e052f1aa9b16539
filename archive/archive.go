// Package archive writes the protocol output archive format of spec §6:
// JSON with one record per emitted frame, hex payload bytes uppercase
// and colon-separated.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/josevcm/nfc-laboratory-sub003/nfc"
)

// FrameRecord is one archived frame, in the exact shape spec §6 names:
// {sampleStart, sampleEnd, timeStart, timeEnd, frameCmd, frameRate,
// frameFlags, framePhase, frameData: "HH:HH:..."}.
type FrameRecord struct {
	SampleStart uint64  `json:"sampleStart"`
	SampleEnd   uint64  `json:"sampleEnd"`
	TimeStart   float64 `json:"timeStart"`
	TimeEnd     float64 `json:"timeEnd"`
	FrameCmd    string  `json:"frameCmd"`
	FrameRate   int     `json:"frameRate"`
	FrameFlags  string  `json:"frameFlags"`
	FramePhase  string  `json:"framePhase"`
	FrameData   string  `json:"frameData"`
}

// Archive is the top-level JSON document: {"frames": [...]}.
type Archive struct {
	Frames []FrameRecord `json:"frames"`
}

// RecordFromFrame converts a decoded nfc.RawFrame into spec §6's archive
// shape. frameCmd is the technology tag (spec uses TechType.String()); a
// downstream protocol-aware renderer may replace it with a command
// mnemonic, which is out of scope here.
func RecordFromFrame(f nfc.RawFrame) FrameRecord {
	return FrameRecord{
		SampleStart: uint64(f.SampleStart),
		SampleEnd:   uint64(f.SampleEnd),
		TimeStart:   f.TimeStart,
		TimeEnd:     f.TimeEnd,
		FrameCmd:    f.TechType.String(),
		FrameRate:   f.FrameRate,
		FrameFlags:  f.Flags.String(),
		FramePhase:  f.FramePhase.String(),
		FrameData:   encodeHex(f.Data),
	}
}

// encodeHex renders data as uppercase, colon-separated hex, per spec §6
// ("hex bytes are uppercase, separator ':'").
func encodeHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

// Writer accumulates FrameRecords and writes them as a single JSON
// document on Close.
type Writer struct {
	w      io.Writer
	frames []FrameRecord
}

// NewWriter returns a Writer that serializes to w on Close.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Append records one frame.
func (aw *Writer) Append(f nfc.RawFrame) { aw.frames = append(aw.frames, RecordFromFrame(f)) }

// Close marshals every appended frame as {"frames": [...]} and writes it.
func (aw *Writer) Close() error {
	enc := json.NewEncoder(aw.w)
	enc.SetIndent("", "  ")
	return enc.Encode(Archive{Frames: aw.frames})
}
