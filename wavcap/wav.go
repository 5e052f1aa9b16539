// Package wavcap reads and writes the capture file format of spec §6: a
// standard RIFF/WAVE container plus an added META chunk carrying the
// stream's epoch and channel key set. Grounded on the teacher's atest.go,
// which walks the same RIFF/"fmt "/"data" chunk sequence (via cgo, over a
// C FILE*) to load test signals; this is the pure-Go equivalent, plus the
// META chunk the teacher's reader never needed.
package wavcap

import "fmt"

// SampleFormat is the PCM/float layout of the data chunk payload.
type SampleFormat int

const (
	FormatPCM8 SampleFormat = iota
	FormatPCM16
	FormatPCM32
	FormatFloat32
)

func (f SampleFormat) bitsPerSample() int {
	switch f {
	case FormatPCM8:
		return 8
	case FormatPCM16:
		return 16
	case FormatPCM32, FormatFloat32:
		return 32
	default:
		return 16
	}
}

func (f SampleFormat) audioFormatTag() uint16 {
	if f == FormatFloat32 {
		return 3 // WAVE_FORMAT_IEEE_FLOAT
	}
	return 1 // WAVE_FORMAT_PCM
}

// Meta is the added META chunk (spec §6): epoch (u32 seconds) and up to
// 8 channel key ids.
type Meta struct {
	Epoch       uint32
	ChannelKeys [8]uint32
}

// Header is the fmt+META information recovered from (or supplied to) a
// capture file.
type Header struct {
	SampleRate   int
	ChannelCount int
	Format       SampleFormat
	Meta         Meta
}

const (
	riffID = "RIFF"
	waveID = "WAVE"
	fmtID  = "fmt "
	metaID = "META"
	dataID = "data"
)

var errBadFile = fmt.Errorf("wavcap: not a RIFF/WAVE file")
