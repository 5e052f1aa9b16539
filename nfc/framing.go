package nfc

import "time"

/*
 * Bitstream & Framing (component E).
 *
 * A small helper shared by every per-technology symbol state machine: an
 * 8-bit accumulator that commits a byte on the tech's byte boundary (8
 * data bits, plus an ITU parity bit for NFC-A), enforces max_frame_size,
 * and records sample-accurate start/end once the pipeline delay has been
 * compensated.
 */

// frameAssembler accumulates bits/bytes for one in-progress frame.
type frameAssembler struct {
	maxFrameSize int
	stream       StreamStatus
	frame        FrameStatus
}

func newFrameAssembler(maxFrameSize int, frameType FrameType, symbolRate int, start SampleClock) *frameAssembler {
	return &frameAssembler{
		maxFrameSize: maxFrameSize,
		frame: FrameStatus{
			FrameType:  frameType,
			SymbolRate: symbolRate,
			FrameStart: start,
		},
	}
}

// PushBit appends one LSB-first data bit to the 8-bit accumulator,
// committing a byte once 8 data bits have landed. It reports whether a
// byte was just committed, so the caller (NFC-A only) knows the next bit
// it receives is the ITU parity bit rather than the first bit of the next
// byte.
func (a *frameAssembler) PushBit(bit int) (byteCommitted bool) {
	a.stream.Acc = (a.stream.Acc >> 1) | byte(bit<<7)
	a.stream.BitCount++
	if a.stream.BitCount == 8 {
		a.commitByte(a.stream.Acc)
		a.stream.Acc = 0
		a.stream.BitCount = 0
		return true
	}
	return false
}

// PushParityBit validates the ITU even-parity bit for the byte just
// committed by PushBit, setting FlagParityError on mismatch but keeping
// the byte (spec §4.E: "On parity mismatch, sets ParityError but keeps
// byte").
func (a *frameAssembler) PushParityBit(bit int) (ok bool) {
	if len(a.stream.Bytes) == 0 {
		return true
	}
	last := a.stream.Bytes[len(a.stream.Bytes)-1]
	ok = evenParity(last) == bit
	if !ok {
		a.stream.Parity = true // sticky: surfaces as FlagParityError in Finish
	}
	return ok
}

// PushByte appends a complete byte directly (technologies without a
// shared bit-accumulator boundary per byte, e.g. NRZ-L start/stop framing
// or Manchester cell decisions that already resolve a whole byte).
func (a *frameAssembler) PushByte(b byte) { a.commitByte(b) }

func (a *frameAssembler) commitByte(b byte) {
	if a.stream.Truncated {
		return
	}
	if len(a.stream.Bytes) >= a.maxFrameSize {
		a.stream.Truncated = true
		return
	}
	a.stream.Bytes = append(a.stream.Bytes, b)
}

// byteCount reports how many bytes have committed so far.
func (a *frameAssembler) byteCount() int { return len(a.stream.Bytes) }

// firstByte returns the first committed byte, or 0 if none has landed yet.
func (a *frameAssembler) firstByte() byte {
	if len(a.stream.Bytes) == 0 {
		return 0
	}
	return a.stream.Bytes[0]
}

// Truncated reports whether max_frame_size has been reached.
func (a *frameAssembler) Truncated() bool { return a.stream.Truncated }

// MarkSyncError sets the sticky flag surfaced as FlagSyncError in Finish,
// for framing violations that aren't CRC or parity (e.g. a malformed
// NFC-B stop bit).
func (a *frameAssembler) MarkSyncError() { a.stream.Sync = true }

// Finish builds the emitted RawFrame: computes the CRC/flags for tech and
// writes sample-accurate start/end with the detector pipeline delay
// compensated out. sessionStart is the wall-clock time of sample 0, used
// to stamp DateTime.
func (a *frameAssembler) Finish(tech Tech, end SampleClock, pipelineDelay int, sampleRate int, sessionStart time.Time) RawFrame {
	a.frame.FrameEnd = end

	flags := Flags(0)
	if a.stream.Truncated {
		flags |= FlagTruncated
	}
	if a.stream.Parity {
		flags |= FlagParityError
	}
	if a.stream.Sync {
		flags |= FlagSyncError
	}

	data := a.stream.Bytes
	if !a.stream.Truncated && crcApplicable(tech, len(data)) {
		if !crcValid(tech, data) {
			flags |= FlagCrcError
		}
	}

	sampleStart := a.frame.FrameStart
	if int(sampleStart) >= pipelineDelay {
		sampleStart -= SampleClock(pipelineDelay)
	}
	sampleEnd := end
	if int(sampleEnd) >= pipelineDelay {
		sampleEnd -= SampleClock(pipelineDelay)
	}
	if sampleEnd < sampleStart {
		sampleEnd = sampleStart
	}

	timeStart := float64(sampleStart) / float64(sampleRate)
	timeEnd := float64(sampleEnd) / float64(sampleRate)
	wall := sessionStart.Add(time.Duration(timeStart * float64(time.Second)))
	return RawFrame{
		TechType:    tech,
		FrameType:   a.frame.FrameType,
		Flags:       flags,
		FrameRate:   a.frame.SymbolRate,
		SampleRate:  sampleRate,
		SampleStart: sampleStart,
		SampleEnd:   sampleEnd,
		TimeStart:   timeStart,
		TimeEnd:     timeEnd,
		DateTime:    wall,
		Data:        data,
	}
}
