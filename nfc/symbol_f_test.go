package nfc

import (
	"testing"
	"time"
)

// runSymbolFBit drives one Manchester bit period through m, reading the
// first/second half levels from freshly-populated ring records and
// returning whatever frame (if any) the trailing rollover sample produces.
func runSymbolFBit(m *symbolF, ring *Ring, clock *SampleClock, bitValue int) *RawFrame {
	bitStart := m.bitStart
	period := SampleClock(m.bp.Period0SymbolSamples)
	half := period / 2

	first, second := float32(1), float32(0)
	if bitValue == 1 {
		first, second = 0, 1
	}
	ring.Put(bitStart+half/2, SampleRecord{FilteredValue: first})
	ring.Put(bitStart+half+half/2, SampleRecord{FilteredValue: second})

	var out *RawFrame
	for i := SampleClock(0); i <= period; i++ {
		frame, _ := m.Step(ring, *clock)
		*clock++
		if frame != nil {
			out = frame
		}
	}
	return out
}

func pushSymbolFByte(m *symbolF, ring *Ring, clock *SampleClock, b byte) *RawFrame {
	var out *RawFrame
	for i := 0; i < 8; i++ {
		bit := int(b>>uint(i)) & 1
		if frame := runSymbolFBit(m, ring, clock, bit); frame != nil {
			out = frame
		}
	}
	return out
}

func newTestSymbolF(bp *BitrateParams, frameType FrameType, inverted bool) *symbolF {
	return newSymbolF(bp, defaultTechConfig(), inverted, frameType, 256, 0, int(bp.SymbolsPerSecond), time.Unix(0, 0))
}

func TestSymbolF_FrameEndsAtDeclaredLength(t *testing.T) {
	bp := &BitrateParams{SymbolsPerSecond: 212000, Period0SymbolSamples: 8, SymbolDelayDetect: 0}
	ring := NewRing(4096)
	var clock SampleClock

	m := newTestSymbolF(bp, FrameListen, false)
	// Length byte declares a 2-byte frame.
	if f := pushSymbolFByte(m, ring, &clock, 0x02); f != nil {
		t.Fatalf("frame completed after the length byte alone, want after 2 bytes")
	}
	f := pushSymbolFByte(m, ring, &clock, 0x00)
	if f == nil {
		t.Fatalf("no frame emitted once byteCount reached the declared length")
	}
	if len(f.Data) != 2 || f.Data[0] != 0x02 || f.Data[1] != 0x00 {
		t.Fatalf("frame data = %x, want [02 00]", f.Data)
	}
	if f.FrameType != FrameListen {
		t.Fatalf("FrameType = %v, want FrameListen (direction must thread through newSymbolF)", f.FrameType)
	}
}

func TestSymbolF_PollDirectionTagsFrameTypePoll(t *testing.T) {
	bp := &BitrateParams{SymbolsPerSecond: 212000, Period0SymbolSamples: 8, SymbolDelayDetect: 0}
	ring := NewRing(4096)
	var clock SampleClock

	m := newTestSymbolF(bp, FramePoll, false)
	pushSymbolFByte(m, ring, &clock, 0x01)
	f := pushSymbolFByte(m, ring, &clock, 0x00)
	if f == nil {
		t.Fatalf("expected a completed frame")
	}
	if f.FrameType != FramePoll {
		t.Fatalf("FrameType = %v, want FramePoll", f.FrameType)
	}
}

func TestSymbolF_InvertedPolarityFlipsBits(t *testing.T) {
	bp := &BitrateParams{SymbolsPerSecond: 212000, Period0SymbolSamples: 8, SymbolDelayDetect: 0}
	ring := NewRing(4096)
	var clock SampleClock

	m := newTestSymbolF(bp, FrameListen, true)
	// Same physical levels as decode 0x02 with inverted=false, but inverted
	// polarity flips every bit, so the length byte decodes as 0xFD instead.
	pushSymbolFByte(m, ring, &clock, 0x02)
	if m.declaredLen != 0xFD {
		t.Fatalf("declaredLen = %#x, want 0xFD (ManchesterInverted must flip decoded bits)", m.declaredLen)
	}
}

func TestSymbolF_Abort_MarksTruncated(t *testing.T) {
	bp := &BitrateParams{SymbolsPerSecond: 212000, Period0SymbolSamples: 8, SymbolDelayDetect: 0}
	m := newTestSymbolF(bp, FrameListen, false)
	frame := m.Abort(100)
	if !frame.Flags.Has(FlagTruncated) {
		t.Fatalf("Abort must mark the frame truncated")
	}
}
