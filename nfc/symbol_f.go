package nfc

import "time"

/*
 * NFC-F symbol recovery (component D): Manchester coding at 212 or
 * 424 kbps. One bit per symbol period (Period0), decided from which half
 * carries the higher envelope level; detectF's polarity decision
 * (ManchesterInverted) flips the mapping for the whole frame. The frame
 * ends at the byte count given by the FeliCa length byte (payload[0]),
 * which this machine reads as soon as it is available — NFC-F carries no
 * separate EOF symbol (spec §4.D/E).
 */

type symbolF struct {
	sessionTiming
	assembler *frameAssembler
	bp        *BitrateParams
	cfg       TechConfig
	inverted  bool

	bitStart       SampleClock
	firstHalfLevel float32
	haveFirstHalf  bool

	declaredLen int // from payload[0]; 0 until the first byte commits
}

func newSymbolF(bp *BitrateParams, cfg TechConfig, inverted bool, frameType FrameType, maxFrameSize int, start SampleClock, sampleRate int, sessionStart time.Time) *symbolF {
	return &symbolF{
		sessionTiming: sessionTiming{sampleRate: sampleRate, sessionStart: sessionStart},
		assembler:     newFrameAssembler(maxFrameSize, frameType, int(bp.SymbolsPerSecond), start),
		bp:            bp,
		cfg:           cfg,
		inverted:      inverted,
		bitStart:      start,
	}
}

func (m *symbolF) Step(ring *Ring, clock SampleClock) (*RawFrame, bool) {
	period := SampleClock(m.bp.Period0SymbolSamples)
	half := period / 2
	elapsed := clock - m.bitStart

	switch {
	case elapsed == half/2:
		m.firstHalfLevel = ring.At(clock).FilteredValue
		m.haveFirstHalf = true
		return nil, false
	case elapsed == half+half/2:
		secondHalfLevel := ring.At(clock).FilteredValue
		bit := 0
		if secondHalfLevel > m.firstHalfLevel {
			bit = 1
		}
		if m.inverted {
			bit ^= 1
		}
		m.haveFirstHalf = false
		if m.assembler.PushBit(bit) && m.declaredLen == 0 && m.assembler.byteCount() == 1 {
			m.declaredLen = int(m.assembler.firstByte())
		}
		return nil, false
	case elapsed >= period:
		m.bitStart = clock
		if m.declaredLen > 0 && m.assembler.byteCount() >= m.declaredLen {
			frame := m.assembler.Finish(NfcF, clock, m.bp.SymbolDelayDetect, m.sampleRate, m.sessionStart)
			return &frame, true
		}
	}
	return nil, false
}

func (m *symbolF) Abort(clock SampleClock) *RawFrame {
	frame := m.assembler.Finish(NfcF, clock, m.bp.SymbolDelayDetect, m.sampleRate, m.sessionStart)
	frame.Flags |= FlagTruncated
	return &frame
}
