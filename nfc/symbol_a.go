package nfc

import "time"

/*
 * NFC-A symbol recovery (component D): Modified Miller coding on the
 * poll (PCD->PICC) direction, Manchester-coded subcarrier load modulation
 * on the listen (PICC->PCD) direction. One bit is resolved per symbol
 * period (Period0SymbolSamples), by checking which half of the period
 * carried the modulation pulse.
 */

type symbolA struct {
	sessionTiming
	assembler *frameAssembler
	bp        *BitrateParams
	cfg       TechConfig
	frameType FrameType

	symbolStart     SampleClock
	pulseFirstHalf  bool
	pulseSecondHalf bool
	prevBitZero     bool
	sawAnyBit       bool
	idlePeriods     int

	expectParity bool
}

// newSymbolA starts a new NFC-A frame assembler at the SOF boundary the
// detector bank committed to.
func newSymbolA(bp *BitrateParams, cfg TechConfig, frameType FrameType, maxFrameSize int, start SampleClock, sampleRate int, sessionStart time.Time) *symbolA {
	return &symbolA{
		sessionTiming: sessionTiming{sampleRate: sampleRate, sessionStart: sessionStart},
		assembler:     newFrameAssembler(maxFrameSize, frameType, int(bp.SymbolsPerSecond), start),
		bp:            bp,
		cfg:           cfg,
		frameType:     frameType,
		symbolStart:   start,
	}
}

func (m *symbolA) Step(ring *Ring, clock SampleClock) (*RawFrame, bool) {
	period := SampleClock(m.bp.Period0SymbolSamples)
	elapsed := clock - m.symbolStart
	if elapsed < period {
		rec := ring.At(clock)
		modulated := rec.ModulateDepth >= m.cfg.MinModulationDeep && rec.ModulateDepth <= m.cfg.MaxModulationDeep
		if modulated {
			if elapsed < period/2 {
				m.pulseFirstHalf = true
			} else {
				m.pulseSecondHalf = true
			}
		}
		return nil, false
	}

	eof := m.commitSymbol()
	m.symbolStart = clock
	if eof {
		frame := m.assembler.Finish(NfcA, clock, m.bp.SymbolDelayDetect, m.sampleRate, m.sessionStart)
		return &frame, true
	}
	return nil, false
}

// commitSymbol decides the bit (or EOF) for the period just elapsed and
// feeds it to the frame assembler, reporting whether it recognised EOF.
func (m *symbolA) commitSymbol() (eof bool) {
	pulse := m.pulseFirstHalf || m.pulseSecondHalf
	defer func() { m.pulseFirstHalf, m.pulseSecondHalf = false, false }()

	if !pulse {
		m.idlePeriods++
		// Modified Miller has no pulse at all for pattern Y, "0" following
		// "0"; a lone silent period after a "0" bit is that pattern, not
		// EOF, and resolves immediately so a run of zeros keeps decoding.
		if m.frameType == FramePoll && m.sawAnyBit && m.prevBitZero && m.idlePeriods == 1 {
			m.pushBit(0)
			m.idlePeriods = 0
			return false
		}
		// EOF (spec §4.D "Y·Y"): two consecutive silent periods with no
		// pending zero to resolve ends the frame.
		if m.sawAnyBit && m.idlePeriods >= 2 {
			return true
		}
		return false
	}
	m.idlePeriods = 0

	if m.frameType == FramePoll {
		// Modified Miller: a pause in the first half codes 1; a pause only
		// in the second half codes 0.
		bit := 0
		if m.pulseFirstHalf {
			bit = 1
		}
		m.pushBit(bit)
		m.prevBitZero = bit == 0
	} else {
		// Manchester: pulse confined to the first half is a H->L
		// transition (bit 0); pulse confined to the second half is L->H
		// (bit 1). A pulse spanning both halves is treated as the
		// stronger (second-half) transition.
		bit := 1
		if m.pulseFirstHalf && !m.pulseSecondHalf {
			bit = 0
		}
		m.pushBit(bit)
		m.prevBitZero = bit == 0
	}
	m.sawAnyBit = true
	return false
}

func (m *symbolA) pushBit(bit int) {
	if m.expectParity {
		m.assembler.PushParityBit(bit)
		m.expectParity = false
		return
	}
	if m.assembler.PushBit(bit) {
		m.expectParity = true
	}
}

func (m *symbolA) Abort(clock SampleClock) *RawFrame {
	frame := m.assembler.Finish(NfcA, clock, m.bp.SymbolDelayDetect, m.sampleRate, m.sessionStart)
	frame.Flags |= FlagTruncated
	return &frame
}
