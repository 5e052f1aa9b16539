package nfc

import "time"

/*
 * NFC-V symbol recovery (component D): pulse-position modulation. Each
 * symbol period is divided into 4 (1-of-4) or 256 (1-of-256) slots; the
 * slot carrying the pulse is the symbol's value. detectV already located
 * the first two symbols' worth of timing and picked the coding (bits
 * field); this machine then takes one pulse slot per symbol period and
 * ends the frame at the first symbol period in which no slot carries a
 * pulse (spec §4.D). Pulse position is not checked for an EOF pattern: an
 * EOF pulse decodes as an ordinary slot value.
 */

type symbolV struct {
	sessionTiming
	assembler *frameAssembler
	bp        *BitrateParams
	cfg       TechConfig
	bitsPerSymbol int // 2 or 8

	symbolStart SampleClock
	slotWidth   SampleClock
	slotCount   int
	pulseSlot   int
	sawPulse    bool
	acc         int
	accBits     int
}

func newSymbolV(bp *BitrateParams, cfg TechConfig, bitsPerSymbol int, frameType FrameType, maxFrameSize int, start SampleClock, sampleRate int, sessionStart time.Time) *symbolV {
	slots := 1 << uint(bitsPerSymbol)
	slotWidth := SampleClock(bp.Period0SymbolSamples) / SampleClock(slots)
	if slotWidth < 1 {
		slotWidth = 1
	}
	return &symbolV{
		sessionTiming: sessionTiming{sampleRate: sampleRate, sessionStart: sessionStart},
		assembler:     newFrameAssembler(maxFrameSize, frameType, int(bp.SymbolsPerSecond), start),
		bp:            bp,
		cfg:           cfg,
		bitsPerSymbol: bitsPerSymbol,
		symbolStart:   start,
		slotWidth:     slotWidth,
	}
}

func (m *symbolV) Step(ring *Ring, clock SampleClock) (*RawFrame, bool) {
	period := SampleClock(m.bp.Period0SymbolSamples)
	elapsed := clock - m.symbolStart

	if elapsed >= period {
		eof := m.commitSymbol()
		m.symbolStart = clock
		m.slotCount = 0
		m.sawPulse = false
		if eof {
			frame := m.assembler.Finish(NfcV, clock, m.bp.SymbolDelayDetect, m.sampleRate, m.sessionStart)
			return &frame, true
		}
		return nil, false
	}

	// Sample at the midpoint of each slot.
	slotIdx := int(elapsed / m.slotWidth)
	slotMid := SampleClock(slotIdx)*m.slotWidth + m.slotWidth/2
	if elapsed != slotMid {
		return nil, false
	}
	rec := ring.At(clock)
	modulated := rec.ModulateDepth >= m.cfg.MinModulationDeep && rec.ModulateDepth <= m.cfg.MaxModulationDeep
	if modulated && !m.sawPulse {
		m.sawPulse = true
		m.pulseSlot = slotIdx
	}
	return nil, false
}

// commitSymbol pushes the located pulse slot's bits into the byte
// accumulator, or recognises EOF (no pulse located in the whole symbol,
// after at least one symbol has already been decoded).
func (m *symbolV) commitSymbol() (eof bool) {
	if !m.sawPulse {
		if m.accBits > 0 || len(m.assembler.stream.Bytes) > 0 {
			return true
		}
		return false
	}
	m.acc = (m.acc << m.bitsPerSymbol) | m.pulseSlot
	m.accBits += m.bitsPerSymbol
	if m.accBits >= 8 {
		m.accBits -= 8
		m.assembler.PushByte(byte(m.acc >> uint(m.accBits)))
	}
	return false
}

func (m *symbolV) Abort(clock SampleClock) *RawFrame {
	frame := m.assembler.Finish(NfcV, clock, m.bp.SymbolDelayDetect, m.sampleRate, m.sessionStart)
	frame.Flags |= FlagTruncated
	return &frame
}
