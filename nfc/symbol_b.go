package nfc

import "time"

/*
 * NFC-B symbol recovery (component D): NRZ-L framing, one etu (Period0)
 * per bit. Each byte is a 10-bit frame: start bit (always logic 0), 8
 * data bits LSB first, stop bit (always logic 1). EOF is recognised when
 * the etu that would carry the next byte's start bit instead reads
 * unmodulated (spec §4.D).
 *
 * Poll (PCD->PICC) direction is direct ASK: logic 0 is modulated, logic 1
 * is not, read once at the etu midpoint from ModulateDepth.
 *
 * Listen (PICC->PCD) direction load-modulates an 847.5 kHz BPSK
 * subcarrier instead: a bit is carried as a phase, and two consecutive
 * etu's are compared rather than thresholded against an envelope — the
 * phase repeating from one etu to the next leaves the bit unchanged, the
 * phase inverting toggles it. Recovered by multiplying the AC-coupled
 * signal against its one-etu-delayed copy and integrating the product
 * over the etu (current x delayed-1-symbol, spec §4.D); a flat integral
 * where a start bit is expected ends the frame.
 */

type bBitPhase int

const (
	bBitStart bBitPhase = iota
	bBitData
	bBitStop
)

type symbolB struct {
	sessionTiming
	assembler *frameAssembler
	bp        *BitrateParams
	cfg       TechConfig
	frameType FrameType
	bpsk      *integrator

	bitStart  SampleClock
	phase     bBitPhase
	dataIdx   int
	acc       byte
	threshold float32
	bitValue  int
}

func newSymbolB(bp *BitrateParams, cfg TechConfig, frameType FrameType, bpsk *integrator, maxFrameSize int, start SampleClock, sampleRate int, sessionStart time.Time) *symbolB {
	return &symbolB{
		sessionTiming: sessionTiming{sampleRate: sampleRate, sessionStart: sessionStart},
		assembler:     newFrameAssembler(maxFrameSize, frameType, int(bp.SymbolsPerSecond), start),
		bp:            bp,
		cfg:           cfg,
		frameType:     frameType,
		bpsk:          bpsk,
		bitStart:      start,
		phase:         bBitStart,
	}
}

func (m *symbolB) Step(ring *Ring, clock SampleClock) (*RawFrame, bool) {
	if m.frameType == FrameListen {
		return m.stepListen(ring, clock)
	}
	return m.stepPoll(ring, clock)
}

func (m *symbolB) stepPoll(ring *Ring, clock SampleClock) (*RawFrame, bool) {
	etu := SampleClock(m.bp.Period0SymbolSamples)
	elapsed := clock - m.bitStart
	mid := etu / 2
	if elapsed != mid {
		return nil, false
	}

	rec := ring.At(clock)
	modulated := rec.ModulateDepth >= m.cfg.MinModulationDeep && rec.ModulateDepth <= m.cfg.MaxModulationDeep
	logicOne := !modulated

	frame, done := m.commitBit(logicOne, clock)
	m.bitStart += etu
	return frame, done
}

// stepListen integrates the BPSK phase product on every sample and
// decides the bit at the etu midpoint, same cadence as stepPoll.
func (m *symbolB) stepListen(ring *Ring, clock SampleClock) (*RawFrame, bool) {
	etu := SampleClock(m.bp.Period0SymbolSamples)

	cur := ring.At(clock)
	delayed := ring.Offset(clock, int(etu))
	phase := (cur.SamplingValue - cur.FilteredValue) * (delayed.SamplingValue - delayed.FilteredValue)
	m.bpsk.Add(phase)

	elapsed := clock - m.bitStart
	mid := etu / 2
	if elapsed != mid {
		return nil, false
	}

	sum := m.bpsk.Sum()
	noiseFloor := cur.MeanDeviation*cur.MeanDeviation*8 + 1e-6

	var logicOne bool
	if m.phase == bBitStart {
		// No phase correlation at all where the start pulse belongs: EOF.
		logicOne = absf(sum) < noiseFloor
		if !logicOne {
			m.threshold = absf(sum) / 3
			m.bitValue = 0
		}
	} else {
		switch {
		case sum < -m.threshold:
			m.bitValue ^= 1 // phase inverted from the previous etu: bit toggles
		case sum > m.threshold:
			// phase repeats: bit unchanged
		}
		logicOne = m.bitValue == 1
	}

	frame, done := m.commitBit(logicOne, clock)
	m.bitStart += etu
	return frame, done
}

// commitBit feeds one decoded NRZ-L bit through the byte/stop-bit state
// machine shared by both directions.
func (m *symbolB) commitBit(logicOne bool, clock SampleClock) (*RawFrame, bool) {
	switch m.phase {
	case bBitStart:
		if logicOne {
			frame := m.assembler.Finish(NfcB, clock, m.bp.SymbolDelayDetect, m.sampleRate, m.sessionStart)
			return &frame, true
		}
		m.phase = bBitData
		m.dataIdx = 0
		m.acc = 0

	case bBitData:
		bit := byte(0)
		if logicOne {
			bit = 1
		}
		m.acc = (m.acc >> 1) | (bit << 7)
		m.dataIdx++
		if m.dataIdx == 8 {
			m.phase = bBitStop
		}

	case bBitStop:
		// Stop bit is always logic 1; a mismatch is noted as a sync error
		// but the byte is kept (spec §3: frames still emitted on
		// recoverable errors).
		m.assembler.PushByte(m.acc)
		if !logicOne {
			m.assembler.MarkSyncError()
		}
		m.phase = bBitStart
	}
	return nil, false
}

func (m *symbolB) Abort(clock SampleClock) *RawFrame {
	frame := m.assembler.Finish(NfcB, clock, m.bp.SymbolDelayDetect, m.sampleRate, m.sessionStart)
	frame.Flags |= FlagTruncated
	return &frame
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
