package nfc

// detectV searches for the NFC-V (26.48 kbps PPM) two-pulse start of
// communication. The first pulse sets the symbol start; the second
// pulse's position selects the code: landing near the 3rd quarter-period
// boundary selects 1-of-4 (2 bits/symbol), near the 4th selects 1-of-256
// (8 bits/symbol) (spec §4.C).
func detectV(ring *Ring, s *detectorSlot, cfg TechConfig, clock SampleClock) bool {
	bp := &s.bitrate
	st := s.status
	rec := ring.At(clock)

	rising := rec.ModulateDepth >= cfg.MinModulationDeep && rec.ModulateDepth <= cfg.MaxModulationDeep
	wasRising := st.PhaseReference != 0
	st.PhaseReference = 0
	if rising {
		st.PhaseReference = 1
	}
	pulseEdge := rising && !wasRising
	if !pulseEdge {
		if st.V.haveFirst && clock-st.V.firstPulse > SampleClock(bp.Period0SymbolSamples) {
			// No qualifying second pulse within one symbol: give up.
			st.V = vScratch{}
		}
		return false
	}

	if !st.V.haveFirst {
		st.V.haveFirst = true
		st.V.firstPulse = clock
		st.SearchStart = clock
		return false
	}

	elapsed := clock - st.V.firstPulse
	slack := SampleClock(bp.Period8SymbolSamples)
	quarter := SampleClock(bp.Period2SymbolSamples)

	switch {
	case absClock(elapsed, 3*quarter) <= slack:
		st.V.bits = 2
	case absClock(elapsed, 4*quarter) <= slack:
		st.V.bits = 8
	default:
		st.V = vScratch{}
		return false
	}

	st.V.secondPulse = clock
	st.SearchSync = clock
	st.LastSymbolStart = st.V.firstPulse
	return true
}

func absClock(a, b SampleClock) SampleClock {
	if a > b {
		return a - b
	}
	return b - a
}
