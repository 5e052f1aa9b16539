package nfc

// detectF searches for the NFC-F (212/424 kbps Manchester) preamble: 48
// consecutive manchester transitions, the pulse-width counter reaching 95.
// After transition #95 the polarity is decided by comparing the latest
// correlation value against the running average; a much smaller value
// flags the inverted variant and shifts the sync phase by half a symbol
// (spec §4.C; Open Question in spec §9 resolved: only exactly 95 commits).
func detectF(ring *Ring, s *detectorSlot, cfg TechConfig, clock SampleClock) bool {
	bp := &s.bitrate
	st := s.status
	rec := ring.At(clock)

	sum := st.Integrator.Add(rec.SamplingValue)
	phase := int(clock) % len(st.Correlation.values)
	st.Correlation.Put(phase, sum)

	if clock < SampleClock(bp.Period1SymbolSamples) {
		return false
	}

	factor := st.Correlation.Factor(phase, bp.Period2SymbolSamples)
	wasPositive := st.PhaseReference >= 0
	isPositive := factor >= 0
	st.PhaseReference = factor

	if rec.ModulateDepth < cfg.MinModulationDeep || rec.ModulateDepth > cfg.MaxModulationDeep {
		// Too weak to count as a genuine transition; don't reset, a noisy
		// sample shouldn't throw away legitimate progress.
		return false
	}

	if wasPositive != isPositive {
		st.F.transitions++
		// Running average of the correlation magnitude across transitions,
		// used only to judge the polarity of transition #95.
		n := float32(st.F.transitions)
		st.F.avgCorr += (abs32(factor) - st.F.avgCorr) / n
	}

	const commitTransitions = 95
	if st.F.transitions == commitTransitions {
		if abs32(factor) < 0.5*st.F.avgCorr {
			st.F.inverted = true
			st.ManchesterInverted = true
			st.SearchSync = clock + SampleClock(bp.Period1SymbolSamples)
		} else {
			st.SearchSync = clock
		}
		st.LastSymbolStart = st.SearchSync
		return true
	}

	if st.F.transitions > commitTransitions {
		// Never accepted late per spec §9 Open Question; restart clean.
		st.F.transitions = 0
		st.F.avgCorr = 0
		st.F.inverted = false
	}
	return false
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
