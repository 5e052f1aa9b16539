package nfc

// detectA searches for the NFC-A (106 kbps Modified Miller) start of
// communication: a negative correlation peak exceeding
// correlation_threshold against the nominal full-scale envelope, with
// modulation depth inside the configured range (spec §4.C).
//
// Samples are normalized to roughly [-1,+1] (spec §6), so the nominal
// full-scale envelope used as the threshold's reference is 1.0.
const nominalEnvelopePeak = 1.0

func detectA(ring *Ring, s *detectorSlot, cfg TechConfig, clock SampleClock) bool {
	bp := &s.bitrate
	st := s.status

	rec := ring.At(clock)
	sum := st.Integrator.Add(rec.SamplingValue)
	phase := int(clock) % len(st.Correlation.values)
	st.Correlation.Put(phase, sum)

	if st.SearchStart == 0 && clock > 0 {
		st.SearchStart = clock
	}
	if clock-st.SearchStart < SampleClock(bp.Period1SymbolSamples) {
		// Not enough history yet to form a correlation factor.
		return false
	}

	factor := st.Correlation.Factor(phase, bp.Period2SymbolSamples)
	if factor < st.PeakValue {
		st.PeakValue = factor
		st.PeakTime = clock
	}
	if rec.ModulateDepth > st.DepthPeak {
		st.DepthPeak = rec.ModulateDepth
	}

	threshold := -cfg.CorrelationThreshold * nominalEnvelopePeak
	if factor <= threshold && rec.ModulateDepth >= cfg.MinModulationDeep && rec.ModulateDepth <= cfg.MaxModulationDeep {
		st.A.pulseSeen = true
		st.SearchSync = clock
		return true
	}

	// Failure semantics: window-end without a qualifying peak resets the
	// search so the bank keeps scanning instead of locking onto noise.
	if clock-st.SearchStart >= SampleClock(bp.Period0SymbolSamples*2) {
		st.PeakValue = 0
		st.DepthPeak = 0
		st.SearchStart = clock
	}
	return false
}
