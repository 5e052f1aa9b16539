package nfc

// detectB searches for the NFC-B (106 kbps ASK 10% + NRZ-L) start of
// communication: a 10-etu unmodulated pulse followed by a 2-3 etu falling
// edge, tracked as three stages with ±½-etu slack (spec §4.C).
func detectB(ring *Ring, s *detectorSlot, cfg TechConfig, clock SampleClock) bool {
	bp := &s.bitrate
	st := s.status
	rec := ring.At(clock)

	etu := SampleClock(bp.Period0SymbolSamples)
	slack := SampleClock(bp.Period0SymbolSamples / 2)

	modulated := rec.ModulateDepth >= cfg.MinModulationDeep && rec.ModulateDepth <= cfg.MaxModulationDeep

	switch st.B.stage {
	case bStageIdle:
		if modulated {
			// Possible start of the falling edge that precedes SOF_BEGIN;
			// nothing to do until we see the un-modulated plateau start.
			return false
		}
		st.B.stage = bStageSofBegin
		st.B.stageStart = clock
		st.SearchStart = clock
		return false

	case bStageSofBegin:
		elapsed := clock - st.B.stageStart
		if modulated {
			// Modulation arrived: check it landed within the 10..11 etu window.
			low, high := 10*etu-slack, 11*etu+slack
			if elapsed >= low && elapsed <= high {
				st.B.stage = bStageSofIdle
				st.B.stageStart = clock
				return false
			}
			// Too early or too late: not a valid SOF, restart search.
			st.B.stage = bStageIdle
			return false
		}
		if elapsed > 11*etu+slack {
			st.B.stage = bStageIdle
		}
		return false

	case bStageSofIdle:
		elapsed := clock - st.B.stageStart
		if !modulated {
			low, high := 2*etu-slack, 3*etu+slack
			if elapsed >= low && elapsed <= high {
				st.B.stage = bStageSofEnd
				st.SearchSync = clock
				st.LastSymbolStart = st.SearchStart
				return true
			}
			st.B.stage = bStageIdle
			return false
		}
		if elapsed > 3*etu+slack {
			st.B.stage = bStageIdle
		}
		return false

	default:
		st.B.stage = bStageIdle
		return false
	}
}
