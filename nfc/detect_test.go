package nfc

import "testing"

func TestDetectorBank_WiresOneSlotPerEnabledTech(t *testing.T) {
	cfg := DefaultConfig()
	bank := NewDetectorBank(NewRing(4096), cfg)
	for _, tech := range []Tech{NfcA, NfcB, NfcF, NfcF, NfcV} {
		if bank.Slot(tech) == nil {
			t.Fatalf("no slot found for %v", tech)
		}
	}
	if bank.Slot(Iso7816) != nil {
		t.Fatalf("iso7816 isn't a standardRates entry and must not get a detector slot")
	}
}

func TestDetectorBank_FeedSkipsLockedSlotsAndResetAllUnlocks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NfcB.Enabled = false
	cfg.NfcF.Enabled = false
	cfg.NfcV.Enabled = false
	bank := NewDetectorBank(NewRing(4096), cfg)
	slot := bank.Slot(NfcA)
	slot.status.State = searchLocked

	if got := bank.Feed(0); got != nil {
		t.Fatalf("Feed must not re-evaluate a locked slot, got %v", got)
	}
	bank.ResetAll()
	if slot.status.State != searchIdle {
		t.Fatalf("ResetAll must return a locked slot to searchIdle")
	}
}

func TestDetectA_WindowTimeoutResetsSearch(t *testing.T) {
	ring := NewRing(4096)
	bp := newBitrateParams(NfcA, 106000, 10_000_000)
	status := NewModulationStatus(&bp)
	slot := &detectorSlot{tech: NfcA, bitrate: bp, status: status, cfg: defaultTechConfig()}

	status.PeakValue = -1
	status.DepthPeak = 0.5
	status.SearchStart = 1
	timeout := status.SearchStart + SampleClock(bp.Period0SymbolSamples*2)

	if detectA(ring, slot, slot.cfg, timeout) {
		t.Fatalf("a silent ring must never lock")
	}
	if status.PeakValue != 0 || status.DepthPeak != 0 {
		t.Fatalf("window-end without a qualifying peak must reset PeakValue/DepthPeak")
	}
	if status.SearchStart != timeout {
		t.Fatalf("window-end must restart the search window at the current clock")
	}
}

func TestDetectA_LocksOnQualifyingNegativeCorrelationPeak(t *testing.T) {
	ring := NewRing(4096)
	bp := BitrateParams{Period1SymbolSamples: 4, Period2SymbolSamples: 2, Period0SymbolSamples: 8}
	status := NewModulationStatus(&bp)
	slot := &detectorSlot{tech: NfcA, bitrate: bp, status: status, cfg: defaultTechConfig()}

	// Warm the search window with flat, unmodulated samples so the
	// "not enough history yet" early return clears before the probe.
	for c := SampleClock(0); c < 5; c++ {
		ring.Put(c, SampleRecord{})
		if detectA(ring, slot, slot.cfg, c) {
			t.Fatalf("unexpected lock while warming the search window")
		}
	}

	// Engineer a qualifying negative correlation peak: pre-seed the
	// ring's stored value a half-symbol of phase ahead of the current
	// one well below it, so Factor() comes out strongly negative.
	const clock = SampleClock(5)
	phase := int(clock) % len(status.Correlation.values)
	status.Correlation.values[(phase+bp.Period2SymbolSamples)%len(status.Correlation.values)] = -15
	ring.Put(clock, SampleRecord{SamplingValue: 5, ModulateDepth: 0.5})

	if !detectA(ring, slot, slot.cfg, clock) {
		t.Fatalf("expected a lock on a qualifying negative correlation factor")
	}
	if !status.A.pulseSeen {
		t.Fatalf("pulseSeen must be set once locked")
	}
	if status.SearchSync != clock {
		t.Fatalf("SearchSync = %d, want %d", status.SearchSync, clock)
	}
}

func TestDetectB_LockSequence(t *testing.T) {
	ring := NewRing(4096)
	bp := BitrateParams{Period0SymbolSamples: 8}
	status := NewModulationStatus(&bp)
	slot := &detectorSlot{tech: NfcB, bitrate: bp, status: status, cfg: defaultTechConfig()}
	etu := SampleClock(8)

	// Idle -> SofBegin: first unmodulated sample starts timing the plateau.
	ring.Put(0, SampleRecord{ModulateDepth: 0})
	if detectB(ring, slot, slot.cfg, 0) {
		t.Fatalf("no lock on the very first sample")
	}
	if status.B.stage != bStageSofBegin {
		t.Fatalf("stage = %v, want bStageSofBegin", status.B.stage)
	}

	// SofBegin -> SofIdle: modulation arrives within the 10..11 etu window.
	atClock := 10 * etu
	ring.Put(atClock, SampleRecord{ModulateDepth: 0.5})
	if detectB(ring, slot, slot.cfg, atClock) {
		t.Fatalf("no lock yet, only the falling edge has been seen")
	}
	if status.B.stage != bStageSofIdle {
		t.Fatalf("stage = %v, want bStageSofIdle", status.B.stage)
	}

	// SofIdle -> locked: un-modulated again within the 2..3 etu window.
	atClock += 2 * etu
	ring.Put(atClock, SampleRecord{ModulateDepth: 0})
	if !detectB(ring, slot, slot.cfg, atClock) {
		t.Fatalf("expected lock on the trailing edge landing inside the window")
	}
}

func TestDetectB_OutOfWindowModulationRestartsSearch(t *testing.T) {
	ring := NewRing(4096)
	bp := BitrateParams{Period0SymbolSamples: 8}
	status := NewModulationStatus(&bp)
	slot := &detectorSlot{tech: NfcB, bitrate: bp, status: status, cfg: defaultTechConfig()}

	ring.Put(0, SampleRecord{ModulateDepth: 0})
	detectB(ring, slot, slot.cfg, 0)
	// Modulation arrives far too early (1 etu in, nowhere near the 10..11
	// etu window): not a genuine SOF, search must restart.
	ring.Put(8, SampleRecord{ModulateDepth: 0.5})
	detectB(ring, slot, slot.cfg, 8)
	if status.B.stage != bStageIdle {
		t.Fatalf("stage = %v, want bStageIdle after an out-of-window pulse", status.B.stage)
	}
}

func TestDetectV_OneOfFourSelectsTwoBitsPerSymbol(t *testing.T) {
	ring := NewRing(4096)
	bp := BitrateParams{Period0SymbolSamples: 16, Period2SymbolSamples: 4, Period8SymbolSamples: 1}
	status := NewModulationStatus(&bp)
	slot := &detectorSlot{tech: NfcV, bitrate: bp, status: status, cfg: defaultTechConfig()}

	// First pulse (a single qualifying sample, edge-triggered).
	ring.Put(0, SampleRecord{ModulateDepth: 0.5})
	if detectV(ring, slot, slot.cfg, 0) {
		t.Fatalf("no lock on the first pulse alone")
	}
	for c := SampleClock(1); c < 12; c++ {
		ring.Put(c, SampleRecord{ModulateDepth: 0})
		if detectV(ring, slot, slot.cfg, c) {
			t.Fatalf("unexpected lock before the second pulse lands")
		}
	}
	// Second pulse at elapsed=12=3*quarter: selects 1-of-4.
	ring.Put(12, SampleRecord{ModulateDepth: 0.5})
	if !detectV(ring, slot, slot.cfg, 12) {
		t.Fatalf("expected lock on the second pulse")
	}
	if status.V.bits != 2 {
		t.Fatalf("bits = %d, want 2 (1-of-4)", status.V.bits)
	}
}

func TestDetectV_GivesUpAfterOneSymbolWithNoSecondPulse(t *testing.T) {
	ring := NewRing(4096)
	bp := BitrateParams{Period0SymbolSamples: 16, Period2SymbolSamples: 4, Period8SymbolSamples: 1}
	status := NewModulationStatus(&bp)
	slot := &detectorSlot{tech: NfcV, bitrate: bp, status: status, cfg: defaultTechConfig()}

	ring.Put(0, SampleRecord{ModulateDepth: 0.5})
	detectV(ring, slot, slot.cfg, 0)
	if !status.V.haveFirst {
		t.Fatalf("first pulse should be recorded")
	}

	ring.Put(20, SampleRecord{ModulateDepth: 0})
	detectV(ring, slot, slot.cfg, 20)
	if status.V.haveFirst {
		t.Fatalf("a symbol period elapsing with no second pulse must give up and reset")
	}
}

func TestDetectF_CommitsAtExactly95Transitions(t *testing.T) {
	ring := NewRing(4096)
	bp := BitrateParams{Period1SymbolSamples: 1, Period2SymbolSamples: 1}
	status := NewModulationStatus(&bp)
	slot := &detectorSlot{tech: NfcF, bitrate: bp, status: status, cfg: defaultTechConfig()}

	status.F.transitions = 94
	status.F.avgCorr = 1.0
	status.PhaseReference = -1 // so this sample's positive factor reads as a transition

	ring.Put(1000, SampleRecord{SamplingValue: 10, ModulateDepth: 0.5})
	if !detectF(ring, slot, slot.cfg, 1000) {
		t.Fatalf("transition #95 must commit")
	}
	if status.F.transitions != 95 {
		t.Fatalf("transitions = %d, want 95", status.F.transitions)
	}
}

func TestDetectF_RestartsCleanIfTransitionsOvershoot95(t *testing.T) {
	ring := NewRing(4096)
	bp := BitrateParams{Period1SymbolSamples: 1, Period2SymbolSamples: 1}
	status := NewModulationStatus(&bp)
	slot := &detectorSlot{tech: NfcF, bitrate: bp, status: status, cfg: defaultTechConfig()}

	status.F.transitions = 96
	ring.Put(1000, SampleRecord{SamplingValue: 0, ModulateDepth: 0.5})
	detectF(ring, slot, slot.cfg, 1000)
	if status.F.transitions != 0 {
		t.Fatalf("transitions = %d, want reset to 0 past the commit point", status.F.transitions)
	}
}
