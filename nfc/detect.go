package nfc

/*
 * Modulation Detector Bank (component C).
 *
 * Runs in lock-step with ingest. Each enabled (technology, rate) pair gets
 * its own slot: an immutable BitrateParams, a mutable ModulationStatus,
 * and a commit function stored directly as a struct field (not behind an
 * interface) so the per-sample hot path never pays for dynamic dispatch,
 * per spec §9's design note.
 */

// detectFunc searches for a preamble using one sample already stored in
// the ring at clock. It returns true the sample the detector commits to a
// locked symbol.
type detectFunc func(ring *Ring, s *detectorSlot, cfg TechConfig, clock SampleClock) bool

type detectorSlot struct {
	tech    Tech
	bitrate BitrateParams
	status  *ModulationStatus
	commit  detectFunc
	cfg     TechConfig
}

// DetectorBank owns every enabled (technology, rate) detector slot and
// elects the first to commit.
type DetectorBank struct {
	ring  *Ring
	slots []*detectorSlot
}

// NewDetectorBank builds slots for every (technology, rate) pair enabled
// in cfg, deriving each BitrateParams from cfg.SampleRate.
func NewDetectorBank(ring *Ring, cfg Config) *DetectorBank {
	bank := &DetectorBank{ring: ring}
	for _, sr := range standardRates {
		tc := cfg.techConfig(sr.tech)
		if !tc.Enabled {
			continue
		}
		slot := &detectorSlot{
			tech:    sr.tech,
			bitrate: newBitrateParams(sr.tech, sr.rate, cfg.SampleRate),
			cfg:     tc,
		}
		slot.status = NewModulationStatus(&slot.bitrate)
		switch sr.tech {
		case NfcA:
			slot.commit = detectA
		case NfcB:
			slot.commit = detectB
		case NfcF:
			slot.commit = detectF
		case NfcV:
			slot.commit = detectV
		}
		bank.slots = append(bank.slots, slot)
	}
	return bank
}

// Feed runs one sample through every slot not currently suspended by a
// winner. Only one detector may win at a time (spec §3 invariant): while
// the winner's symbol machine runs, the decoder stops feeding the bank,
// and ResetAll returns every slot to searching when the frame ends.
func (bank *DetectorBank) Feed(clock SampleClock) *detectorSlot {
	for _, s := range bank.slots {
		if s.status.State == searchLocked {
			continue
		}
		if s.commit(bank.ring, s, s.cfg, clock) {
			s.status.State = searchLocked
			s.status.LastSymbolStart = clock
			return s
		}
	}
	return nil
}

// ResetAll resets every slot back to searching, e.g. on frame emission or
// on detector timeout (failure semantics: window-end-without-peak resets
// and continues, spec §4.C "Failure semantics").
func (bank *DetectorBank) ResetAll() {
	for _, s := range bank.slots {
		s.status.Reset()
	}
}

// Slot returns the slot for tech, or nil if that technology isn't enabled.
func (bank *DetectorBank) Slot(tech Tech) *detectorSlot {
	for _, s := range bank.slots {
		if s.tech == tech {
			return s
		}
	}
	return nil
}
