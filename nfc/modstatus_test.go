package nfc

import "testing"

func TestNewModulationStatus_AllocatesSizedSubstructures(t *testing.T) {
	bp := newBitrateParams(NfcA, 106000, 10_000_000)
	m := NewModulationStatus(&bp)
	if m.Bitrate != &bp {
		t.Fatalf("Bitrate not wired to the supplied BitrateParams")
	}
	if len(m.Integrator.window) != bp.Period1SymbolSamples {
		t.Fatalf("Integrator window = %d, want %d", len(m.Integrator.window), bp.Period1SymbolSamples)
	}
	if len(m.Correlation.values) != bp.Period1SymbolSamples {
		t.Fatalf("Correlation ring = %d, want %d", len(m.Correlation.values), bp.Period1SymbolSamples)
	}
	if m.B.bpskIntegrator == nil {
		t.Fatalf("B.bpskIntegrator not allocated")
	}
}

func TestModulationStatus_ResetClearsSearchStateButKeepsIntegrators(t *testing.T) {
	bp := newBitrateParams(NfcA, 106000, 10_000_000)
	m := NewModulationStatus(&bp)
	m.State = searchLocked
	m.PeakValue = 42
	m.DepthPeak = 1
	m.ManchesterInverted = true
	m.A.pulseSeen = true
	bpsk := m.B.bpskIntegrator
	bpsk.Add(5)

	m.Reset()

	if m.State != searchIdle {
		t.Fatalf("State after Reset = %v, want searchIdle", m.State)
	}
	if m.PeakValue != 0 || m.DepthPeak != 0 || m.ManchesterInverted {
		t.Fatalf("Reset left stale peak/Manchester state")
	}
	if m.A.pulseSeen {
		t.Fatalf("Reset left stale A scratch state")
	}
	if m.B.bpskIntegrator != bpsk {
		t.Fatalf("Reset reallocated the BPSK integrator instead of reusing and clearing it")
	}
	if bpsk.Sum() != 0 {
		t.Fatalf("BPSK integrator not cleared by Reset, sum = %v", bpsk.Sum())
	}
}
