package nfc

/*
 * Modulation status (spec §3): per (technology, rate), mutable, owned by
 * the detector bank while searching and handed off to the winning symbol
 * state machine once locked. References its BitrateParams by pointer into
 * the bank's immutable table, never by a pointer cycle back to itself.
 */

type searchState int

const (
	searchIdle searchState = iota
	searchWindow
	searchLocked
)

// ModulationStatus is the common part of the per-(tech,rate) state plus one
// tech-specific scratch sub-struct, mirroring the teacher's per-modem-type
// union (demodulator_state_s.u) as separate named fields rather than an
// untagged union, since Go has no union type.
type ModulationStatus struct {
	Bitrate *BitrateParams

	State       searchState
	SearchStart SampleClock
	SearchEnd   SampleClock
	SearchSync  SampleClock

	Integrator  *integrator
	Correlation *correlationRing

	PeakValue float32
	PeakTime  SampleClock
	DepthPeak float32

	LastSymbolStart SampleClock
	LastSymbolEnd   SampleClock

	PhaseReference      float32
	ManchesterInverted  bool

	A aScratch
	B bScratch
	F fScratch
	V vScratch
}

type aScratch struct {
	// Modified Miller poll pattern tracking.
	pulseSeen bool
}

type bScratch struct {
	stage          bStage
	stageStart     SampleClock
	bpskIntegrator *integrator
}

type bStage int

const (
	bStageIdle bStage = iota
	bStageSofBegin
	bStageSofIdle
	bStageSofEnd
)

type fScratch struct {
	transitions int // pulse-width counter, commits at 95 (48 manchester transitions)
	avgCorr     float32
	inverted    bool
}

type vScratch struct {
	firstPulse  SampleClock
	secondPulse SampleClock
	haveFirst   bool
	bits        int // 2 (1-of-4) or 8 (1-of-256)
}

// NewModulationStatus allocates the correlation ring and integrator sized
// for bp.
func NewModulationStatus(bp *BitrateParams) *ModulationStatus {
	return &ModulationStatus{
		Bitrate:     bp,
		Integrator:  newIntegrator(bp.Period1SymbolSamples),
		Correlation: newCorrelationRing(bp.Period1SymbolSamples),
		B:           bScratch{bpskIntegrator: newIntegrator(bp.Period2SymbolSamples)},
	}
}

// Reset restores a ModulationStatus to its freshly-searching state, done
// on every frame boundary (spec §3 Lifecycles).
func (m *ModulationStatus) Reset() {
	m.State = searchIdle
	m.SearchStart = 0
	m.SearchEnd = 0
	m.SearchSync = 0
	m.Integrator.Reset()
	m.Correlation.Reset()
	m.PeakValue = 0
	m.PeakTime = 0
	m.DepthPeak = 0
	m.PhaseReference = 0
	m.ManchesterInverted = false
	m.A = aScratch{}
	m.B = bScratch{bpskIntegrator: m.B.bpskIntegrator}
	m.B.bpskIntegrator.Reset()
	m.F = fScratch{}
	m.V = vScratch{}
}
