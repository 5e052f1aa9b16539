package nfc

/*
 * Bitrate parameters (spec §3): immutable once derived from the
 * configured sample rate, one set per (technology, candidate bitrate)
 * pair enabled in the detector bank.
 *
 * Naming convention: Period0 is the full symbol length in samples;
 * Period1/2/4/8 are the symbol divided by 2/4/8/16 respectively. Offset*
 * fields are ring-relative sample counts used to address the
 * SampleRecord some fixed distance behind (Delay*) or ahead (Future) of
 * "now" (Signal); because the whole pipeline already runs
 * SymbolDelayDetect samples behind the ring write position, "future"
 * samples relative to the processing point are already resident.
 */

// BitrateParams holds the immutable per-(technology, rate) timing derived
// at configure time from the sample rate.
type BitrateParams struct {
	Tech              Tech
	SymbolsPerSecond  float64
	SymbolDelayDetect int

	Period0SymbolSamples int
	Period1SymbolSamples int
	Period2SymbolSamples int
	Period4SymbolSamples int
	Period8SymbolSamples int

	OffsetFutureIndex int
	OffsetSignalIndex int
	OffsetDelay0Index int
	OffsetDelay1Index int
	OffsetDelay2Index int
	OffsetDelay4Index int
	OffsetDelay8Index int
}

// standardRates lists the (technology, symbol rate) pairs the detector
// bank searches, per spec §4.C.
var standardRates = []struct {
	tech Tech
	rate float64
}{
	{NfcA, 106000},
	{NfcB, 106000},
	{NfcF, 212000},
	{NfcF, 424000},
	{NfcV, 26480},
}

// newBitrateParams derives a BitrateParams for tech at symbolsPerSecond,
// given the configured sample rate.
func newBitrateParams(tech Tech, symbolsPerSecond float64, sampleRate int) BitrateParams {
	samplesPerSymbol := float64(sampleRate) / symbolsPerSecond
	p0 := round(samplesPerSymbol)
	p1 := round(samplesPerSymbol / 2)
	p2 := round(samplesPerSymbol / 4)
	p4 := round(samplesPerSymbol / 8)
	p8 := round(samplesPerSymbol / 16)
	if p1 < 1 {
		p1 = 1
	}
	if p2 < 1 {
		p2 = 1
	}
	if p4 < 1 {
		p4 = 1
	}
	if p8 < 1 {
		p8 = 1
	}
	// The detector pipeline always looks one full symbol ahead of the
	// point it commits a decision, so the signal tap trails "now" by one
	// symbol and every other offset is relative to that.
	delayDetect := p0
	return BitrateParams{
		Tech:                 tech,
		SymbolsPerSecond:     symbolsPerSecond,
		SymbolDelayDetect:    delayDetect,
		Period0SymbolSamples: p0,
		Period1SymbolSamples: p1,
		Period2SymbolSamples: p2,
		Period4SymbolSamples: p4,
		Period8SymbolSamples: p8,
		OffsetFutureIndex:    -p0,
		OffsetSignalIndex:    delayDetect,
		OffsetDelay0Index:    delayDetect,
		OffsetDelay1Index:    delayDetect + p1,
		OffsetDelay2Index:    delayDetect + p2,
		OffsetDelay4Index:    delayDetect + p4,
		OffsetDelay8Index:    delayDetect + p8,
	}
}

func round(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}
