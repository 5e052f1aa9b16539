package nfc

import "math"

/*
 * Sample Ingest & Envelope (component A).
 *
 * Converts incoming I/Q or real samples into a unified real-valued
 * envelope stream with derived statistics, appending one SampleRecord per
 * input sample to the Ring (component B).
 */

// Envelope is the per-channel ingest pipeline: one instance per acquisition
// stream, created once at Decoder configure time.
type Envelope struct {
	ring  *Ring
	clock SampleClock

	filterAlpha float32 // EMA coefficient, a few percent of the highest candidate bitrate's symbol period

	devWindow []float32 // circular window of raw envelope values, ~one symbol long
	devIdx    int
	devSum    float64
	devSumSq  float64
	devFilled int

	peak            float32
	peakDecay       float32 // multiplicative decay applied once per sample, multi-symbol time constant
	peakEstablished bool
}

// NewEnvelope builds an envelope pipeline. symbolSamples is the shortest
// candidate symbol period across every standard (technology, bitrate) pair;
// it sizes the smoothing and deviation windows.
func NewEnvelope(ring *Ring, symbolSamples int) *Envelope {
	if symbolSamples < 4 {
		symbolSamples = 4
	}
	devWin := symbolSamples
	if devWin > 4096 {
		devWin = 4096
	}
	return &Envelope{
		ring:        ring,
		filterAlpha: 0.05, // a few percent, per spec §4.A
		devWindow:   make([]float32, devWin),
		peakDecay:   float32(math.Exp(-1.0 / float64(8*symbolSamples))), // multi-symbol decay
	}
}

// Reset zeroes all running statistics; does not rewind the sample clock.
func (e *Envelope) Reset() {
	for i := range e.devWindow {
		e.devWindow[i] = 0
	}
	e.devIdx = 0
	e.devSum = 0
	e.devSumSq = 0
	e.devFilled = 0
	e.peak = 0
	e.peakEstablished = false
}

// Clock returns the current sample clock (the index of the next sample to
// be ingested).
func (e *Envelope) Clock() SampleClock { return e.clock }

// Push ingests one block of samples, appending one SampleRecord per sample
// to the ring. It returns the number of samples ingested and whether the
// block was an EOF marker (empty Samples).
func (e *Envelope) Push(block SampleBlock) (n int, eof bool) {
	if len(block.Samples) == 0 {
		return 0, true
	}
	switch block.ChannelLayout {
	case ChannelIQ:
		for i := 0; i+1 < len(block.Samples); i += 2 {
			I, Q := block.Samples[i], block.Samples[i+1]
			raw := float32(math.Sqrt(float64(I)*float64(I) + float64(Q)*float64(Q)))
			e.pushOne(raw)
			n++
		}
	default:
		for _, raw := range block.Samples {
			e.pushOne(raw)
			n++
		}
	}
	return n, false
}

func (e *Envelope) pushOne(raw float32) {
	prevFiltered := e.ring.Offset(e.clock, 1).FilteredValue
	if e.clock == 0 {
		prevFiltered = raw
	}
	filtered := prevFiltered + e.filterAlpha*(raw-prevFiltered)

	// Windowed standard deviation, O(1) update: add new, subtract the
	// value pushed off the far end of the circular window.
	old := e.devWindow[e.devIdx]
	e.devWindow[e.devIdx] = raw
	e.devIdx++
	if e.devIdx == len(e.devWindow) {
		e.devIdx = 0
	}
	e.devSum += float64(raw) - float64(old)
	e.devSumSq += float64(raw)*float64(raw) - float64(old)*float64(old)
	if e.devFilled < len(e.devWindow) {
		e.devFilled++
	}
	n := float64(e.devFilled)
	var meanDev float32
	if n > 1 {
		mean := e.devSum / n
		variance := e.devSumSq/n - mean*mean
		if variance < 0 {
			variance = 0
		}
		meanDev = float32(math.Sqrt(variance))
	}

	// Slow envelope peak with exponential decay; modulation depth is the
	// normalized shortfall below it.
	if raw > e.peak {
		e.peak = raw
		e.peakEstablished = true
	} else {
		e.peak *= e.peakDecay
	}
	var depth float32
	if e.peakEstablished && e.peak > 1e-9 {
		depth = 1 - raw/e.peak
		if depth < 0 {
			depth = 0
		} else if depth > 1 {
			depth = 1
		}
	}
	// Edge case (§4.A): peak not yet established forces depth to zero.

	e.ring.Put(e.clock, SampleRecord{
		SamplingValue: raw,
		FilteredValue: filtered,
		MeanDeviation: meanDev,
		ModulateDepth: depth,
	})
	e.clock++
}
