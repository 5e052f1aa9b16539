package nfc

/*
 * Ring Window (component B).
 *
 * A power-of-two ring of per-sample records, addressed by the sample
 * clock. Every offset used elsewhere (signal, future, delay0/1/2/4/8) is
 * relative to this ring so address arithmetic stays a single mask, never a
 * modulo.
 */

// SampleRecord is one per-sample entry stored in the ring (spec §3).
type SampleRecord struct {
	SamplingValue float32 // envelope value used by detectors
	FilteredValue float32 // envelope after fast smoothing (BPSK/ASK listen paths)
	MeanDeviation float32 // short-window standard deviation, dynamic noise floor
	ModulateDepth float32 // (peak-current)/peak in [0,1]
}

// minRingSize is a conservative floor: at least 2x the longest symbol
// (NFC-V, 26.48 kbps) at the lowest supported sample rate must fit twice
// over so "future" offsets used by the detector bank are always resident.
const minRingSize = 1 << 12

// Ring is the power-of-two ring buffer of SampleRecord described in spec §3/4.B.
type Ring struct {
	buf  []SampleRecord
	mask SampleClock
	size SampleClock
}

// NewRing allocates a ring sized to the next power of two at least as large
// as want and at least minRingSize.
func NewRing(want int) *Ring {
	size := SampleClock(minRingSize)
	for int(size) < want {
		size <<= 1
	}
	return &Ring{
		buf:  make([]SampleRecord, size),
		mask: size - 1,
		size: size,
	}
}

// Size returns the ring length (always a power of two).
func (r *Ring) Size() int { return int(r.size) }

// At returns the record stored at the given absolute sample clock index.
func (r *Ring) At(clock SampleClock) *SampleRecord {
	return &r.buf[clock&r.mask]
}

// Put stores rec at the given absolute sample clock index, overwriting
// whatever was there RingSize samples ago.
func (r *Ring) Put(clock SampleClock, rec SampleRecord) {
	r.buf[clock&r.mask] = rec
}

// Offset returns the record clock-offset samples before (offset>0) or
// after (offset<0) the given index, wrapping through the ring mask exactly
// like every other address computation here.
func (r *Ring) Offset(clock SampleClock, offset int) *SampleRecord {
	idx := SampleClock(int64(clock) - int64(offset))
	return &r.buf[idx&r.mask]
}

// Reset zeroes every record without reallocating, used when the worker
// drains and restarts (Stop, or Configure between frames).
func (r *Ring) Reset() {
	for i := range r.buf {
		r.buf[i] = SampleRecord{}
	}
}
