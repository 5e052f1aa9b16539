package nfc

/*
 * Debug taps (component I, optional). When enabled, records selected
 * per-sample channels (envelope, filtered value, modulation depth)
 * alongside the sample clock so a capture can be replayed against an
 * oscilloscope-style view. The decoder leaves DebugSample's Tech and
 * Correlation fields at zero. Disabled by default
 * (spec §6 debug_channels_enabled); a no-op sink costs nothing on the hot
 * path beyond the enabled check.
 */

// DebugSample is one recorded tap point.
type DebugSample struct {
	Clock         SampleClock
	Tech          Tech
	SamplingValue float32
	FilteredValue float32
	ModulateDepth float32
	Correlation   float32
}

// DebugSink receives tap samples. No type in this module implements it.
type DebugSink interface {
	WriteDebugSample(DebugSample)
}

// DebugTap fans a single per-sample value out to an optional sink.
// Constructed once per Decoder; Enabled is checked by the caller so a
// disabled tap never even builds the DebugSample.
type DebugTap struct {
	Enabled bool
	sink    DebugSink
}

// NewDebugTap builds a tap writing to sink; sink may be nil, in which
// case Enabled is forced false regardless of cfg.
func NewDebugTap(enabled bool, sink DebugSink) *DebugTap {
	return &DebugTap{Enabled: enabled && sink != nil, sink: sink}
}

// Record forwards s to the sink if the tap is enabled.
func (d *DebugTap) Record(s DebugSample) {
	if !d.Enabled {
		return
	}
	d.sink.WriteDebugSample(s)
}
