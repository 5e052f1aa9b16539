package nfc

import (
	"context"
	"time"
)

/*
 * Decoder (top-level orchestrator, spec §5).
 *
 * Single-threaded and cooperative: one goroutine (Run) owns the ring,
 * every ModulationStatus, the in-flight frame's StreamStatus, and the
 * ProtocolStatus. Nothing here is locked; the only cross-goroutine
 * surfaces are the channels returned by Input/Output/Status/Control.
 */

// Command is a control-channel verb (spec §5 "Start, Stop, Configure").
type Command int

const (
	CmdStart Command = iota
	CmdStop
	CmdConfigure
)

// ControlMessage is sent on the control channel; NewConfig is only read
// for CmdConfigure.
type ControlMessage struct {
	Cmd       Command
	NewConfig Config
}

const (
	inputQueueDepth   = 64
	outputQueueDepth  = 256
	statusQueueDepth  = 16
	controlQueueDepth = 4
	idlePollInterval  = 50 * time.Millisecond
)

// Decoder is the core sample-to-frame pipeline (components A through I,
// minus the contact-card decoder, which lives in package iso7816 and
// shares no types with this package).
type Decoder struct {
	cfg          Config
	sampleRate   int
	sessionStart time.Time

	ring     *Ring
	envelope *Envelope
	bank     *DetectorBank
	tracker  *ProtocolTracker
	debug    *DebugTap

	active SymbolMachine
	running bool

	input   chan SampleBlock
	output  chan RawFrame
	status  chan SessionError
	control chan ControlMessage

	droppedFrames int
	droppedStatus int
}

// NewDecoder validates cfg and builds a Decoder ready to Run. sessionStart
// is the wall-clock time sample 0 corresponds to, used to stamp
// RawFrame.DateTime.
func NewDecoder(cfg Config, sessionStart time.Time, debugSink DebugSink) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Decoder{
		sessionStart: sessionStart,
		input:        make(chan SampleBlock, inputQueueDepth),
		output:       make(chan RawFrame, outputQueueDepth),
		status:       make(chan SessionError, statusQueueDepth),
		control:      make(chan ControlMessage, controlQueueDepth),
	}
	d.applyConfig(cfg)
	d.debug = NewDebugTap(cfg.DebugChannelsEnabled, debugSink)
	return d, nil
}

// Input returns the bounded sample-block channel the acquisition side
// feeds; an empty SampleBlock.Samples signals EOF.
func (d *Decoder) Input() chan<- SampleBlock { return d.input }

// Output returns the bounded emitted-frame channel.
func (d *Decoder) Output() <-chan RawFrame { return d.output }

// Status returns the bounded session-status channel.
func (d *Decoder) Status() <-chan SessionError { return d.status }

// Control returns the Start/Stop/Configure channel.
func (d *Decoder) Control() chan<- ControlMessage { return d.control }

// Run is the worker loop; it returns when ctx is cancelled, draining any
// in-flight frame as Truncated first.
func (d *Decoder) Run(ctx context.Context) error {
	for {
		if !d.running {
			select {
			case cmd := <-d.control:
				d.handleControl(cmd)
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		select {
		case cmd := <-d.control:
			d.handleControl(cmd)
		case block, ok := <-d.input:
			if !ok {
				d.finishSession()
				continue
			}
			d.processBlock(block)
		case <-time.After(idlePollInterval):
			// Bounded wait, per spec §5: nothing to do, loop.
		case <-ctx.Done():
			d.drainActive()
			return ctx.Err()
		}
	}
}

func (d *Decoder) handleControl(cmd ControlMessage) {
	switch cmd.Cmd {
	case CmdStart:
		if !d.running {
			d.resetState()
			d.running = true
			d.emitCarrierOn()
			Logger.Info("session started", "sample_rate", d.cfg.SampleRate)
		}
	case CmdStop:
		d.drainActive()
		d.resetState()
		d.running = false
		Logger.Info("session stopped")
	case CmdConfigure:
		if d.active != nil {
			Logger.Warn("configure ignored: frame in flight")
			return
		}
		if err := cmd.NewConfig.Validate(); err != nil {
			d.publishStatus(err)
			return
		}
		d.applyConfig(cmd.NewConfig)
		Logger.Info("configuration applied", "sample_rate", d.cfg.SampleRate)
	}
}

func (d *Decoder) applyConfig(cfg Config) {
	d.cfg = cfg
	d.sampleRate = cfg.SampleRate
	want := cfg.SampleRate / 50 // 20ms of ring history, always >= minRingSize floor
	d.ring = NewRing(want)
	shortest := d.shortestSymbolSamples()
	d.envelope = NewEnvelope(d.ring, shortest)
	d.bank = NewDetectorBank(d.ring, cfg)
	d.tracker = NewProtocolTracker()
	d.active = nil
}

func (d *Decoder) shortestSymbolSamples() int {
	shortest := 0
	for _, sr := range standardRates {
		bp := newBitrateParams(sr.tech, sr.rate, d.sampleRate)
		if shortest == 0 || bp.Period0SymbolSamples < shortest {
			shortest = bp.Period0SymbolSamples
		}
	}
	return shortest
}

// processBlock ingests one sample block and steps the pipeline sample by
// sample across the clock range it produced.
func (d *Decoder) processBlock(block SampleBlock) {
	start := d.envelope.Clock()
	n, eof := d.envelope.Push(block)
	if eof {
		d.finishSession()
		return
	}
	for c := start; c < start+SampleClock(n); c++ {
		d.stepSample(c)
	}
}

func (d *Decoder) stepSample(clock SampleClock) {
	if d.active != nil {
		frame, done := d.active.Step(d.ring, clock)
		if frame != nil {
			d.tracker.Classify(frame)
			d.emit(*frame)
		}
		if done {
			d.active = nil
			d.bank.ResetAll()
		}
		return
	}

	if d.debug.Enabled {
		rec := d.ring.At(clock)
		d.debug.Record(DebugSample{Clock: clock, SamplingValue: rec.SamplingValue, FilteredValue: rec.FilteredValue, ModulateDepth: rec.ModulateDepth})
	}

	slot := d.bank.Feed(clock)
	if slot == nil {
		return
	}
	d.activateSymbolMachine(slot)
}

// activateSymbolMachine builds the per-technology SymbolMachine for the
// slot the detector bank just locked onto. Direction (Poll vs Listen) is
// inferred from the detected modulation depth: a deep, ASK-like
// modulation is a reader command; a shallow, subcarrier-load modulation
// is a card response.
func (d *Decoder) activateSymbolMachine(slot *detectorSlot) {
	maxFrameSize := d.cfg.MaxFrameSize(slot.tech)
	start := slot.status.LastSymbolStart
	direction := pollOrListen(slot.status.DepthPeak)

	switch slot.tech {
	case NfcA:
		d.active = newSymbolA(&slot.bitrate, slot.cfg, direction, maxFrameSize, start, d.sampleRate, d.sessionStart)
	case NfcB:
		d.active = newSymbolB(&slot.bitrate, slot.cfg, direction, slot.status.B.bpskIntegrator, maxFrameSize, start, d.sampleRate, d.sessionStart)
	case NfcF:
		d.active = newSymbolF(&slot.bitrate, slot.cfg, slot.status.ManchesterInverted, direction, maxFrameSize, start, d.sampleRate, d.sessionStart)
	case NfcV:
		bits := slot.status.V.bits
		if bits == 0 {
			bits = 2
		}
		d.active = newSymbolV(&slot.bitrate, slot.cfg, bits, direction, maxFrameSize, start, d.sampleRate, d.sessionStart)
	}
}

func pollOrListen(depthPeak float32) FrameType {
	if depthPeak >= 0.5 {
		return FramePoll
	}
	return FrameListen
}

// drainActive aborts whatever frame is in flight, per spec §5 "Stop
// drains any in-flight frame as Truncated".
func (d *Decoder) drainActive() {
	if d.active == nil {
		return
	}
	frame := d.active.Abort(d.envelope.Clock())
	d.tracker.Classify(frame)
	d.emit(*frame)
	d.active = nil
}

func (d *Decoder) finishSession() {
	d.drainActive()
	d.emitCarrierOff()
	d.resetState()
	d.running = false
	Logger.Info("session reached EOF")
}

// emitCarrierOn appends the RF session-start marker frame, the CarrierOn
// counterpart of emitCarrierOff below.
func (d *Decoder) emitCarrierOn() {
	clock := d.envelope.Clock()
	frame := RawFrame{
		FrameType:   FrameCarrierOn,
		FramePhase:  PhaseCarrier,
		SampleRate:  d.sampleRate,
		SampleStart: clock,
		SampleEnd:   clock,
		DateTime:    d.sessionStart,
	}
	d.tracker.Classify(&frame)
	d.emit(frame)
}

// emitCarrierOff appends the RF EOF-equivalent marker frame (spec §7
// "Device error ... emits an EOF-equivalent frame: CarrierOff for RF").
// TechType is left at its zero value; carrier-level frames carry no
// technology (ProtocolTracker.Classify routes on FrameType alone for
// them, never TechType).
func (d *Decoder) emitCarrierOff() {
	clock := d.envelope.Clock()
	seconds := float64(clock) / float64(d.sampleRate)
	frame := RawFrame{
		FrameType:   FrameCarrierOff,
		FramePhase:  PhaseCarrier,
		SampleRate:  d.sampleRate,
		SampleStart: clock,
		SampleEnd:   clock,
		TimeStart:   seconds,
		TimeEnd:     seconds,
		DateTime:    d.sessionStart.Add(time.Duration(seconds * float64(time.Second))),
	}
	d.tracker.Classify(&frame)
	d.emit(frame)
}

func (d *Decoder) resetState() {
	d.ring.Reset()
	d.envelope.Reset()
	d.bank.ResetAll()
	d.tracker = NewProtocolTracker()
	d.active = nil
}

// emit publishes frame to the output channel. The frame sink has exactly
// one producer (this worker), so backpressure is a plain blocking send,
// unlike the status channel below which drops its oldest entry instead.
func (d *Decoder) emit(frame RawFrame) {
	Logger.Info("frame", "tech", frame.TechType, "type", frame.FrameType, "flags", frame.Flags, "bytes", len(frame.Data))
	d.output <- frame
}

// publishStatus sends err on the status channel, dropping the oldest
// pending entry (and counting the drop) if the channel is full, per
// spec §5 "oldest entries are dropped when full and the drop count is
// reported".
func (d *Decoder) publishStatus(err error) {
	se, ok := err.(*SessionError)
	if !ok {
		se = &SessionError{Kind: ErrDevice, Message: err.Error()}
	}
	for {
		select {
		case d.status <- *se:
			return
		default:
			select {
			case <-d.status:
				d.droppedStatus++
			default:
			}
		}
	}
}

// DroppedStatusCount reports how many status entries have been dropped
// for a full channel since the decoder was constructed.
func (d *Decoder) DroppedStatusCount() int { return d.droppedStatus }
