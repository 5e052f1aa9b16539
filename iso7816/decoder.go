package iso7816

import (
	"context"
	"time"
)

/*
 * Event-driven top-level decoder (spec §4.H): Cold -> ATR -> PPS? ->
 * T0|T1. Unlike nfc.Decoder this isn't sample-clocked; it reacts to
 * VCC/RST edges and UART bytes as they arrive, with no fixed per-tick
 * budget.
 */

// Decoder is the contact smart-card session state machine.
type Decoder struct {
	state   State
	atrBuf  []byte
	atr     ATR
	ppsBuf  []byte
	ppsSeen int // completed PPS sequences since ATR (request, then echoed response)
	t0      *T0Decoder
	t1      *T1Decoder

	lineEvents chan LineEvent
	byteEvents chan ByteEvent
	output     chan Frame
	status     chan error
}

// NewDecoder returns a Decoder starting in StateCold.
func NewDecoder() *Decoder {
	return &Decoder{
		state:      StateCold,
		lineEvents: make(chan LineEvent, 16),
		byteEvents: make(chan ByteEvent, 256),
		output:     make(chan Frame, 64),
		status:     make(chan error, 16),
	}
}

func (d *Decoder) LineEvents() chan<- LineEvent { return d.lineEvents }
func (d *Decoder) ByteEvents() chan<- ByteEvent { return d.byteEvents }
func (d *Decoder) Output() <-chan Frame         { return d.output }
func (d *Decoder) Status() <-chan error         { return d.status }

// Run drains events until ctx is cancelled.
func (d *Decoder) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-d.lineEvents:
			d.handleLine(ev)
		case b := <-d.byteEvents:
			d.handleByte(b)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Decoder) handleLine(ev LineEvent) {
	switch ev.Line {
	case LineRST:
		if ev.Rising {
			d.emitLine(KindRstHigh, ev.Time)
			if d.state == StateCold {
				d.state = StateATR
				d.atrBuf = d.atrBuf[:0]
			}
			return
		}
		// Falling RST mid-session is a warm reset: same as a VCC drop, the
		// next rising edge starts a fresh ATR.
		d.emitLine(KindRstLow, ev.Time)
		d.resetToCold()
	case LineVCC:
		if ev.Rising {
			d.emitLine(KindVccHigh, ev.Time)
			return
		}
		// A VCC drop, at any point in the session, deactivates the card;
		// the next RST rising edge starts a fresh ATR.
		d.emitLine(KindVccLow, ev.Time)
		d.resetToCold()
	}
}

func (d *Decoder) resetToCold() {
	d.state = StateCold
	d.atrBuf = nil
	d.ppsBuf = nil
	d.ppsSeen = 0
	d.t0 = nil
	d.t1 = nil
}

func (d *Decoder) emitLine(kind Kind, at time.Time) {
	d.emit(Frame{Kind: kind, TimeStart: at, TimeEnd: at})
}

func (d *Decoder) handleByte(b ByteEvent) {
	switch d.state {
	case StateATR:
		d.feedATRByte(b)
	case StatePPS:
		d.feedPPSByte(b)
	case StateT0:
		if d.t0 == nil {
			return
		}
		if frame, ok := d.t0.Feed(b); ok {
			d.emit(*frame)
		}
	case StateT1:
		if d.t1 == nil {
			return
		}
		if frame, ok := d.t1.Feed(b); ok {
			d.emit(*frame)
		}
	default:
		// A byte with no VCC/RST framing yet: ignore, nothing to attach it to.
	}
}

func (d *Decoder) feedATRByte(b ByteEvent) {
	d.atrBuf = append(d.atrBuf, b.Value)
	atr, consumed, err := ParseATR(d.atrBuf)
	if err != nil {
		return // still collecting interface/historical bytes
	}
	need := consumed
	if atr.RequiresCheckByte() {
		need++
	}
	if len(d.atrBuf) < need {
		return // historical bytes parsed, still waiting on the TCK
	}

	d.atr = atr
	d.state = StatePPS
	d.ppsBuf = nil
	d.ppsSeen = 0
}

// feedPPSByte collects an optional PPS request/response pair following
// ATR. PPSS (0xFF) is what distinguishes a PPS exchange from a T=0
// command already under way; a first byte other than 0xFF means no PPS
// negotiation happened, so it's handed straight to the protocol the ATR
// offered.
func (d *Decoder) feedPPSByte(b ByteEvent) {
	if len(d.ppsBuf) == 0 && b.Value != ppsss {
		d.enterProtocol(d.atr)
		d.handleByte(b)
		return
	}
	d.ppsBuf = append(d.ppsBuf, b.Value)
	n, ok := parsePPS(d.ppsBuf)
	if !ok {
		return
	}
	d.ppsSeen++
	frame := d.ppsBuf[:n]
	d.ppsBuf = nil
	if !pckValid(frame) {
		// Malformed PCK: abandon negotiation and fall through to the
		// ATR-offered protocol rather than wait forever.
		d.enterProtocol(d.atr)
		return
	}
	if d.ppsSeen < 2 {
		return // request parsed; now collect the card's echoed response
	}
	d.enterProtocol(d.atr)
}

func (d *Decoder) enterProtocol(atr ATR) {
	for _, p := range atr.ProtocolsOffered {
		if p == ProtocolT1 {
			d.state = StateT1
			d.t1 = NewT1Decoder(atr.ErrorDetectionCRC)
			return
		}
	}
	d.state = StateT0
	d.t0 = NewT0Decoder()
}

func (d *Decoder) emit(f Frame) {
	select {
	case d.output <- f:
	default:
		// Sink full: drop the oldest to make room, same policy as the
		// contactless decoder's status channel.
		select {
		case <-d.output:
		default:
		}
		d.output <- f
	}
}
