// Package iso7816 decodes contact smart-card traffic (spec component H):
// an event-driven, not sample-clocked, ATR/T=0/T=1 decoder fed edge
// events on VCC/RST/IO plus a UART byte stream.
package iso7816

import "time"

// LineEvent is an edge event on one of the contact interface's control
// lines.
type LineEvent struct {
	Line   LineID
	Rising bool // true: line went high. false: line went low.
	Time   time.Time
}

// LineID identifies which contact line an event happened on.
type LineID int

const (
	LineVCC LineID = iota
	LineRST
)

// ByteEvent is one UART-decoded byte on the IO line, with the parity bit
// as received. The decoder does not check Parity.
type ByteEvent struct {
	Value  byte
	Parity bool
	Time   time.Time
}

// State is the decoder's coarse lifecycle state (spec §4.H: "Cold -> ATR
// -> PPS? -> T0|T1").
type State int

const (
	StateCold State = iota
	StateATR
	StatePPS
	StateT0
	StateT1
)

func (s State) String() string {
	switch s {
	case StateCold:
		return "Cold"
	case StateATR:
		return "ATR"
	case StatePPS:
		return "PPS"
	case StateT0:
		return "T0"
	case StateT1:
		return "T1"
	default:
		return "Unknown"
	}
}
