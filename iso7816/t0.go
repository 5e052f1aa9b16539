package iso7816

import "time"

/*
 * T=0 procedure-byte loop (spec §4.H / supplemented features,
 * ParserISO7816.cpp ~390-420): 5-byte header (CLA INS P1 P2 P3), then a
 * loop of procedure bytes read one at a time: 0x60 is NULL (wait, no
 * data movement); a byte equal to INS transfers all remaining data bytes
 * (P3 of them); INS^0xFF transfers exactly one more data byte before the
 * procedure-byte search resumes; a byte with high nibble 0x6 or 0x9 is
 * SW1, and the byte after it is SW2, ending the TPDU.
 */

type t0Phase int

const (
	t0Header t0Phase = iota
	t0Procedure
	t0Data
	t0SW
	t0DataOne
)

// T0Decoder accumulates one TPDU exchange at a time from a byte stream.
type T0Decoder struct {
	phase     t0Phase
	header    []byte
	data      []byte
	remaining int
	sw        [2]byte
	swIdx     int
	start     time.Time
}

// NewT0Decoder returns a decoder ready for the next TPDU's header byte.
func NewT0Decoder() *T0Decoder { return &T0Decoder{phase: t0Header} }

// Feed consumes one byte and returns the completed Frame once SW1/SW2
// have landed.
func (d *T0Decoder) Feed(b ByteEvent) (frame *Frame, complete bool) {
	switch d.phase {
	case t0Header:
		if len(d.header) == 0 {
			d.start = b.Time
		}
		d.header = append(d.header, b.Value)
		if len(d.header) == 5 {
			d.remaining = int(d.header[4])
			d.phase = t0Procedure
		}
		return nil, false

	case t0Procedure:
		ins := d.header[1]
		switch {
		case b.Value == 0x60:
			return nil, false // NULL: wait, no data movement
		case b.Value == ins:
			d.phase = t0Data
			return nil, false
		case b.Value == ins^0xFF:
			d.phase = t0DataOne
			return nil, false
		default:
			// High nibble 0x6/0x9 is the documented SW1 shape; anything
			// else is treated the same way defensively so a misread byte
			// can't stall the decoder mid-TPDU.
			d.sw[0] = b.Value
			d.swIdx = 1
			d.phase = t0SW
			return nil, false
		}

	case t0Data:
		d.data = append(d.data, b.Value)
		d.remaining--
		if d.remaining <= 0 {
			d.phase = t0Procedure
		}
		return nil, false

	case t0DataOne:
		d.data = append(d.data, b.Value)
		d.remaining--
		d.phase = t0Procedure
		return nil, false

	case t0SW:
		d.sw[d.swIdx] = b.Value
		d.swIdx++
		if d.swIdx < 2 {
			return nil, false
		}
		f := &Frame{
			Protocol:  ProtocolT0,
			Header:    append([]byte(nil), d.header...),
			Data:      append([]byte(nil), d.data...),
			SW1:       d.sw[0],
			SW2:       d.sw[1],
			TimeStart: d.start,
			TimeEnd:   b.Time,
		}
		*d = T0Decoder{phase: t0Header}
		return f, true
	}
	return nil, false
}
