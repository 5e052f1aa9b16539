package iso7816

import "time"

/*
 * T=1 I/R/S block decoder (spec §4.H): PCB byte classifies the block
 * (I-block bit7=0, R-block bits 7..6=10, S-block bits 7..6=11); LEN gives
 * the payload length; the trailer is a single LRC byte or a 2-byte CRC,
 * chosen by the ATR's TCi bit0 (ErrorDetectionCRC).
 */

type t1Phase int

const (
	t1PCB t1Phase = iota
	t1Len
	t1Data
	t1Trailer
)

// T1Decoder accumulates one block at a time from a byte stream.
type T1Decoder struct {
	crc   bool // true: 2-byte CRC trailer; false: 1-byte LRC
	phase t1Phase

	pcb     byte
	length  int
	data    []byte
	trailer []byte
	start   time.Time
}

// NewT1Decoder returns a decoder for a card whose ATR selected CRC (true)
// or LRC (false) as the T=1 error-detection code.
func NewT1Decoder(crc bool) *T1Decoder {
	return &T1Decoder{crc: crc, phase: t1PCB}
}

func (d *T1Decoder) trailerLen() int {
	if d.crc {
		return 2
	}
	return 1
}

// Feed consumes one byte and returns the completed block Frame once its
// trailer has landed.
func (d *T1Decoder) Feed(b ByteEvent) (frame *Frame, complete bool) {
	switch d.phase {
	case t1PCB:
		d.start = b.Time
		d.pcb = b.Value
		d.phase = t1Len
		return nil, false

	case t1Len:
		d.length = int(b.Value)
		d.data = d.data[:0]
		if d.length == 0 {
			d.phase = t1Trailer
		} else {
			d.phase = t1Data
		}
		return nil, false

	case t1Data:
		d.data = append(d.data, b.Value)
		if len(d.data) == d.length {
			d.phase = t1Trailer
		}
		return nil, false

	case t1Trailer:
		d.trailer = append(d.trailer, b.Value)
		if len(d.trailer) < d.trailerLen() {
			return nil, false
		}
		f := &Frame{
			Protocol:  ProtocolT1,
			Header:    []byte{d.pcb, byte(d.length)},
			Data:      append([]byte(nil), d.data...),
			BlockType: classifyPCB(d.pcb),
			Chaining:  d.pcb&0x80 == 0 && d.pcb&0x10 != 0,
			TimeStart: d.start,
			TimeEnd:   b.Time,
		}
		d.trailer = d.trailer[:0]
		d.phase = t1PCB
		return f, true
	}
	return nil, false
}

func classifyPCB(pcb byte) BlockType {
	switch {
	case pcb&0x80 == 0:
		return BlockI
	case pcb&0xC0 == 0x80:
		return BlockR
	default:
		return BlockS
	}
}
