package iso7816

import "fmt"

/*
 * ATR parser. Walks the TA/TB/TC/TD interface-byte chain in order,
 * recording Fi/Di (TA1), BWI/CWI and IFSC (T=1's TAi/TBi) and the
 * protocol mask every TDi advertises, exactly as ParserISO7816.cpp does
 * it (spec §4.H / supplemented features).
 */

// ATR is the parsed Answer To Reset.
type ATR struct {
	Fi, Di              int
	GuardTimeN          int // TC1, T=0 extra guard time in etu
	ProtocolsOffered    []Protocol
	IFSC                int  // T=1, from TAi
	BWI, CWI            int  // T=1, from TBi
	ErrorDetectionCRC   bool // T=1, from TCi bit0: true=CRC, false=LRC
	Historical          []byte
}

// Clock rate conversion factor (Fi) and baud rate adjustment factor (Di)
// tables, indexed by TA1's high/low nibble (ISO/IEC 7816-3 Table 7/8).
var fiTable = [16]int{372, 372, 558, 744, 1116, 1488, 1860, 0, 0, 512, 768, 1024, 1536, 2048, 0, 0}
var diTable = [16]int{0, 1, 2, 4, 8, 16, 32, 64, 12, 20, 0, 0, 0, 0, 0, 0}

// ParseATR parses a raw ATR byte stream and reports how many bytes of
// data it consumed (TS through the last historical byte; the optional
// TCK check byte, if the chain offered any protocol beyond T=0, is left
// for the caller to consume separately since ParseATR has no way to
// validate it without knowing the XOR of bytes it was never given).
func ParseATR(data []byte) (atr ATR, consumed int, err error) {
	if len(data) < 2 {
		return ATR{}, 0, fmt.Errorf("iso7816: ATR too short (%d bytes)", len(data))
	}

	// TS (data[0]) is the direct/inverse convention byte; it affects bit
	// ordering on the wire, already resolved by the UART decode upstream,
	// so it isn't inspected again here.
	t0 := data[1]
	idx := 2
	historicalCount := int(t0 & 0x0F)
	y := t0 & 0xF0

	atr = ATR{Fi: 372, Di: 1, ProtocolsOffered: []Protocol{ProtocolT0}}
	firstGroup := true
	currentProtocol := Protocol(0)
	sawT1 := false

	for y != 0 {
		if y&0x10 != 0 { // TAi
			if idx >= len(data) {
				return atr, 0, fmt.Errorf("iso7816: ATR truncated at TA")
			}
			ta := data[idx]
			idx++
			switch {
			case firstGroup:
				atr.Fi = fiTable[ta>>4]
				atr.Di = diTable[ta&0x0F]
			case currentProtocol == ProtocolT1:
				atr.IFSC = int(ta)
			}
		}
		if y&0x20 != 0 { // TBi
			if idx >= len(data) {
				return atr, 0, fmt.Errorf("iso7816: ATR truncated at TB")
			}
			tb := data[idx]
			idx++
			if currentProtocol == ProtocolT1 {
				atr.BWI = int(tb >> 4)
				atr.CWI = int(tb & 0x0F)
			}
		}
		if y&0x40 != 0 { // TCi
			if idx >= len(data) {
				return atr, 0, fmt.Errorf("iso7816: ATR truncated at TC")
			}
			tc := data[idx]
			idx++
			switch {
			case firstGroup:
				atr.GuardTimeN = int(tc)
			case currentProtocol == ProtocolT1:
				atr.ErrorDetectionCRC = tc&0x01 != 0
			}
		}
		if y&0x80 == 0 { // no TDi: this was the last interface-byte group
			break
		}
		if idx >= len(data) {
			return atr, 0, fmt.Errorf("iso7816: ATR truncated at TD")
		}
		td := data[idx]
		idx++
		y = td & 0xF0
		currentProtocol = Protocol(td & 0x0F)
		if currentProtocol == ProtocolT1 && !sawT1 {
			atr.ProtocolsOffered = append(atr.ProtocolsOffered, ProtocolT1)
			sawT1 = true
		}
		firstGroup = false
	}

	if idx+historicalCount > len(data) {
		return atr, 0, fmt.Errorf("iso7816: ATR truncated at historical bytes")
	}
	atr.Historical = append([]byte(nil), data[idx:idx+historicalCount]...)
	return atr, idx + historicalCount, nil
}

// RequiresCheckByte reports whether the ATR's protocol chain offered any
// protocol beyond T=0, which per ISO/IEC 7816-3 means a trailing TCK
// check byte follows the historical bytes.
func (a ATR) RequiresCheckByte() bool {
	for _, p := range a.ProtocolsOffered {
		if p != ProtocolT0 {
			return true
		}
	}
	return false
}
