package nfc

/*
 * Protocol Tracker (component G).
 *
 * After each emitted frame, classifies it (assigning FramePhase) and, for
 * the handful of commands/responses spec.md names, updates the sticky
 * ProtocolStatus that governs timing and max frame size for *subsequent*
 * frames. It never edits a frame after it has been returned from Classify.
 */

// ProtocolStatus is sticky session state (spec §3), reset on
// start-of-conversation (REQA/WUPA/REQB/WUPB/REQC).
type ProtocolStatus struct {
	MaxFrameSize     int
	FrameGuardTime   float64 // seconds
	FrameWaitingTime float64
	StartUpGuardTime float64
	RequestGuardTime float64

	// NFC-B SOF timing window (spec §3: "NFC-B sofS1/S2Min/MaxTime"), set
	// to nominal defaults; no command or response handled here changes it.
	SofS1MinTime float64
	SofS1MaxTime float64
	SofS2MinTime float64
	SofS2MaxTime float64

	// Internal bookkeeping, not part of any emitted frame.
	pendingATS  bool
	pendingATQB bool
	pendingATQC bool
	chaining    bool
}

// Frame waiting / guard time defaults (seconds), fc = 13.56 MHz.
const (
	fc                     = 13_560_000.0
	defaultFWT             = 256.0 * 16.0 / fc * (1 << 4) // FWI=4 default per ISO/IEC 14443-3
	fwtActivation          = 5.0e-3                       // FWT while waiting for ATQA after REQA/WUPA
	fwtAtqb                = 7.68e-3                       // FWT while waiting for ATQB after REQB/WUPB
	fwtAtqc                = 2.4e-3                        // FWT while waiting for ATQC after REQC
	defaultFGT             = 5.0e-3
	defaultSFGT            = 302.0 / fc * (1 << 4) // SFGI=4 default
	defaultStartUpGuard    = 5.0e-3
	defaultRequestGuard    = 7000.0 / fc
	nfcBSofS1Nominal       = 10.0 / 106000.0
	nfcBSofS2Nominal       = 2.5 / 106000.0
)

func defaultProtocolStatus() ProtocolStatus {
	return ProtocolStatus{
		MaxFrameSize:     256,
		FrameGuardTime:   defaultFGT,
		FrameWaitingTime: defaultFWT,
		StartUpGuardTime: defaultStartUpGuard,
		RequestGuardTime: defaultRequestGuard,
		SofS1MinTime:     nfcBSofS1Nominal * 0.75,
		SofS1MaxTime:     nfcBSofS1Nominal * 1.25,
		SofS2MinTime:     nfcBSofS2Nominal * 0.5,
		SofS2MaxTime:     nfcBSofS2Nominal * 1.5,
	}
}

// ProtocolTracker owns the session-lifetime ProtocolStatus.
type ProtocolTracker struct {
	Status ProtocolStatus
}

// NewProtocolTracker returns a tracker with defaults armed, as at session
// start (spec §3 Lifecycles: "Protocol status: lives the length of the
// decoding session; reset by REQA/REQB/REQC").
func NewProtocolTracker() *ProtocolTracker {
	return &ProtocolTracker{Status: defaultProtocolStatus()}
}

// Classify assigns frame.FramePhase from its content and updates the
// sticky ProtocolStatus for frames that follow. Apart from the carrier
// marker frames, which the decoder builds already tagged PhaseCarrier, it
// is the only place a frame's Phase is set, and it runs once, synchronously, as the frame is
// finalized — never after Classify has returned it.
func (t *ProtocolTracker) Classify(frame *RawFrame) {
	if frame.FrameType == FrameCarrierOn || frame.FrameType == FrameCarrierOff ||
		frame.FrameType == FrameVccLow || frame.FrameType == FrameVccHigh ||
		frame.FrameType == FrameRstLow || frame.FrameType == FrameRstHigh {
		frame.FramePhase = PhaseCarrier
		return
	}

	switch frame.TechType {
	case NfcA:
		t.classifyA(frame)
	case NfcB:
		t.classifyB(frame)
	case NfcF:
		t.classifyF(frame)
	case NfcV:
		t.classifyV(frame)
	default:
		frame.FramePhase = PhaseApplication
	}
}

func (t *ProtocolTracker) classifyA(frame *RawFrame) {
	data := frame.Data
	if len(data) == 0 {
		frame.FramePhase = PhaseApplication
		return
	}
	cmd := data[0]
	switch {
	case cmd == 0x26 || cmd == 0x52: // REQA / WUPA
		frame.FramePhase = PhaseSense
		t.Status = defaultProtocolStatus()
		t.Status.FrameWaitingTime = fwtActivation
	case cmd == 0x93 || cmd == 0x95 || cmd == 0x97: // SEL cascade levels 1-3
		frame.FramePhase = PhaseSelection
	case cmd == 0xE0: // RATS
		frame.FramePhase = PhaseSelection
		t.pendingATS = true
	case cmd == 0x50: // HLTA
		frame.FramePhase = PhaseSelection
	case t.pendingATS && frame.FrameType == FrameListen:
		frame.FramePhase = PhaseSelection
		t.pendingATS = false
		t.applyATS(data)
	default:
		frame.FramePhase = PhaseApplication
		if len(data) >= 1 {
			t.applyPCBChaining(data[0])
		}
	}
}

// applyATS parses the ATS byte 0 (TL) and the optional TA/TB/TC interface
// bytes that follow, per ISO/IEC 14443-3 and resolved per spec §9/original
// source: TA1 carries DS/DR rate capability, TB1 packs FWI (high nibble)
// and SFGI (low nibble). TC1 (NAD/CID support bits) is not read — no APDU
// layer here.
func (t *ProtocolTracker) applyATS(data []byte) {
	if len(data) < 1 {
		return
	}
	tl := data[0]
	fsci := tl & 0x0F
	t.Status.MaxFrameSize = fsciToFSC(fsci)

	offset := 1
	t0 := byte(0)
	if len(data) > offset {
		t0 = data[offset]
		offset++
	}
	if t0&0x10 != 0 && len(data) > offset { // TA1 present
		offset++ // DS/DR bits recorded nowhere further; no rate switch in scope
	}
	if t0&0x20 != 0 && len(data) > offset { // TB1 present
		tb1 := data[offset]
		fwi := (tb1 >> 4) & 0x0F
		sfgi := tb1 & 0x0F
		t.Status.FrameWaitingTime = fwiToFWT(fwi)
		t.Status.FrameGuardTime = sfgiToSFGT(sfgi)
		offset++
	}
	// TC1, if present, is skipped: NAD/CID support doesn't affect timing.
}

func (t *ProtocolTracker) classifyB(frame *RawFrame) {
	data := frame.Data
	if len(data) == 0 {
		frame.FramePhase = PhaseApplication
		return
	}
	cmd := data[0]
	switch {
	case cmd == 0x05: // REQB / WUPB
		frame.FramePhase = PhaseSense
		t.Status = defaultProtocolStatus()
		t.Status.FrameWaitingTime = fwtAtqb
		t.pendingATQB = true
	case cmd == 0x1D: // ATTRIB
		frame.FramePhase = PhaseSelection
		t.applyATTRIB(data)
	case cmd == 0x50: // HLTB
		frame.FramePhase = PhaseSelection
	case t.pendingATQB && frame.FrameType == FrameListen && len(data) >= 12:
		frame.FramePhase = PhaseSense
		t.pendingATQB = false
		t.applyATQB(data)
	default:
		frame.FramePhase = PhaseApplication
		if len(data) >= 1 {
			t.applyPCBChaining(data[0])
		}
	}
}

// applyATQB reads the Protocol_Info bytes at offsets 10/11 (spec §4.G):
// FSDI in the high nibble of byte 10, FWI in the high nibble of byte 11.
func (t *ProtocolTracker) applyATQB(data []byte) {
	fsdi := (data[10] >> 4) & 0x0F
	fwi := (data[11] >> 4) & 0x0F
	t.Status.MaxFrameSize = fsciToFSC(fsdi)
	t.Status.FrameWaitingTime = fwiToFWT(fwi)
}

// applyATTRIB reads the FSDI nibble of Param2 from the ATTRIB command,
// laid out as 0x1D, 4-byte PUPI, Param1..Param4, CID. Param1 (TR0) and
// Param2's rate bits are not read.
func (t *ProtocolTracker) applyATTRIB(data []byte) {
	if len(data) < 7 {
		return
	}
	param2 := data[6]
	fsdi := param2 & 0x0F
	t.Status.MaxFrameSize = fsciToFSC(fsdi)
}

func (t *ProtocolTracker) classifyF(frame *RawFrame) {
	data := frame.Data
	switch {
	case len(data) >= 4 && data[3] == 0x00: // REQC
		frame.FramePhase = PhaseSense
		t.Status = defaultProtocolStatus()
		t.Status.FrameWaitingTime = fwtAtqc
		t.pendingATQC = true
	case t.pendingATQC && frame.FrameType == FrameListen:
		frame.FramePhase = PhaseSense
		t.pendingATQC = false
	default:
		frame.FramePhase = PhaseApplication
	}
}

func (t *ProtocolTracker) classifyV(frame *RawFrame) {
	data := frame.Data
	if len(data) < 2 {
		frame.FramePhase = PhaseApplication
		return
	}
	cmd := data[1]
	switch cmd {
	case 0x01: // Inventory
		frame.FramePhase = PhaseSense
		t.Status = defaultProtocolStatus()
	case 0x25: // Select
		frame.FramePhase = PhaseSelection
	default:
		frame.FramePhase = PhaseApplication
	}
}

// applyPCBChaining distinguishes ISO 14443-4 I/R/S blocks and records
// whether the I-block chaining bit is set. Nothing reads the recorded
// bit: it changes neither the armed waiting time nor any frame's flags.
func (t *ProtocolTracker) applyPCBChaining(pcb byte) {
	if pcb&0x80 == 0 { // I-block: bit7 = 0
		t.chaining = pcb&0x10 != 0 // bit4 = chaining
		return
	}
	// R-block (bit7..6 = 10) and S-block (bit7..6 = 11) never chain.
	t.chaining = false
}

func fsciToFSC(fsci byte) int {
	table := [...]int{16, 24, 32, 40, 48, 64, 96, 128, 256}
	if int(fsci) < len(table) {
		return table[fsci]
	}
	return 256
}

func fwiToFWT(fwi byte) float64 {
	return 256.0 * 16.0 / fc * float64(uint32(1)<<fwi)
}

func sfgiToSFGT(sfgi byte) float64 {
	if sfgi == 0 {
		return 302.0 / fc
	}
	return 302.0 / fc * float64(uint32(1)<<sfgi)
}
