package nfc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func reqaFrame(data []byte, ft FrameType) *RawFrame {
	return &RawFrame{TechType: NfcA, FrameType: ft, Data: data}
}

func TestProtocolTracker_REQA_isSensePhase(t *testing.T) {
	tr := NewProtocolTracker()
	f := reqaFrame([]byte{0x26}, FramePoll)
	tr.Classify(f)
	assert.Equal(t, PhaseSense, f.FramePhase)
	assert.Equal(t, fwtActivation, tr.Status.FrameWaitingTime)
}

func TestProtocolTracker_SEL_isSelectionPhase(t *testing.T) {
	tr := NewProtocolTracker()
	for _, cmd := range []byte{0x93, 0x95, 0x97} {
		f := reqaFrame([]byte{cmd}, FramePoll)
		tr.Classify(f)
		assert.Equal(t, PhaseSelection, f.FramePhase)
	}
}

func TestProtocolTracker_RATS_armsPendingATS(t *testing.T) {
	tr := NewProtocolTracker()
	rats := reqaFrame([]byte{0xE0, 0x80}, FramePoll)
	tr.Classify(rats)
	assert.Equal(t, PhaseSelection, rats.FramePhase)

	// TL=0x03 (FSCI=3 -> FSC 40), T0=0x20 (TB1 present), TB1: FWI=8,
	// SFGI=2.
	ats := reqaFrame([]byte{0x03, 0x20, 0x82}, FrameListen)
	tr.Classify(ats)
	assert.Equal(t, PhaseSelection, ats.FramePhase)
	assert.Equal(t, fsciToFSC(3), tr.Status.MaxFrameSize)
	assert.Equal(t, fwiToFWT(8), tr.Status.FrameWaitingTime)
	assert.Equal(t, sfgiToSFGT(2), tr.Status.FrameGuardTime)
}

func TestProtocolTracker_REQA_resetsStickyStatus(t *testing.T) {
	tr := NewProtocolTracker()
	tr.Status.MaxFrameSize = 40 // simulate a prior ATS narrowing it
	f := reqaFrame([]byte{0x26}, FramePoll)
	tr.Classify(f)
	assert.Equal(t, 256, tr.Status.MaxFrameSize)
}

func TestProtocolTracker_REQB_ATQB_setsFsdiAndFwi(t *testing.T) {
	tr := NewProtocolTracker()
	reqb := &RawFrame{TechType: NfcB, FrameType: FramePoll, Data: []byte{0x05, 0x00, 0x00}}
	tr.Classify(reqb)
	assert.Equal(t, PhaseSense, reqb.FramePhase)
	assert.Equal(t, fwtAtqb, tr.Status.FrameWaitingTime)

	atqb := make([]byte, 12)
	atqb[0] = 0x50
	atqb[10] = 0x30 // FSDI=3
	atqb[11] = 0x40 // FWI=4
	atqbFrame := &RawFrame{TechType: NfcB, FrameType: FrameListen, Data: atqb}
	tr.Classify(atqbFrame)
	assert.Equal(t, PhaseSense, atqbFrame.FramePhase)
	assert.Equal(t, fsciToFSC(3), tr.Status.MaxFrameSize)
	assert.Equal(t, fwiToFWT(4), tr.Status.FrameWaitingTime)
}

func TestProtocolTracker_ATTRIB_setsFsdi(t *testing.T) {
	tr := NewProtocolTracker()
	attrib := make([]byte, 9)
	attrib[0] = 0x1D
	attrib[6] = 0x05 // Param2 low nibble FSDI=5
	f := &RawFrame{TechType: NfcB, FrameType: FramePoll, Data: attrib}
	tr.Classify(f)
	assert.Equal(t, PhaseSelection, f.FramePhase)
	assert.Equal(t, fsciToFSC(5), tr.Status.MaxFrameSize)
}

func TestProtocolTracker_REQC_isSensePhase(t *testing.T) {
	tr := NewProtocolTracker()
	f := &RawFrame{TechType: NfcF, FrameType: FramePoll, Data: []byte{0x06, 0xFF, 0xFF, 0x00}}
	tr.Classify(f)
	assert.Equal(t, PhaseSense, f.FramePhase)
	assert.Equal(t, fwtAtqc, tr.Status.FrameWaitingTime)
}

func TestProtocolTracker_NfcV_InventoryAndSelect(t *testing.T) {
	tr := NewProtocolTracker()
	inv := &RawFrame{TechType: NfcV, FrameType: FramePoll, Data: []byte{0x26, 0x01, 0x00}}
	tr.Classify(inv)
	assert.Equal(t, PhaseSense, inv.FramePhase)

	sel := &RawFrame{TechType: NfcV, FrameType: FramePoll, Data: []byte{0x20, 0x25}}
	tr.Classify(sel)
	assert.Equal(t, PhaseSelection, sel.FramePhase)
}

func TestProtocolTracker_CarrierEvents_arePhaseCarrier(t *testing.T) {
	tr := NewProtocolTracker()
	for _, ft := range []FrameType{FrameCarrierOn, FrameCarrierOff, FrameVccLow, FrameVccHigh, FrameRstLow, FrameRstHigh} {
		f := &RawFrame{TechType: NfcA, FrameType: ft}
		tr.Classify(f)
		assert.Equal(t, PhaseCarrier, f.FramePhase)
	}
}

func TestProtocolTracker_HLTA_isSelectionNotApplication(t *testing.T) {
	tr := NewProtocolTracker()
	f := reqaFrame([]byte{0x50, 0x00, 0x00}, FramePoll)
	tr.Classify(f)
	assert.Equal(t, PhaseSelection, f.FramePhase)
}
