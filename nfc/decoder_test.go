package nfc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDecoder_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 0
	_, err := NewDecoder(cfg, time.Unix(0, 0), nil)
	assert.Error(t, err)
}

func TestNewDecoder_BuildsRunnablePipeline(t *testing.T) {
	d, err := NewDecoder(DefaultConfig(), time.Unix(0, 0), nil)
	require.NoError(t, err)
	assert.NotNil(t, d.ring)
	assert.NotNil(t, d.envelope)
	assert.NotNil(t, d.bank)
	assert.NotNil(t, d.tracker)
	assert.False(t, d.running)
}

func TestDecoder_StartStopLifecycle(t *testing.T) {
	d, err := NewDecoder(DefaultConfig(), time.Unix(0, 0), nil)
	require.NoError(t, err)

	d.handleControl(ControlMessage{Cmd: CmdStart})
	assert.True(t, d.running)

	d.handleControl(ControlMessage{Cmd: CmdStop})
	assert.False(t, d.running)
}

func TestDecoder_ConfigureRejectsInvalidConfig(t *testing.T) {
	d, err := NewDecoder(DefaultConfig(), time.Unix(0, 0), nil)
	require.NoError(t, err)
	original := d.cfg

	bad := DefaultConfig()
	bad.SampleRate = -1
	d.handleControl(ControlMessage{Cmd: CmdConfigure, NewConfig: bad})

	assert.Equal(t, original.SampleRate, d.cfg.SampleRate)
	select {
	case se := <-d.Status():
		assert.Equal(t, ErrConfiguration, se.Kind)
	default:
		t.Fatal("expected a status entry for the rejected config")
	}
}

func TestDecoder_ConfigureIgnoredWithFrameInFlight(t *testing.T) {
	d, err := NewDecoder(DefaultConfig(), time.Unix(0, 0), nil)
	require.NoError(t, err)
	d.active = newSymbolA(&BitrateParams{}, d.cfg.NfcA, FramePoll, 256, 0, d.sampleRate, d.sessionStart)

	next := DefaultConfig()
	next.SampleRate = 5_000_000
	d.handleControl(ControlMessage{Cmd: CmdConfigure, NewConfig: next})

	assert.Equal(t, DefaultConfig().SampleRate, d.cfg.SampleRate)
}

func TestDecoder_PublishStatusDropsOldestWhenFull(t *testing.T) {
	d, err := NewDecoder(DefaultConfig(), time.Unix(0, 0), nil)
	require.NoError(t, err)

	for i := 0; i < statusQueueDepth; i++ {
		d.publishStatus(&SessionError{Kind: ErrDevice, Message: "fill"})
	}
	assert.Equal(t, 0, d.DroppedStatusCount())

	d.publishStatus(&SessionError{Kind: ErrDevice, Message: "overflow"})
	assert.Equal(t, 1, d.DroppedStatusCount())
	assert.Equal(t, statusQueueDepth, len(d.status))
}

func TestDecoder_DrainActiveEmitsTruncatedFrame(t *testing.T) {
	d, err := NewDecoder(DefaultConfig(), time.Unix(0, 0), nil)
	require.NoError(t, err)
	d.active = newSymbolA(&BitrateParams{}, d.cfg.NfcA, FramePoll, 256, 0, d.sampleRate, d.sessionStart)

	d.drainActive()
	assert.Nil(t, d.active)
	select {
	case frame := <-d.Output():
		assert.True(t, frame.Flags.Has(FlagTruncated))
	default:
		t.Fatal("expected a drained frame on Output")
	}
}

func TestDecoder_StartEmitsCarrierOnFrame(t *testing.T) {
	d, err := NewDecoder(DefaultConfig(), time.Unix(0, 0), nil)
	require.NoError(t, err)

	d.handleControl(ControlMessage{Cmd: CmdStart})

	select {
	case frame := <-d.Output():
		assert.Equal(t, FrameCarrierOn, frame.FrameType)
	default:
		t.Fatal("expected a CarrierOn frame on Output")
	}
}

func TestDecoder_EOFBlockEmitsCarrierOffFrame(t *testing.T) {
	d, err := NewDecoder(DefaultConfig(), time.Unix(0, 0), nil)
	require.NoError(t, err)
	d.handleControl(ControlMessage{Cmd: CmdStart})
	<-d.Output() // drain the CarrierOn frame emitted by Start

	d.processBlock(SampleBlock{})

	select {
	case frame := <-d.Output():
		assert.Equal(t, FrameCarrierOff, frame.FrameType)
	default:
		t.Fatal("expected a CarrierOff frame on Output after an EOF block")
	}
	assert.False(t, d.running)
}

func TestPollOrListen_DepthThreshold(t *testing.T) {
	assert.Equal(t, FramePoll, pollOrListen(0.5))
	assert.Equal(t, FramePoll, pollOrListen(0.9))
	assert.Equal(t, FrameListen, pollOrListen(0.49))
	assert.Equal(t, FrameListen, pollOrListen(0.0))
}
