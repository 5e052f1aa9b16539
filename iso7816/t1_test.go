package iso7816

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedT1(d *T1Decoder, bs ...byte) (*Frame, bool) {
	var f *Frame
	var complete bool
	for _, b := range bs {
		f, complete = d.Feed(ByteEvent{Value: b, Time: time.Unix(0, 0)})
	}
	return f, complete
}

func TestT1Decoder_IBlockWithLRC(t *testing.T) {
	d := NewT1Decoder(false)
	f, complete := feedT1(d, 0x00, 0x02, 0x01, 0x02, 0xAB)
	require.True(t, complete)
	assert.Equal(t, BlockI, f.BlockType)
	assert.False(t, f.Chaining)
	assert.Equal(t, []byte{0x01, 0x02}, f.Data)
	assert.Equal(t, ProtocolT1, f.Protocol)
}

func TestT1Decoder_IBlockChainingBit(t *testing.T) {
	d := NewT1Decoder(false)
	f, complete := feedT1(d, 0x10, 0x00, 0xAB)
	require.True(t, complete)
	assert.Equal(t, BlockI, f.BlockType)
	assert.True(t, f.Chaining)
}

func TestT1Decoder_RBlock(t *testing.T) {
	d := NewT1Decoder(false)
	f, complete := feedT1(d, 0x80, 0x00, 0xCC)
	require.True(t, complete)
	assert.Equal(t, BlockR, f.BlockType)
	assert.False(t, f.Chaining)
}

func TestT1Decoder_SBlock(t *testing.T) {
	d := NewT1Decoder(false)
	f, complete := feedT1(d, 0xC0, 0x00, 0xDD)
	require.True(t, complete)
	assert.Equal(t, BlockS, f.BlockType)
}

func TestT1Decoder_ZeroLengthSkipsDataPhase(t *testing.T) {
	d := NewT1Decoder(false)
	f, complete := feedT1(d, 0x00, 0x00, 0xEE)
	require.True(t, complete)
	assert.Empty(t, f.Data)
}

func TestT1Decoder_CRCTrailerNeedsTwoBytes(t *testing.T) {
	d := NewT1Decoder(true)
	_, complete := feedT1(d, 0x00, 0x01, 0x05, 0x11)
	assert.False(t, complete)
	f, complete := feedT1(d, 0x22)
	require.True(t, complete)
	assert.Equal(t, []byte{0x05}, f.Data)
}

func TestT1Decoder_ResetsAfterCompletion(t *testing.T) {
	d := NewT1Decoder(false)
	feedT1(d, 0x00, 0x01, 0x05, 0xAB)
	f, complete := feedT1(d, 0x80, 0x00, 0xCC)
	require.True(t, complete)
	assert.Equal(t, BlockR, f.BlockType)
}
