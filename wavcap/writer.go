package wavcap

import (
	"encoding/binary"
	"io"
)

// Writer streams sample bytes into a RIFF/WAVE/META capture file. The
// underlying writer must also support Seek, since the RIFF and data
// chunk sizes are only known once Close runs.
type Writer struct {
	w      io.WriteSeeker
	header Header

	dataStart int64
	dataLen   uint32
}

// NewWriter writes the RIFF/WAVE/fmt/META chunk headers and a
// zero-length data chunk header, leaving w positioned to receive sample
// bytes via WriteSamples.
func NewWriter(w io.WriteSeeker, header Header) (*Writer, error) {
	wr := &Writer{w: w, header: header}

	if err := writeChunkHeader(w, riffID, 0); err != nil { // size patched on Close
		return nil, err
	}
	if _, err := io.WriteString(w, waveID); err != nil {
		return nil, err
	}

	fmtBody := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtBody[0:2], header.Format.audioFormatTag())
	binary.LittleEndian.PutUint16(fmtBody[2:4], uint16(header.ChannelCount))
	binary.LittleEndian.PutUint32(fmtBody[4:8], uint32(header.SampleRate))
	bitsPerSample := header.Format.bitsPerSample()
	blockAlign := header.ChannelCount * bitsPerSample / 8
	byteRate := header.SampleRate * blockAlign
	binary.LittleEndian.PutUint32(fmtBody[8:12], uint32(byteRate))
	binary.LittleEndian.PutUint16(fmtBody[12:14], uint16(blockAlign))
	binary.LittleEndian.PutUint16(fmtBody[14:16], uint16(bitsPerSample))
	if err := writeChunk(w, fmtID, fmtBody); err != nil {
		return nil, err
	}

	metaBody := make([]byte, 4+8*4)
	binary.LittleEndian.PutUint32(metaBody[0:4], header.Meta.Epoch)
	for i, k := range header.Meta.ChannelKeys {
		binary.LittleEndian.PutUint32(metaBody[4+i*4:8+i*4], k)
	}
	if err := writeChunk(w, metaID, metaBody); err != nil {
		return nil, err
	}

	pos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	if err := writeChunkHeader(w, dataID, 0); err != nil { // size patched on Close
		return nil, err
	}
	wr.dataStart = pos

	return wr, nil
}

// WriteSamples appends raw sample bytes to the data chunk.
func (wr *Writer) WriteSamples(data []byte) (int, error) {
	n, err := wr.w.Write(data)
	wr.dataLen += uint32(n)
	return n, err
}

// Close patches the RIFF and data chunk sizes now that the payload
// length is known.
func (wr *Writer) Close() error {
	endPos, err := wr.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	if _, err := wr.w.Seek(wr.dataStart+4, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(wr.w, binary.LittleEndian, wr.dataLen); err != nil {
		return err
	}

	riffSize := uint32(endPos - 8)
	if _, err := wr.w.Seek(4, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(wr.w, binary.LittleEndian, riffSize); err != nil {
		return err
	}

	_, err = wr.w.Seek(endPos, io.SeekStart)
	return err
}

func writeChunkHeader(w io.Writer, id string, size uint32) error {
	if _, err := io.WriteString(w, id); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, size)
}

func writeChunk(w io.Writer, id string, body []byte) error {
	if err := writeChunkHeader(w, id, uint32(len(body))); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
