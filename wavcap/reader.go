package wavcap

import (
	"encoding/binary"
	"io"
)

// Reader parses a RIFF/WAVE/META capture file's chunk sequence, the way
// the teacher's atest.go walks RIFF/"fmt "/"data" (there over a C
// FILE*), and exposes the recovered Header plus the raw data chunk.
//
// Capture files read by this decoder (test vectors, short session
// recordings) are small enough that reading the whole data chunk during
// Open is the simplest correct option; there is no streaming reader.
type Reader struct {
	header  Header
	rawData []byte
}

// OpenReader reads and validates the RIFF/WAVE header and every chunk
// up to and including "data".
func OpenReader(r io.Reader) (*Reader, error) {
	var riff [4]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, err
	}
	if string(riff[:]) != riffID {
		return nil, errBadFile
	}
	var riffSize uint32
	if err := binary.Read(r, binary.LittleEndian, &riffSize); err != nil {
		return nil, err
	}
	var wave [4]byte
	if _, err := io.ReadFull(r, wave[:]); err != nil {
		return nil, err
	}
	if string(wave[:]) != waveID {
		return nil, errBadFile
	}

	rd := &Reader{}
	haveFmt := false

	for {
		id, body, err := readChunk(r)
		if err != nil {
			return nil, err
		}
		switch id {
		case fmtID:
			if len(body) < 16 {
				return nil, errBadFile
			}
			tag := binary.LittleEndian.Uint16(body[0:2])
			rd.header.ChannelCount = int(binary.LittleEndian.Uint16(body[2:4]))
			rd.header.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits := binary.LittleEndian.Uint16(body[14:16])
			rd.header.Format = formatFromTag(tag, bits)
			haveFmt = true
		case metaID:
			if len(body) < 4+8*4 {
				return nil, errBadFile
			}
			rd.header.Meta.Epoch = binary.LittleEndian.Uint32(body[0:4])
			for i := range rd.header.Meta.ChannelKeys {
				rd.header.Meta.ChannelKeys[i] = binary.LittleEndian.Uint32(body[4+i*4 : 8+i*4])
			}
		case dataID:
			if !haveFmt {
				return nil, errBadFile
			}
			rd.rawData = body
			return rd, nil
		}
	}
}

func formatFromTag(tag uint16, bits uint16) SampleFormat {
	if tag == 3 {
		return FormatFloat32
	}
	switch bits {
	case 8:
		return FormatPCM8
	case 32:
		return FormatPCM32
	default:
		return FormatPCM16
	}
}

// ReadAll returns the full data chunk payload.
func (rd *Reader) ReadAll() ([]byte, error) { return rd.rawData, nil }

// Header returns the recovered fmt+META information.
func (rd *Reader) Header() Header { return rd.header }

func readChunk(r io.Reader) (id string, body []byte, err error) {
	var idBuf [4]byte
	if _, err := io.ReadFull(r, idBuf[:]); err != nil {
		return "", nil, err
	}
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return "", nil, err
	}
	body = make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return "", nil, err
	}
	if size%2 == 1 {
		// RIFF chunks are word-aligned; a pad byte follows odd-sized chunks.
		var pad [1]byte
		io.ReadFull(r, pad[:])
	}
	return string(idBuf[:]), body, nil
}
