package main

/*------------------------------------------------------------------
 *
 * Purpose:	Self-test signal generator: writes a synthetic NFC-A
 *		REQA capture (carrier + Modified Miller ASK), the way
 *		gen_tone generated AFSK tones for testing the modem
 *		without a sound card. Not a card emulator: see spec
 *		Non-goals.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/josevcm/nfc-laboratory-sub003/wavcap"
	"github.com/spf13/pflag"
)

const (
	carrierHz   = 13_560_000
	reqaSymbols = 106_000.0 // NFC-A symbol rate, bit/s for a short frame
)

func main() {
	var outFile = pflag.StringP("output", "o", "reqa.wav", "Capture output path.")
	var sampleRate = pflag.IntP("sample-rate", "r", 4_000_000, "Output sample rate, Hz.")
	var command = pflag.Uint8P("command", "c", 0x26, "Short-frame command byte to encode (REQA=0x26, WUPA=0x52).")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: nfcgen [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	samples := generateReqa(*sampleRate, *command)

	f, err := os.Create(*outFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "nfcgen:", err)
		os.Exit(1)
	}
	defer f.Close()

	header := wavcap.Header{
		SampleRate:   *sampleRate,
		ChannelCount: 1,
		Format:       wavcap.FormatFloat32,
		Meta:         wavcap.Meta{Epoch: uint32(time.Now().Unix())},
	}
	w, err := wavcap.NewWriter(f, header)
	if err != nil {
		fmt.Fprintln(os.Stderr, "nfcgen:", err)
		os.Exit(1)
	}
	if _, err := w.WriteSamples(samplesToBytes(samples)); err != nil {
		fmt.Fprintln(os.Stderr, "nfcgen:", err)
		os.Exit(1)
	}
	if err := w.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "nfcgen:", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d samples (%.2fms) to %s\n", len(samples), 1000*float64(len(samples))/float64(*sampleRate), *outFile)
}

// generateReqa renders cmd as a 7-bit NFC-A short frame: two idle symbols,
// 7 Modified Miller symbols (one bit each, LSB first, no parity), two
// idle symbols for EOF. Pulses follow the same first-half/second-half
// convention symbol_a.go decodes: a 1 bit pulses the first half of its
// symbol, a 0 bit pulses the second half.
func generateReqa(sampleRate int, cmd uint8) []float32 {
	symbolSamples := int(float64(sampleRate) / reqaSymbols)
	if symbolSamples < 4 {
		symbolSamples = 4
	}
	pulseSamples := symbolSamples / 4
	if pulseSamples < 1 {
		pulseSamples = 1
	}

	var out []float32
	idleSymbol := func() {
		for i := 0; i < symbolSamples; i++ {
			out = append(out, 1.0)
		}
	}
	bitSymbol := func(bit int) {
		half := symbolSamples / 2
		for i := 0; i < symbolSamples; i++ {
			pulse := false
			if bit == 1 {
				pulse = i < pulseSamples
			} else {
				pulse = i >= half && i < half+pulseSamples
			}
			if pulse {
				out = append(out, 0.1) // deep ASK dip, ~100% modulation
			} else {
				out = append(out, 1.0)
			}
		}
	}

	idleSymbol() // settle the envelope peak tracker before the SOF
	idleSymbol()
	for bit := 0; bit < 7; bit++ {
		bitSymbol(int(cmd>>uint(bit)) & 1)
	}
	idleSymbol() // EOF: two full symbols of silence
	idleSymbol()
	return out
}

func samplesToBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], math.Float32bits(s))
	}
	return out
}
