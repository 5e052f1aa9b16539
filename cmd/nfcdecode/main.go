package main

/*------------------------------------------------------------------
 *
 * Purpose:	Offline decoder: read a WAV/META capture file, feed it
 *		through the sample-to-frame pipeline, write a JSON
 *		protocol archive.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/josevcm/nfc-laboratory-sub003/archive"
	"github.com/josevcm/nfc-laboratory-sub003/nfc"
	"github.com/josevcm/nfc-laboratory-sub003/wavcap"
	"github.com/spf13/pflag"
)

func main() {
	var configFile = pflag.StringP("config-file", "c", "", "YAML configuration file; defaults used for anything it omits.")
	var outFile = pflag.StringP("output", "o", "", "Archive output path. Defaults to the input name with a .json extension.")
	var blockSamples = pflag.IntP("block-samples", "n", 4096, "Samples delivered to the decoder per SampleBlock.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: nfcdecode [options] capture.wav\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help || pflag.NArg() != 1 {
		pflag.Usage()
		if *help {
			os.Exit(0)
		}
		os.Exit(1)
	}
	inFile := pflag.Arg(0)

	cfg := nfc.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = nfc.LoadConfig(*configFile)
		if err != nil {
			nfc.Logger.Error("load config", "err", err)
			os.Exit(1)
		}
	}

	in, err := os.Open(inFile)
	if err != nil {
		nfc.Logger.Error("open capture", "err", err)
		os.Exit(1)
	}
	defer in.Close()

	cap, err := wavcap.OpenReader(in)
	if err != nil {
		nfc.Logger.Error("read capture", "err", err)
		os.Exit(1)
	}
	header := cap.Header()
	cfg.SampleRate = header.SampleRate

	sessionStart := time.Unix(int64(header.Meta.Epoch), 0)
	dec, err := nfc.NewDecoder(cfg, sessionStart, nil)
	if err != nil {
		nfc.Logger.Error("configure decoder", "err", err)
		os.Exit(1)
	}

	out := *outFile
	if out == "" {
		out = trimExt(inFile) + ".json"
	}
	outF, err := os.Create(out)
	if err != nil {
		nfc.Logger.Error("create archive", "err", err)
		os.Exit(1)
	}
	defer outF.Close()
	aw := archive.NewWriter(outF)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := dec.Run(ctx); err != nil && err != context.Canceled {
			nfc.Logger.Error("decoder run", "err", err)
		}
	}()

	frameCount := 0
	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		for {
			select {
			case frame := <-dec.Output():
				aw.Append(frame)
				frameCount++
			case <-ctx.Done():
				// Drain whatever is already buffered before returning.
				for {
					select {
					case frame := <-dec.Output():
						aw.Append(frame)
						frameCount++
					default:
						return
					}
				}
			}
		}
	}()

	dec.Control() <- nfc.ControlMessage{Cmd: nfc.CmdStart}

	data, err := cap.ReadAll()
	if err != nil {
		nfc.Logger.Error("read samples", "err", err)
		os.Exit(1)
	}
	samples := decodeSamples(data, header.Format)

	for i := 0; i < len(samples); i += *blockSamples {
		end := i + *blockSamples
		if end > len(samples) {
			end = len(samples)
		}
		dec.Input() <- nfc.SampleBlock{
			SampleRate:    header.SampleRate,
			ChannelLayout: nfc.ChannelReal,
			Samples:       samples[i:end],
		}
	}
	close(dec.Input())
	<-done
	// The output channel is never closed (one producer, many possible
	// frames); stop the collector explicitly once Run has returned.
	cancel()
	<-collectDone

	if err := aw.Close(); err != nil {
		nfc.Logger.Error("write archive", "err", err)
		os.Exit(1)
	}
	nfc.Logger.Info("decode complete", "frames", frameCount, "output", out)
}

func decodeSamples(data []byte, format wavcap.SampleFormat) []float32 {
	switch format {
	case wavcap.FormatFloat32:
		out := make([]float32, len(data)/4)
		for i := range out {
			bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
			out[i] = math.Float32frombits(bits)
		}
		return out
	case wavcap.FormatPCM32:
		out := make([]float32, len(data)/4)
		for i := range out {
			v := int32(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
			out[i] = float32(v) / math.MaxInt32
		}
		return out
	case wavcap.FormatPCM8:
		out := make([]float32, len(data))
		for i, b := range data {
			out[i] = (float32(b) - 128) / 128
		}
		return out
	default: // FormatPCM16
		out := make([]float32, len(data)/2)
		for i := range out {
			v := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
			out[i] = float32(v) / math.MaxInt16
		}
		return out
	}
}

func trimExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return path
}
