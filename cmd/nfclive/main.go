package main

/*------------------------------------------------------------------
 *
 * Purpose:	Live acquisition: capture an IF signal from a
 *		sound-card-attached SDR front end, tune it to 13.56 MHz
 *		via hamlib CAT control, and feed the result into the
 *		decoder in real time, writing both a WAV/META capture
 *		and a JSON protocol archive.
 *
 * Description:	Device selection follows §6's CLI surface: a single
 *		positional argument of the form
 *
 *			radio://<driver>:<serial>   (airspy, rtlsdr - via udev)
 *			logic://<driver>:<serial>   (sipeed - via mDNS)
 *
 *		resolves to the capture device and, for radio:// targets,
 *		the rig hamlib should tune to 13.56 MHz before capture.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/brutella/dnssd"
	"github.com/gordonklaus/portaudio"
	hamlib "github.com/xylo04/goHamlib"

	"github.com/josevcm/nfc-laboratory-sub003/archive"
	"github.com/josevcm/nfc-laboratory-sub003/nfc"
	"github.com/josevcm/nfc-laboratory-sub003/wavcap"
	"github.com/jochenvg/go-udev"
	"github.com/spf13/pflag"
)

const nominalFreqHz = 13_560_000

func main() {
	var configFile = pflag.StringP("config-file", "c", "", "YAML configuration file.")
	var capturePath = pflag.StringP("capture", "w", "", "WAV/META capture output path. Empty disables capture-to-disk.")
	var archivePath = pflag.StringP("archive", "o", "session.json", "Archive output path.")
	var rigModel = pflag.IntP("rig-model", "m", 0, "hamlib rig model id. 0 skips CAT tuning.")
	var rigDevice = pflag.StringP("rig-device", "d", "", "hamlib CAT control device (serial port or host:port).")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: nfclive [options] radio://<driver>:<serial>|logic://<driver>:<serial>\n\n")
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

	cfg := nfc.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = nfc.LoadConfig(*configFile)
		if err != nil {
			nfc.Logger.Error("load config", "err", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dev, err := resolveDevice(ctx, pflag.Arg(0))
	if err != nil {
		nfc.Logger.Error("resolve device", "err", err)
		os.Exit(1)
	}
	nfc.Logger.Info("device resolved", "driver", dev.driver, "serial", dev.serial, "audio", dev.audioDevice)

	if *rigModel != 0 {
		if err := tuneRig(*rigModel, *rigDevice); err != nil {
			nfc.Logger.Error("tune rig", "err", err)
			os.Exit(1)
		}
	}

	if err := portaudio.Initialize(); err != nil {
		nfc.Logger.Error("portaudio init", "err", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	const framesPerBuffer = 4096
	buf := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(cfg.SampleRate), framesPerBuffer, buf)
	if err != nil {
		nfc.Logger.Error("open audio stream", "err", err)
		os.Exit(1)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		nfc.Logger.Error("start audio stream", "err", err)
		os.Exit(1)
	}
	defer stream.Stop()

	sessionStart := time.Now()
	dec, err := nfc.NewDecoder(cfg, sessionStart, nil)
	if err != nil {
		nfc.Logger.Error("configure decoder", "err", err)
		os.Exit(1)
	}

	var capWriter *wavcap.Writer
	var capFile *os.File
	if *capturePath != "" {
		capFile, err = os.Create(*capturePath)
		if err != nil {
			nfc.Logger.Error("create capture file", "err", err)
			os.Exit(1)
		}
		defer capFile.Close()
		capWriter, err = wavcap.NewWriter(capFile, wavcap.Header{
			SampleRate:   cfg.SampleRate,
			ChannelCount: 1,
			Format:       wavcap.FormatFloat32,
			Meta:         wavcap.Meta{Epoch: uint32(sessionStart.Unix())},
		})
		if err != nil {
			nfc.Logger.Error("open capture writer", "err", err)
			os.Exit(1)
		}
	}

	archiveFile, err := os.Create(*archivePath)
	if err != nil {
		nfc.Logger.Error("create archive", "err", err)
		os.Exit(1)
	}
	defer archiveFile.Close()
	aw := archive.NewWriter(archiveFile)

	go func() {
		for frame := range dec.Output() {
			aw.Append(frame)
		}
	}()
	go func() {
		for err := range dec.Status() {
			nfc.Logger.Warn("session status", "err", err)
		}
	}()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		dec.Run(runCtx)
	}()
	dec.Control() <- nfc.ControlMessage{Cmd: nfc.CmdStart}

	nfc.Logger.Info("capturing", "sample_rate", cfg.SampleRate)
	for ctx.Err() == nil {
		if err := stream.Read(); err != nil {
			nfc.Logger.Warn("audio read", "err", err)
			break
		}
		block := make([]float32, len(buf))
		copy(block, buf)
		dec.Input() <- nfc.SampleBlock{SampleRate: cfg.SampleRate, StreamTime: time.Now(), ChannelLayout: nfc.ChannelReal, Samples: block}
		if capWriter != nil {
			capWriter.WriteSamples(samplesToFloat32LE(block))
		}
	}

	close(dec.Input())
	cancelRun()
	<-runDone

	if capWriter != nil {
		if err := capWriter.Close(); err != nil {
			nfc.Logger.Error("close capture", "err", err)
		}
	}
	if err := aw.Close(); err != nil {
		nfc.Logger.Error("close archive", "err", err)
	}
}

type resolvedDevice struct {
	driver      string
	serial      string
	audioDevice string
}

// resolveDevice parses the "<scheme>://<driver>:<serial>" CLI argument
// (§6) and resolves it to a capture device: radio:// targets enumerate
// USB via udev, logic:// targets resolve via mDNS.
func resolveDevice(ctx context.Context, arg string) (resolvedDevice, error) {
	scheme, rest, ok := strings.Cut(arg, "://")
	if !ok {
		return resolvedDevice{}, fmt.Errorf("malformed device string %q", arg)
	}
	driver, serial, _ := strings.Cut(rest, ":")

	switch scheme {
	case "radio":
		return resolveRadioDevice(driver, serial)
	case "logic":
		return resolveLogicDevice(ctx, driver, serial)
	default:
		return resolvedDevice{}, fmt.Errorf("unknown device scheme %q", scheme)
	}
}

// resolveRadioDevice finds the USB audio device matching driver/serial
// by enumerating the "sound" subsystem via udev, the way jochenvg/go-udev
// is documented to walk sysfs device trees.
func resolveRadioDevice(driver, serial string) (resolvedDevice, error) {
	u := udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("sound"); err != nil {
		return resolvedDevice{}, err
	}
	devices, err := e.Devices()
	if err != nil {
		return resolvedDevice{}, fmt.Errorf("udev enumerate: %w", err)
	}
	for _, d := range devices {
		if d.PropertyValue("ID_SERIAL_SHORT") == serial || serial == "" {
			return resolvedDevice{driver: driver, serial: serial, audioDevice: d.Syspath()}, nil
		}
	}
	return resolvedDevice{}, fmt.Errorf("no udev sound device matching %s:%s", driver, serial)
}

// resolveLogicDevice resolves a "logic://sipeed:<sn>" target via
// brutella/dnssd's blocking single-instance lookup.
func resolveLogicDevice(ctx context.Context, driver, serial string) (resolvedDevice, error) {
	instance := fmt.Sprintf("%s-%s._nfclogic._tcp.local.", driver, serial)
	lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	entry, err := dnssd.LookupInstance(lookupCtx, instance)
	if err != nil {
		return resolvedDevice{}, fmt.Errorf("dnssd lookup %s: %w", instance, err)
	}
	addr := entry.IPs[0].String() + ":" + strconv.Itoa(entry.Port)
	return resolvedDevice{driver: driver, serial: serial, audioDevice: addr}, nil
}

// tuneRig sets the attached rig's VFO to the 13.56 MHz ISM carrier via
// hamlib CAT control, the xylo04/goHamlib equivalent of the teacher's
// cgo rig_init/rig_open/rig_set_freq sequence (src/ptt.go, currently
// disabled there pending a full port).
func tuneRig(model int, device string) error {
	rig, err := hamlib.Open(model, device)
	if err != nil {
		return fmt.Errorf("hamlib open model %d on %s: %w", model, device, err)
	}
	defer rig.Close()
	if err := rig.SetFreq(hamlib.VFOCurrent, nominalFreqHz); err != nil {
		return fmt.Errorf("hamlib set freq: %w", err)
	}
	return nil
}

func samplesToFloat32LE(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		bits := math.Float32bits(s)
		out[i*4] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}
