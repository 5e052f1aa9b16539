package main

/*------------------------------------------------------------------
 *
 * Purpose:	Interactive ISO 7816-3 contact smart-card session: drives
 *		the event-driven decoder (component H) from either a real
 *		GPIO-attached reader or, in -dev mode, a pseudo terminal
 *		standing in for one.
 *
 * Description:	Two line-level inputs feed the decoder: VCC/RST edges
 *		(component H's "Cold -> ATR -> PPS? -> T0|T1" lifecycle)
 *		and a UART byte stream. On real hardware the former comes
 *		from GPIO lines and the latter from a serial device; in
 *		-dev mode both are synthesized from a pseudo terminal, the
 *		way kiss.go's kisspt_open_pt stood in for a real TNC link.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/creack/pty"
	gpiocdev "github.com/warthog618/go-gpiocdev"

	"github.com/josevcm/nfc-laboratory-sub003/iso7816"
	"github.com/josevcm/nfc-laboratory-sub003/nfc"
	"github.com/pkg/term"
	"github.com/spf13/pflag"
)

func main() {
	var dev = pflag.BoolP("dev", "d", false, "Development mode: drive a pseudo terminal instead of real GPIO/serial hardware.")
	var serialDevice = pflag.StringP("serial-device", "s", "/dev/ttyUSB0", "Reader UART device (ignored in -dev mode).")
	var gpioChip = pflag.StringP("gpio-chip", "g", "gpiochip0", "GPIO chip the reader's VCC/RST lines are attached to.")
	var vccLine = pflag.IntP("vcc-line", "", 17, "GPIO line offset driving VCC.")
	var rstLine = pflag.IntP("rst-line", "", 27, "GPIO line offset driving RST.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: nfcsmartcard [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dec := iso7816.NewDecoder()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		dec.Run(ctx)
	}()
	go printFrames(dec)
	go printStatus(dec)

	var err error
	if *dev {
		err = runDevSession(ctx, dec)
	} else {
		err = runHardwareSession(ctx, dec, *gpioChip, *vccLine, *rstLine, *serialDevice)
	}
	if err != nil {
		nfc.Logger.Error("smartcard session", "err", err)
		os.Exit(1)
	}

	<-ctx.Done()
	<-runDone
}

func printFrames(dec *iso7816.Decoder) {
	for f := range dec.Output() {
		if f.Kind != iso7816.KindTPDU {
			nfc.Logger.Info("line event", "kind", f.Kind)
			continue
		}
		nfc.Logger.Info("frame", "protocol", f.Protocol, "block", f.BlockType, "header", fmt.Sprintf("%X", f.Header), "data", fmt.Sprintf("%X", f.Data))
	}
}

func printStatus(dec *iso7816.Decoder) {
	for err := range dec.Status() {
		nfc.Logger.Warn("status", "err", err)
	}
}

// runDevSession opens a pseudo terminal (the operator drives it, e.g.
// with a terminal emulator or a script feeding raw ATR/TPDU bytes) and
// synthesizes a cold-reset VCC/RST sequence before relaying every byte
// read from the master side as a ByteEvent.
func runDevSession(ctx context.Context, dec *iso7816.Decoder) error {
	ptmx, pts, err := pty.Open()
	if err != nil {
		return fmt.Errorf("open pty: %w", err)
	}
	defer ptmx.Close()
	defer pts.Close()
	nfc.Logger.Info("dev mode: feed ATR/TPDU bytes to", "pty", pts.Name())

	now := time.Now()
	dec.LineEvents() <- iso7816.LineEvent{Line: iso7816.LineVCC, Rising: true, Time: now}
	dec.LineEvents() <- iso7816.LineEvent{Line: iso7816.LineRST, Rising: true, Time: now.Add(time.Millisecond)}

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := ptmx.Read(buf)
			if err != nil {
				return
			}
			if n == 1 {
				dec.ByteEvents() <- iso7816.ByteEvent{Value: buf[0], Time: time.Now()}
			}
		}
	}()

	<-ctx.Done()
	return nil
}

// runHardwareSession drives VCC/RST via go-gpiocdev and reads the
// reader's UART via pkg/term, the pure-Go equivalents of the teacher's
// parallel-port PTT toggling (ptt.go) and term.Open serial access
// (serial_port.go) respectively.
func runHardwareSession(ctx context.Context, dec *iso7816.Decoder, chipName string, vccOffset, rstOffset int, serialDevice string) error {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	defer chip.Close()

	vcc, err := chip.RequestLine(vccOffset, gpiocdev.AsOutput(0))
	if err != nil {
		return fmt.Errorf("request vcc line: %w", err)
	}
	defer vcc.Close()

	rst, err := chip.RequestLine(rstOffset, gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
		t := time.Now()
		rising := evt.Type == gpiocdev.LineEventRisingEdge
		dec.LineEvents() <- iso7816.LineEvent{Line: iso7816.LineRST, Rising: rising, Time: t}
	}), gpiocdev.WithBothEdges)
	if err != nil {
		return fmt.Errorf("request rst line: %w", err)
	}
	defer rst.Close()

	fd, err := term.Open(serialDevice, term.RawMode)
	if err != nil {
		return fmt.Errorf("open serial %s: %w", serialDevice, err)
	}
	defer fd.Close()
	fd.SetSpeed(9600) // reader UART rate per ISO 7816-3 default etu, same convention as serial_port_open

	if err := vcc.SetValue(1); err != nil {
		return fmt.Errorf("raise vcc: %w", err)
	}
	dec.LineEvents() <- iso7816.LineEvent{Line: iso7816.LineVCC, Rising: true, Time: time.Now()}

	go func() {
		r := bufio.NewReader(fd)
		for {
			b, err := r.ReadByte()
			if err != nil {
				return
			}
			dec.ByteEvents() <- iso7816.ByteEvent{Value: b, Time: time.Now()}
		}
	}()

	<-ctx.Done()
	vcc.SetValue(0)
	return nil
}
