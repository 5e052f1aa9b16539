package nfc

import (
	"os"

	"github.com/charmbracelet/log"
)

// Logger is the single process-wide collaborator (spec §9 "No global
// mutable state ... a logging facility is the only process-wide
// collaborator"). cmd/ tools may replace it (e.g. to retarget output or
// raise the level) before constructing a Decoder.
var Logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Prefix:          "nfc",
})
