package wavcap

import (
	"time"

	"github.com/lestrrat-go/strftime"
)

// FilenamePattern is the default capture output name, expanded against a
// session's start time via strftime.
const FilenamePattern = "nfc-%Y%m%d-%H%M%S.wav"

// FormatFilename expands pattern against t.
func FormatFilename(pattern string, t time.Time) (string, error) {
	f, err := strftime.New(pattern)
	if err != nil {
		return "", err
	}
	return f.FormatString(t), nil
}
