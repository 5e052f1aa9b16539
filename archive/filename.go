package archive

import (
	"time"

	"github.com/lestrrat-go/strftime"
)

// FilenamePattern is the default archive output name, expanded against a
// frame's DateTime (spec §3 RawFrame field) via strftime.
const FilenamePattern = "nfc-%Y%m%d-%H%M%S.json"

// FormatFilename expands pattern against t, e.g. to derive an archive
// path from the first frame's capture time.
func FormatFilename(pattern string, t time.Time) (string, error) {
	f, err := strftime.New(pattern)
	if err != nil {
		return "", err
	}
	return f.FormatString(t), nil
}
