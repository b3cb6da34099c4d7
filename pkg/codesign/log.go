package codesign

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

var discardLogger = log.New(io.Discard)

// NewLogger returns the logger used for diagnostics. level is one of debug,
// info, warn, error or fatal.
func NewLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl := log.InfoLevel
	if level != "" {
		parsed, err := log.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	return log.NewWithOptions(w, log.Options{
		Prefix: "autosign",
		Level:  lvl,
	}), nil
}
