package logger

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Setup configures the process-wide logger. Unknown levels fall back to info.
func Setup(level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           lvl,
	})
	log.SetDefault(l)
	if err != nil {
		l.Warn("unknown log level, using info", "level", level)
	}
	return l
}
