package daemon

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mschirtzinger/personal-dash/internal/config"
)

// LogWriter returns stderr, or stderr plus a rotating file when cfg.File is
// set. The returned closer releases the file and is never nil.
func LogWriter(cfg config.LogConfig) (io.Writer, io.Closer) {
	if cfg.File == "" {
		return os.Stderr, nopCloser{}
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	return io.MultiWriter(os.Stderr, rotator), rotator
}

// NewLogger creates a component logger on w with the bracketed prefix the
// rest of pd uses, e.g. NewLogger(w, "sync") logs "[sync] ...".
func NewLogger(w io.Writer, component string) *log.Logger {
	return log.New(w, "["+component+"] ", log.LstdFlags)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
