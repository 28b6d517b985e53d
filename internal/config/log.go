package config

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogWriter returns the configured log destination: a rotating file when
// log.file is set, stderr otherwise.
func (c LogConfig) LogWriter() io.Writer {
	if c.File == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
	}
}
