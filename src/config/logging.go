package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger. Output goes to stdout; when
// global.log_dir is set, a per-day log file is added alongside it. A log
// directory that cannot be created is reported but does not prevent startup.
func NewLogger(cfg *Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.InfoLevel)

	dir := cfg.Global.LogDir
	if dir == "" {
		return logger
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.WithError(err).Warn("Unable to create log directory, logging to stdout only")
		return logger
	}

	name := fmt.Sprintf("compose-manager-%s.log", time.Now().Format("20060102"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		logger.WithError(err).Warn("Unable to open log file, logging to stdout only")
		return logger
	}

	logger.SetOutput(io.MultiWriter(os.Stdout, f))
	return logger
}
