package server

import (
	"os"
	"path/filepath"

	l "github.com/sirupsen/logrus"
)

const logFilename = "musicapp.log"

// setupLogging sets up logging with the level logLevel. With a non-empty
// logDir, log entries go to a file in that directory, otherwise to stderr.
// No log entries are possible before this ran
func setupLogging(logDir, logLevel string) (err error) {
	level, err := l.ParseLevel(logLevel)
	if err != nil {
		return
	}
	l.SetLevel(level)

	if logDir == "" {
		l.SetOutput(os.Stderr)
		return
	}

	path := filepath.Join(logDir, logFilename)

	// create or open file for write & append
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		return
	}

	l.SetOutput(f)
	return
}
