// Package log provides loggers for sonify components.
package log

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var debug bool

func init() {
	var err error
	debug, err = strconv.ParseBool(os.Getenv("SONIFY_DEBUG"))
	if err != nil {
		debug = false
	}
}

// GetLogger returns a new logger instance. Debug level is enabled with
// SONIFY_DEBUG environment variable.
func GetLogger() *logrus.Logger {
	l := logrus.New()
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// New returns a logger with provided level and format. Format is either
// "text" or "json". SONIFY_DEBUG overrides the level.
func New(level, format string) (*logrus.Logger, error) {
	l := GetLogger()
	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	if debug || level == "" {
		return l, nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(lvl)
	return l, nil
}

// Discard returns a logger which drops all entries.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
