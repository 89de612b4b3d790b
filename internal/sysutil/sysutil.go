// Package sysutil holds small process-level helpers shared by the server
// entrypoint: log level plumbing and environment string handling.
package sysutil

import (
	"strings"

	"github.com/rs/zerolog"
)

var logLevels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"":        zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
	"panic":   zerolog.PanicLevel,
}

// SetLogLevel sets the global zerolog level from a config string. The value
// is trimmed and lowercased first; anything unrecognized means info.
func SetLogLevel(lvl string) {
	level, ok := logLevels[strings.ToLower(strings.TrimSpace(lvl))]
	if !ok {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// IsTruthy reports whether an environment value opts a feature in.
// It accepts "1", "true", "yes", "y" and "on" in any casing.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

// FirstNonEmpty returns the first value that is not blank after trimming,
// or "" when every value is blank. The winner is returned untrimmed.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
