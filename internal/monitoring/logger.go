// Package monitoring owns process-wide diagnostic logging.
//
// Logf is the printf-style hook every pipeline package logs through. Init
// backs it (and the structured helpers) with a zap logger; until Init is
// called Logf falls back to log.Printf so library use stays quiet-friendly.
package monitoring

import (
	"fmt"
	"log"

	"go.uber.org/zap"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger or Init. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

var sugar *zap.SugaredLogger

// Init builds the zap logger and routes Logf through it. debug selects the
// development encoder at debug level.
func Init(debug bool) error {
	var (
		z   *zap.Logger
		err error
	)
	if debug {
		z, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		z, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}
	UseZap(z)
	return nil
}

// UseZap installs z as the backing logger.
func UseZap(z *zap.Logger) {
	sugar = z.Sugar()
	Logf = sugar.Infof
}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	sugar = nil
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Infow logs a structured message. Without a zap backend the key/value
// pairs are flattened through Logf.
func Infow(msg string, keysAndValues ...interface{}) {
	if sugar != nil {
		sugar.Infow(msg, keysAndValues...)
		return
	}
	Logf("%s%s", msg, flatten(keysAndValues))
}

// Debugw logs at debug level; dropped when no zap backend is installed.
func Debugw(msg string, keysAndValues ...interface{}) {
	if sugar != nil {
		sugar.Debugw(msg, keysAndValues...)
	}
}

// Warnw logs a structured warning.
func Warnw(msg string, keysAndValues ...interface{}) {
	if sugar != nil {
		sugar.Warnw(msg, keysAndValues...)
		return
	}
	Logf("warning: %s%s", msg, flatten(keysAndValues))
}

// Sync flushes any buffered log entries
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}

func flatten(kv []interface{}) string {
	s := ""
	for i := 0; i+1 < len(kv); i += 2 {
		s += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	return s
}
