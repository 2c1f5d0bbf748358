// Package vmlog provides the operational logger used by the driver: run
// start/stop at info level, instruction tracing at debug level, and
// failures at error level. It is independent of the human-readable
// disassembly-style trace a driver may also print for -trace.
package vmlog

import (
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("slotvm")

// Infof logs an info-level operational message.
func Infof(format string, args ...any) { log.Infof(format, args...) }

// Debugf logs a debug-level message, used for per-instruction tracing.
func Debugf(format string, args ...any) { log.Debugf(format, args...) }

// Errorf logs an error-level message.
func Errorf(format string, args ...any) { log.Errorf(format, args...) }

// Warningf logs a warning-level message.
func Warningf(format string, args ...any) { log.Warningf(format, args...) }
