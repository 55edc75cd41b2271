// Package panichandler recovers panics, records them through paniclogger and
// slog, and optionally runs a cleanup callback. The callback variant exists
// for callers that hold resources which must be returned on every exit path,
// such as an acquired lock.
package panichandler

import (
	"log/slog"
	"runtime/debug"

	"github.com/dirlock/dirlock/app/paniclogger"
)

// Recover handles a panic and logs it with a stack trace.
// Usage: defer panichandler.Recover("context description")
func Recover(context string) {
	if r := recover(); r != nil {
		stackTrace := debug.Stack()

		// Always written to panic.log as well
		paniclogger.LogPanic(context, r, string(stackTrace))

		slog.Error("caught panic",
			slog.String("context", context),
			slog.Any("error", r),
			slog.String("stack", string(stackTrace)),
		)
	}
}

// RecoverWithCallback handles a panic like Recover and then invokes the
// callback, giving the caller a chance to clean up held resources.
// Usage: defer panichandler.RecoverWithCallback("context", func() { ... })
func RecoverWithCallback(context string, callback func()) {
	if r := recover(); r != nil {
		stackTrace := debug.Stack()

		// Always written to panic.log as well
		paniclogger.LogPanic(context, r, string(stackTrace))

		slog.Error("caught panic",
			slog.String("context", context),
			slog.Any("error", r),
			slog.String("stack", string(stackTrace)),
		)
		if callback != nil {
			callback()
		}
	}
}
