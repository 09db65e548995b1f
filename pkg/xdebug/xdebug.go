// Package xdebug provides a debug-build assertion helper for invariant
// violations that are programming errors rather than recoverable conditions
// (e.g. finalizing a transaction to a non-terminal status, or a duplicate
// bucket entry for one key). The condition is always evaluated and a
// failure is always logged; only the panic is gated on the XACTO_DEBUG
// environment variable, so a release build never crashes a service thread
// over a condition a well-formed caller never triggers.
package xdebug

import (
	"fmt"
	"os"

	"xacto/pkg/xlog"
)

var enabled = os.Getenv("XACTO_DEBUG") != ""

// Enabled reports whether debug assertions are active for this process.
func Enabled() bool {
	return enabled
}

// Assert panics with msg if cond is false and debug assertions are enabled.
// A failing assertion always logs at error level regardless of whether it
// panics, so a release build still surfaces the violation.
func Assert(cond bool, format string, args ...any) {
	if cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	xlog.Logger.Error().Str("component", "xdebug").Msg(msg)
	if enabled {
		panic("xdebug: assertion failed: " + msg)
	}
}
