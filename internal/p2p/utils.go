package p2p

import (
	"log/slog"
	"strings"
)

// slogUpperString formats a wire command name (e.g. "headers", "inv")
// upper-case for log output, matching how the wire protocol documents
// command names.
func slogUpperString(key, val string) slog.Attr {
	return slog.String(key, strings.ToUpper(val))
}

// slogLvlTrace sits below slog.LevelDebug for the peer read/write loop's
// per-message logging, which is too chatty for ordinary debug output.
const slogLvlTrace slog.Level = slog.LevelDebug - 4
