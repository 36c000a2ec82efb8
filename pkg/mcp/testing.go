package mcp

import (
	"io"
	"log/slog"
)

// testLogger returns a logger that discards output. Keeps test logs quiet
// without touching the global default.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
