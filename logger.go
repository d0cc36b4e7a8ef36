package main

import (
	"io"
	"log/slog"
)

// NewLogger returns a structured slog.Logger with the given level. Results
// go to stdout, so logs are written to w (stderr in main).
func NewLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
