// Package cliutil provides small terminal output helpers shared by
// cmd/peek's subcommands: JSON encoding, status lines, and
// relative-time formatting — the non-TUI slice of what the teacher's
// internal/output package does for its Bubble Tea-driven CLI.
package cliutil

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// Success prints a one-line success message to stdout.
func Success(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// Error prints a one-line error message to stderr.
func Error(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// JSON writes v to stdout as indented JSON.
func JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// TimeAgo formats a millisecond epoch timestamp as a relative
// human-readable string (e.g. "3 hours ago"), or "never" for zero.
func TimeAgo(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return humanize.Time(time.UnixMilli(ms))
}
