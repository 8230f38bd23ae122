// Package simulator launches the external circuit simulator.
package simulator

import (
	"context"
	"time"
)

// Result describes one simulator invocation. The exit code is informational;
// callers decide success by checking for the deck's result file.
type Result struct {
	Deck     string
	Log      string
	ExitCode int
	Duration time.Duration
	Output   string // captured stdout and stderr, possibly truncated
	Killed   bool   // timeout or cancellation
}

// Invoker runs one deck.
type Invoker interface {
	Run(ctx context.Context, deckPath string) (*Result, error)
}
