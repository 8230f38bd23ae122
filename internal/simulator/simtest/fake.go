// Package simtest provides a scripted Invoker for tests that exercise the
// sweep, reshape and compare pipelines without ngspice.
package simtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"mosregress/internal/simulator"
)

var wrdataPattern = regexp.MustCompile(`(?m)^wrdata\s+(\S+)`)

// OutputPath returns the result file a rendered deck writes.
func OutputPath(deck []byte) (string, bool) {
	m := wrdataPattern.FindSubmatch(deck)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

// Producer returns the result file contents for a deck. ok=false means the
// simulated run produces nothing.
type Producer func(deckPath, outputPath string, deck []byte) (data []byte, ok bool)

// Invoker writes whatever Produce returns to the deck's wrdata target.
type Invoker struct {
	Produce Producer
	Delay   func(deckPath string) time.Duration

	mu    sync.Mutex
	decks []string
}

// Run implements simulator.Invoker.
func (f *Invoker) Run(ctx context.Context, deckPath string) (*simulator.Result, error) {
	f.mu.Lock()
	f.decks = append(f.decks, deckPath)
	f.mu.Unlock()

	if f.Delay != nil {
		select {
		case <-time.After(f.Delay(deckPath)):
		case <-ctx.Done():
			return &simulator.Result{Deck: deckPath, ExitCode: -1, Killed: true}, nil
		}
	}

	deck, err := os.ReadFile(deckPath)
	if err != nil {
		return nil, err
	}
	res := &simulator.Result{Deck: deckPath, Log: deckPath + ".log", ExitCode: 1}
	out, ok := OutputPath(deck)
	if !ok || f.Produce == nil {
		return res, nil
	}
	data, ok := f.Produce(deckPath, out, deck)
	if !ok {
		return res, nil
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return nil, fmt.Errorf("fake simulator: %w", err)
	}
	res.ExitCode = 0
	return res, nil
}

// Decks returns every deck path run so far, in call order.
func (f *Invoker) Decks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.decks))
	copy(out, f.decks)
	return out
}
