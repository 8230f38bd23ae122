package simulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"mosregress/internal/logging"
)

// DefaultMaxOutputBytes caps how much console output is kept per run.
const DefaultMaxOutputBytes = 1 << 20

// NGSpice runs decks with "<binary> -b -a <deck> -o <deck>.log".
type NGSpice struct {
	Binary         string
	Timeout        time.Duration // zero means no limit
	MaxOutputBytes int64
}

// NewNGSpice returns an invoker for binary.
func NewNGSpice(binary string, timeout time.Duration) *NGSpice {
	return &NGSpice{Binary: binary, Timeout: timeout, MaxOutputBytes: DefaultMaxOutputBytes}
}

// Run launches the simulator and waits for it. A non-zero exit status is not
// an error; only a failure to start the process is.
func (n *NGSpice) Run(ctx context.Context, deckPath string) (*Result, error) {
	logPath := deckPath + ".log"
	res := &Result{Deck: deckPath, Log: logPath, ExitCode: -1}

	runCtx := ctx
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}

	limit := n.MaxOutputBytes
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}
	var buf bytes.Buffer
	out := &limitedWriter{w: &buf, max: limit}

	cmd := exec.CommandContext(runCtx, n.Binary, "-b", "-a", deckPath, "-o", logPath)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = time.Second

	logging.SimulatorDebug("exec %s -b -a %s -o %s", n.Binary, deckPath, logPath)
	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)
	res.Output = buf.String()

	if out.truncated {
		logging.SimulatorWarn("%s: console output truncated, %d bytes discarded", deckPath, out.discarded)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case runCtx.Err() != nil:
		res.Killed = true
		logging.SimulatorWarn("%s: simulator stopped: %v", deckPath, runCtx.Err())
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		logging.SimulatorDebug("%s: exit status %d", deckPath, res.ExitCode)
	default:
		return res, fmt.Errorf("failed to run %s: %w", n.Binary, err)
	}

	// ngspice writes the log itself; keep the console output when it did not.
	if _, statErr := os.Stat(logPath); os.IsNotExist(statErr) && res.Output != "" {
		if werr := os.WriteFile(logPath, []byte(res.Output), 0644); werr != nil {
			logging.SimulatorWarn("failed to write %s: %v", logPath, werr)
		}
	}

	logging.SimulatorDebug("%s: done in %s", deckPath, res.Duration)
	return res, nil
}

// limitedWriter keeps at most max bytes and silently drops the rest.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil
	}
	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
