package simulator

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	"mosregress/internal/logging"
)

// DefaultMinVersion is the oldest supported ngspice release.
const DefaultMinVersion = 38

// ErrNotFound means the simulator could not be run or did not identify itself.
var ErrNotFound = errors.New("ngspice is not found. Please make sure ngspice is installed")

// VersionError reports a simulator older than the supported minimum.
type VersionError struct {
	Found, Min int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("ngspice version %d is not supported. Please use ngspice version %d or newer", e.Found, e.Min)
}

var versionPattern = regexp.MustCompile(`ngspice-(\d+)`)

// ParseVersion extracts the release number from "<binary> -v" output.
func ParseVersion(out string) (int, error) {
	m := versionPattern.FindStringSubmatch(out)
	if m == nil {
		return 0, ErrNotFound
	}
	return strconv.Atoi(m[1])
}

// CheckVersion runs "<binary> -v" and returns the detected release.
func CheckVersion(ctx context.Context, binary string, min int) (int, error) {
	if min <= 0 {
		min = DefaultMinVersion
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	// ngspice -v may exit non-zero; only the text matters.
	out, _ := exec.CommandContext(ctx, path, "-v").CombinedOutput()

	v, err := ParseVersion(string(out))
	if err != nil {
		return 0, err
	}
	logging.Boot("ngspice version %d (%s)", v, path)
	if v < min {
		return v, &VersionError{Found: v, Min: min}
	}
	return v, nil
}
