package simulation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidDuration is returned for anything that is not an MM:SS pair.
var ErrInvalidDuration = errors.New("invalid duration")

// ParseDuration converts an "MM:SS" string into whole seconds.
// Exactly one colon is allowed and both sides must be non-negative integers;
// there is no support for hours or fractional seconds.
func ParseDuration(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q is not in MM:SS format", ErrInvalidDuration, s)
	}

	minutes, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, fmt.Errorf("%w: minutes %q: %v", ErrInvalidDuration, parts[0], err)
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, fmt.Errorf("%w: seconds %q: %v", ErrInvalidDuration, parts[1], err)
	}
	if minutes < 0 || seconds < 0 {
		return 0, fmt.Errorf("%w: %q has a negative component", ErrInvalidDuration, s)
	}

	return minutes*60 + seconds, nil
}
