// Package timecode converts between "HH:MM:SS"/"MM:SS" timecodes and
// whole seconds. Pure functions, no dependencies.
package timecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse converts "HH:MM:SS" or "MM:SS" to seconds.
func Parse(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid timecode %q: expected MM:SS or HH:MM:SS", s)
	}

	var fields [3]int
	offset := 3 - len(parts) // leave hours at zero for MM:SS
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid timecode %q: %w", s, err)
		}
		if n < 0 {
			return 0, fmt.Errorf("invalid timecode %q: negative component", s)
		}
		fields[offset+i] = n
	}
	if fields[1] > 59 || fields[2] > 59 {
		return 0, fmt.Errorf("invalid timecode %q: minutes and seconds must be < 60", s)
	}

	return fields[0]*3600 + fields[1]*60 + fields[2], nil
}

// Format converts seconds to a zero-padded "HH:MM:SS" timecode.
// Negative input is clamped to zero.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
