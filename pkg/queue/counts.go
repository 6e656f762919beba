package queue

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatCounts renders a progress line the way the poll pod logs it
func FormatCounts(remaining, total int64) string {
	return fmt.Sprintf("%d:%d", remaining, total)
}

// ParseCounts extracts the most recent well-formed `remaining:total` line
// from poll pod log output. Lines that do not parse are skipped, so partial
// writes and startup noise are tolerated.
func ParseCounts(logOutput string) (remaining, total int64, ok bool) {
	lines := strings.Split(strings.TrimSpace(logOutput), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		parts := strings.Split(strings.TrimSpace(lines[i]), ":")
		if len(parts) != 2 {
			continue
		}

		r, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			continue
		}
		t, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		return r, t, true
	}
	return 0, 0, false
}
