// Package share formats result summaries and delivers them to the clipboard.
package share

import (
	"fmt"
	"strconv"
	"time"

	"github.com/atotto/clipboard"
)

// Summary carries the values of a finished run for sharing.
type Summary struct {
	Clicks   int
	Duration time.Duration
	Rate     float64
}

// String renders the summary with the rate at two decimals.
func (s Summary) String() string {
	return fmt.Sprintf("%d clicks in %s = %.2f CPS", s.Clicks, FormatSeconds(s.Duration), s.Rate)
}

// FormatSeconds renders a duration as seconds with trailing zeros trimmed,
// e.g. "5s" or "2.5s".
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "s"
}

// Copy places the summary on the system clipboard. Failure is reported to
// the caller as a notice, never as a fatal condition.
func Copy(s Summary) error {
	if err := clipboard.WriteAll(s.String()); err != nil {
		return fmt.Errorf("failed to copy summary: %w", err)
	}
	return nil
}
