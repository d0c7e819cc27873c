package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// padCell right-pads s with spaces to the given display width.
func padCell(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
