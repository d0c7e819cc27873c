// Package model defines shared data structures.
package model

// Config defines tap test settings.
type Config struct {
	DurationSeconds float64
	// TapKeys are extra characters that register a tap. Space and mouse
	// click always do.
	TapKeys string
}

// PresetDurations are the durations selectable in the TUI, in seconds.
var PresetDurations = []float64{5, 10, 15, 30, 60, 100}
