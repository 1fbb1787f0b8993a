package domain

import "math"

// MaxLevel caps progression; one level per 100 kg saved up to the cap.
const MaxLevel = 10

// LevelForTotal derives the level from accumulated carbon saved:
// min(10, floor(total/100)+1). Totals at or below zero map to level 1.
func LevelForTotal(total float64) int {
	if total <= 0 {
		return 1
	}
	level := int(math.Floor(total/100)) + 1
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}
