package logic

// ToPhysical returns the line level that represents the logical state on
// under polarity p.
func ToPhysical(on bool, p Polarity) int {
	if p == ActiveHigh {
		if on {
			return LevelHigh
		}
		return LevelLow
	}
	if on {
		return LevelLow
	}
	return LevelHigh
}

// ToLogical is the inverse of ToPhysical. Any non-zero level reads as high.
func ToLogical(level int, p Polarity) bool {
	high := level != LevelLow
	if p == ActiveHigh {
		return high
	}
	return !high
}

// IdleLevel is the level every line is claimed at, i.e. logical OFF.
func IdleLevel(p Polarity) int {
	return ToPhysical(false, p)
}
