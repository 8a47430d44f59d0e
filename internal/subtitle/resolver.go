package subtitle

// active cue at t; overlapping cues resolve to the last one in track order
func CurrentSegment(track Track, t float64) (Segment, bool) {
	for i := len(track) - 1; i >= 0; i-- {
		if track[i].Contains(t) {
			return track[i], true
		}
	}
	return Segment{}, false
}

// index of the first cue containing t, or -1
func IndexAtTime(track Track, t float64) int {
	for i, seg := range track {
		if seg.Contains(t) {
			return i
		}
	}
	return -1
}

// index of the last cue that ended before t, or -1
func PreviousBoundary(track Track, t float64) int {
	for i := len(track) - 1; i >= 0; i-- {
		if track[i].End < t {
			return i
		}
	}
	return -1
}

// index of the first cue starting after t, or -1
func NextBoundary(track Track, t float64) int {
	for i, seg := range track {
		if seg.Begin > t {
			return i
		}
	}
	return -1
}

// begin of the cue to seek to for "previous"; ok is false when nothing should happen
func PreviousTarget(track Track, t float64) (float64, bool) {
	if len(track) == 0 {
		return 0, false
	}
	i := IndexAtTime(track, t)
	switch {
	case i > 0:
		return track[i-1].Begin, true
	case i == 0:
		return 0, false
	}
	if p := PreviousBoundary(track, t); p >= 0 {
		return track[p].Begin, true
	}
	return 0, false
}

// begin of the cue to seek to for "next"
func NextTarget(track Track, t float64) (float64, bool) {
	if len(track) == 0 {
		return 0, false
	}
	i := IndexAtTime(track, t)
	if i >= 0 {
		if i+1 < len(track) {
			return track[i+1].Begin, true
		}
		return 0, false
	}
	if n := NextBoundary(track, t); n >= 0 {
		return track[n].Begin, true
	}
	return 0, false
}

// begin of the active cue, or of the cue just before the gap containing t
func ReplayTarget(track Track, t float64) (float64, bool) {
	if len(track) == 0 {
		return 0, false
	}
	if i := IndexAtTime(track, t); i >= 0 {
		return track[i].Begin, true
	}
	n := NextBoundary(track, t)
	switch {
	case n > 0:
		return track[n-1].Begin, true
	case n == 0:
		return 0, false
	}
	// past the last cue
	return track[len(track)-1].Begin, true
}
