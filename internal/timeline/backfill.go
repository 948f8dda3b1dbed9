package timeline

import "time"

// BackfillMain gives a zero-length Main segment a usable length: the
// furthest keyframe across tracks when there is one, DefaultMainLength
// otherwise. It reports whether tl was changed.
func BackfillMain(tl *Timeline, tracks ...*Track) bool {
	if tl.MainLength != 0 {
		return false
	}
	var longest time.Duration
	for _, tr := range tracks {
		if p, ok := tr.MaxPosition(); ok && p > longest {
			longest = p
		}
	}
	tl.MainLength = longest
	if tl.MainLength == 0 {
		tl.MainLength = DefaultMainLength
	}
	return true
}
