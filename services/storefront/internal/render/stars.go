package render

import "math"

// StarKind is the fill of one star glyph.
type StarKind string

const (
	StarFull  StarKind = "full"
	StarHalf  StarKind = "half"
	StarEmpty StarKind = "empty"
)

// Stars renders a score on the five-star scale: floor(score) full stars, one
// half star when the fraction is at least .5, the rest empty.
func Stars(score float64) [5]StarKind {
	var out [5]StarKind
	if math.IsNaN(score) {
		score = 0
	}
	score = math.Max(0, math.Min(5, score))
	full := int(math.Floor(score))
	half := full < 5 && score-float64(full) >= 0.5
	for i := range out {
		switch {
		case i < full:
			out[i] = StarFull
		case i == full && half:
			out[i] = StarHalf
		default:
			out[i] = StarEmpty
		}
	}
	return out
}
