package domain

import "math"

// Segment colours used by the emission breakdown chart.
const (
	ColorNegative    = "#FF5252"
	ColorPositive    = "#00E676"
	ColorPlaceholder = "#e0e0e0"
)

// Breakdown is the two-segment proportion chart derived from a score result.
// Angles are in radians; the negative segment starts at 0 and the positive
// segment follows it.
type Breakdown struct {
	Placeholder   bool
	Negative      int
	Positive      int
	NegativeShare float64
	PositiveShare float64
	NegativeAngle float64
	PositiveAngle float64
}

// Chart computes the breakdown for result from its rounded display values.
// Empty ledgers and zero totals degenerate to a placeholder.
func Chart(result Result) Breakdown {
	neg, pos := result.Negative, result.Positive
	b := Breakdown{Negative: neg, Positive: pos}
	total := float64(neg) + float64(pos)
	if result.Empty || total == 0 {
		b.Placeholder = true
		return b
	}

	b.NegativeShare = float64(neg) / total
	b.PositiveShare = float64(pos) / total
	b.NegativeAngle = b.NegativeShare * 2 * math.Pi
	b.PositiveAngle = b.PositiveShare * 2 * math.Pi
	return b
}
