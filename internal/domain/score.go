package domain

import "math"

// BaselineScore is the eco score of a ledger with no net impact.
const BaselineScore = 100

var mealPoints = map[Meal]float64{
	MealBeef:       5,
	MealChicken:    2,
	MealFish:       1.5,
	MealVegetarian: 1,
	MealVegan:      0.5,
}

// vehicleFactors are emission points per kilometre.
var vehicleFactors = map[Vehicle]float64{
	VehicleCar:         0.21,
	VehicleElectricCar: 0.07,
	VehicleBus:         0.09,
	VehicleTrain:       0.05,
}

var outsideFoodPoints = map[OutsideFood]float64{
	OutsideFoodNotDisposed: 2,
	OutsideFoodDisposed:    0.5,
}

var envActionPoints = map[EnvAction]float64{
	EnvPlanting:   2,
	EnvWatering:   0.5,
	EnvCarpooling: 1,
	EnvRecycling:  1.5,
}

// durationPointsPerMinute rewards time spent on the environmental actions.
const durationPointsPerMinute = 0.02

// Result is the output of the scoring engine.
//
// When Empty is set the ledger holds no data; the numeric fields then carry the
// neutral baseline and must not be presented as a real score.
type Result struct {
	Empty       bool
	Score       int
	Negative    int
	Positive    int
	RawNegative float64
	RawPositive float64
}

// Impact returns the unrounded negative and positive points of one activity.
func Impact(a Activity) (negative, positive float64) {
	negative += mealPoints[a.Meal]
	negative += a.DistanceKm * vehicleFactors[a.Vehicle]
	negative += outsideFoodPoints[a.OutsideFood]

	seen := make(map[EnvAction]struct{}, len(a.EnvActivities))
	for _, action := range a.EnvActivities {
		if _, dup := seen[action]; dup {
			continue
		}
		seen[action] = struct{}{}
		positive += envActionPoints[action]
	}
	positive += float64(a.DurationMinutes) * durationPointsPerMinute
	return negative, positive
}

// Score sums impact across all activities. The eco score is derived from the
// unrounded totals and clamped at zero; Negative and Positive are rounded
// independently for display.
func Score(activities []Activity) Result {
	var negative, positive float64
	for _, a := range activities {
		n, p := Impact(a)
		negative += n
		positive += p
	}

	score := roundHalfUp(math.Max(0, BaselineScore-negative+positive))
	return Result{
		Empty:       len(activities) == 0,
		Score:       score,
		Negative:    roundHalfUp(negative),
		Positive:    roundHalfUp(positive),
		RawNegative: negative,
		RawPositive: positive,
	}
}

// roundHalfUp rounds ties towards positive infinity. Values outside the int
// range saturate; NaN rounds to 0.
func roundHalfUp(v float64) int {
	r := math.Floor(v + 0.5)
	switch {
	case math.IsNaN(r):
		return 0
	case r >= math.MaxInt64:
		return math.MaxInt
	case r <= math.MinInt64:
		return math.MinInt
	}
	return int(r)
}
