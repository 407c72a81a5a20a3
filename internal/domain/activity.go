package domain

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Meal identifies the main meal recorded with an activity.
type Meal string

const (
	MealNone       Meal = "none"
	MealBeef       Meal = "beef"
	MealChicken    Meal = "chicken"
	MealFish       Meal = "fish"
	MealVegetarian Meal = "vegetarian"
	MealVegan      Meal = "vegan"
)

// Vehicle identifies the transport mode. Modes outside the known set are kept
// verbatim and carry no emission factor.
type Vehicle string

const (
	VehicleNone        Vehicle = "none"
	VehicleCar         Vehicle = "car"
	VehicleElectricCar Vehicle = "electric-car"
	VehicleBus         Vehicle = "bus"
	VehicleTrain       Vehicle = "train"
)

// OutsideFood records whether food was bought outside and how its packaging was handled.
type OutsideFood string

const (
	OutsideFoodNone        OutsideFood = "none"
	OutsideFoodNotDisposed OutsideFood = "yes-not-disposed"
	OutsideFoodDisposed    OutsideFood = "yes-disposed"
)

// EnvAction is an environmental action performed alongside the activity.
type EnvAction string

const (
	EnvPlanting   EnvAction = "planting"
	EnvWatering   EnvAction = "watering"
	EnvCarpooling EnvAction = "carpooling"
	EnvRecycling  EnvAction = "recycling"
)

// Valid reports whether the action is one of the known environmental actions.
func (a EnvAction) Valid() bool {
	switch a {
	case EnvPlanting, EnvWatering, EnvCarpooling, EnvRecycling:
		return true
	}
	return false
}

// Activity is one submitted record of meal, transport and environmental choices.
type Activity struct {
	ID              string
	TrackerID       string
	Seq             int64
	Meal            Meal
	Vehicle         Vehicle
	DistanceKm      float64
	OutsideFood     OutsideFood
	EnvActivities   []EnvAction
	DurationMinutes int
	RecordedAt      time.Time
}

// HasEnvAction reports whether the activity includes the given action.
func (a Activity) HasEnvAction(action EnvAction) bool {
	for _, candidate := range a.EnvActivities {
		if candidate == action {
			return true
		}
	}
	return false
}

// Submission is the raw, untrusted form input for an activity. Numeric fields
// arrive as text and are coerced rather than rejected.
type Submission struct {
	Meal          string   `json:"meal" yaml:"meal"`
	Vehicle       string   `json:"vehicle" yaml:"vehicle"`
	Distance      string   `json:"distance_km" yaml:"distance_km"`
	OutsideFood   string   `json:"outside_food" yaml:"outside_food"`
	EnvActivities []string `json:"env_activities" yaml:"env_activities"`
	Duration      string   `json:"duration_min" yaml:"duration_min"`
}

// Normalize converts a submission into an Activity stamped with recordedAt.
// It never fails: unparseable numbers become zero and unknown environmental
// actions are dropped.
func (s Submission) Normalize(recordedAt time.Time) Activity {
	return Activity{
		Meal:            Meal(normalizeChoice(s.Meal, string(MealNone))),
		Vehicle:         Vehicle(normalizeChoice(s.Vehicle, string(VehicleNone))),
		DistanceKm:      CoerceDistance(s.Distance),
		OutsideFood:     OutsideFood(normalizeChoice(s.OutsideFood, string(OutsideFoodNone))),
		EnvActivities:   NormalizeEnvActions(s.EnvActivities),
		DurationMinutes: CoerceDuration(s.Duration),
		RecordedAt:      recordedAt.UTC(),
	}
}

// normalizeChoice folds case and surrounding space; values that still match no
// option pass through and score nothing.
func normalizeChoice(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}

// NormalizeEnvActions returns the known actions in values as a sorted set.
func NormalizeEnvActions(values []string) []EnvAction {
	seen := make(map[EnvAction]struct{}, len(values))
	out := make([]EnvAction, 0, len(values))
	for _, raw := range values {
		action := EnvAction(strings.ToLower(strings.TrimSpace(raw)))
		if !action.Valid() {
			continue
		}
		if _, dup := seen[action]; dup {
			continue
		}
		seen[action] = struct{}{}
		out = append(out, action)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CoerceDistance parses the leading decimal number in raw, the way a browser
// form parser does. Anything unparseable, negative or non-finite yields 0.
func CoerceDistance(raw string) float64 {
	prefix := numericPrefix(strings.TrimSpace(raw), true)
	if prefix == "" {
		return 0
	}
	value, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0
	}
	return value
}

// CoerceDuration parses the leading integer in raw. Anything unparseable or
// negative yields 0.
func CoerceDuration(raw string) int {
	prefix := numericPrefix(strings.TrimSpace(raw), false)
	if prefix == "" {
		return 0
	}
	value, err := strconv.Atoi(prefix)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

// numericPrefix returns the longest prefix of s that forms a number: optional
// sign, digits, and when decimals is set an optional fraction and exponent.
func numericPrefix(s string, decimals bool) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digitsStart := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	intDigits := i - digitsStart
	if !decimals {
		if intDigits == 0 {
			return ""
		}
		return s[:i]
	}

	fracDigits := 0
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		fracDigits = j - i - 1
		if intDigits > 0 || fracDigits > 0 {
			i = j
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return ""
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		expStart := j
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j > expStart {
			i = j
		}
	}
	return s[:i]
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
