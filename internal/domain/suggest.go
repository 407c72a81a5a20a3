package domain

// RandomSource picks an index in [0, n).
type RandomSource interface {
	Intn(n int) int
}

// Suggestion is an advisory message with a pointer to further reading.
type Suggestion struct {
	Code string
	Text string
	Icon string
	Link string
}

var (
	suggestPlantBased = Suggestion{
		Code: "plant_based_meals",
		Text: "Try more plant-based meals and reduce meat consumption.",
		Icon: "🥗",
		Link: "https://www.eatright.org/food/nutrition/vegetarian-and-special-diets/plant-based-diets",
	}
	suggestTransport = Suggestion{
		Code: "public_transport",
		Text: "Consider using public transport, cycling, or walking more often.",
		Icon: "🚲",
		Link: "https://www.epa.gov/greenvehicles/why-go-green-transportation",
	}
	suggestMorePositive = Suggestion{
		Code: "more_positive_actions",
		Text: "Increase your positive environmental activities like recycling or gardening.",
		Icon: "🌱",
		Link: "https://www.wwf.org.uk/updates/ten-tips-reduce-your-plastic-footprint",
	}
	suggestGreatJob = Suggestion{
		Code: "great_job",
		Text: "Great job! Keep up your eco-friendly habits.",
		Icon: "🏆",
		Link: "https://www.un.org/en/actnow",
	}
	suggestAddEnvAction = Suggestion{
		Code: "add_env_activity",
		Text: "Try adding an environmental activity to your daily routine!",
		Icon: "🌳",
		Link: "https://www.treepeople.org/tree-planting/",
	}
)

// ecoTips is the pool the random tip is drawn from.
var ecoTips = []Suggestion{
	{Code: "tip_lights", Text: "Switch off lights when not in use.", Icon: "💡", Link: "https://www.energy.gov/energysaver/articles/tips-saving-energy-home"},
	{Code: "tip_bottle", Text: "Carry a reusable water bottle.", Icon: "🧃", Link: "https://www.nrdc.org/stories/rethink-your-drink"},
	{Code: "tip_compost", Text: "Compost your kitchen waste.", Icon: "🍂", Link: "https://www.epa.gov/recycle/composting-home"},
	{Code: "tip_shop_local", Text: "Shop local to reduce transport emissions.", Icon: "🛒", Link: "https://www.greenmatters.com/p/benefits-of-shopping-local"},
}

// EcoTips returns a copy of the random tip pool.
func EcoTips() []Suggestion {
	out := make([]Suggestion, len(ecoTips))
	copy(out, ecoTips)
	return out
}

// Suggester selects advisory messages for a scored ledger.
type Suggester struct {
	rand RandomSource
}

// NewSuggester constructs a Suggester drawing tips from src.
func NewSuggester(src RandomSource) *Suggester {
	return &Suggester{rand: src}
}

// Suggest applies the rule set to the rounded display values of result, then
// appends exactly one tip from the pool. An empty ledger yields no suggestions.
func (s *Suggester) Suggest(result Result, ledger *Ledger) []Suggestion {
	if result.Empty || ledger.Empty() {
		return []Suggestion{}
	}

	out := make([]Suggestion, 0, 6)
	if result.Negative > result.Positive {
		out = append(out, suggestPlantBased)
	}
	if result.Negative > 20 {
		out = append(out, suggestTransport)
	}
	if result.Score < 80 {
		out = append(out, suggestMorePositive)
	}
	if result.Positive > result.Negative {
		out = append(out, suggestGreatJob)
	}
	if last, ok := ledger.Last(); ok && len(last.EnvActivities) == 0 {
		out = append(out, suggestAddEnvAction)
	}

	return append(out, s.tip())
}

func (s *Suggester) tip() Suggestion {
	idx := 0
	if s.rand != nil {
		idx = s.rand.Intn(len(ecoTips))
	}
	if idx < 0 || idx >= len(ecoTips) {
		idx = 0
	}
	return ecoTips[idx]
}
