package credits

// Costs maps analysis kinds to their credit cost. Magnitudes are
// configuration, not design: the only fixed relationship is that a
// comprehensive variant costs more than the plain variant, which costs more
// than the micro variant of the same family.
type Costs struct {
	byKind map[string]int
}

// defaultCosts covers every analysis kind the service ships with.
var defaultCosts = map[string]int{
	"manuscript":                 2,
	"manuscript_comprehensive":   3,
	"manuscript_micro":           1,
	"screenplay":                 2,
	"screenplay_comprehensive":   3,
	"screenplay_micro":           1,
	"query_letter":               2,
	"query_letter_comprehensive": 3,
	"query_letter_micro":         1,
}

// NewCosts builds a cost table from defaults plus overrides.
func NewCosts(overrides map[string]int) Costs {
	byKind := make(map[string]int, len(defaultCosts))
	for kind, cost := range defaultCosts {
		byKind[kind] = cost
	}
	for kind, cost := range overrides {
		if cost > 0 {
			byKind[kind] = cost
		}
	}
	return Costs{byKind: byKind}
}

// For returns the cost for kind, defaulting to 1 for unknown kinds so a
// misconfigured kind never becomes free.
func (c Costs) For(kind string) int {
	if cost, ok := c.byKind[kind]; ok {
		return cost
	}
	return 1
}
