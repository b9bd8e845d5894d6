package costtracker

// Pricing holds USD rates per 1000 tokens for one model.
type Pricing struct {
	Input  float64
	Output float64
}

// PricingTable maps model names to their rates. It is populated once
// at startup and read-only afterwards, so no locking is needed.
type PricingTable map[string]Pricing

// DefaultPricingTable returns the built-in rates.
func DefaultPricingTable() PricingTable {
	return PricingTable{
		"claude-sonnet-4":        {Input: 0.003, Output: 0.015},
		"claude-opus-4":          {Input: 0.015, Output: 0.075},
		"gpt-4":                  {Input: 0.03, Output: 0.06},
		"text-embedding-ada-002": {Input: 0.0001, Output: 0.0},
	}
}

// NewPricingTable merges overrides on top of the built-in rates.
func NewPricingTable(overrides map[string]Pricing) PricingTable {
	table := DefaultPricingTable()
	for model, p := range overrides {
		table[model] = p
	}
	return table
}

// Lookup returns the rates for model, or zero rates for models the
// table does not know. Unknown models are priced at zero rather than
// rejected so accounting never blocks a request.
func (t PricingTable) Lookup(model string) Pricing {
	if p, ok := t[model]; ok {
		return p
	}
	return Pricing{}
}
