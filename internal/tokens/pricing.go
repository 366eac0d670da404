package tokens

import "fmt"

// DefaultUSDToZAR is the exchange rate applied when config does not override
// it (October 2025).
const DefaultUSDToZAR = 17.50

// ModelPrice is USD per one million tokens.
type ModelPrice struct {
	Input  float64
	Output float64
}

// modelPricing follows OpenAI list pricing as of October 2025. Unknown models
// are billed at the gpt-4.1-mini rate.
var modelPricing = map[string]ModelPrice{
	"gpt-4.1-mini-2025-04-14": {Input: 0.40, Output: 1.60},
	"gpt-5":                   {Input: 2.50, Output: 10.00},
	"gpt-5-mini":              {Input: 0.25, Output: 2.00},
	"gpt-5-nano":              {Input: 0.05, Output: 0.40},
	"gpt-5-chat-latest":       {Input: 1.25, Output: 10.00},
}

const fallbackModel = "gpt-4.1-mini-2025-04-14"

// Cost is a per-turn or per-session cost breakdown in South African Rand.
type Cost struct {
	InputZAR    float64 `json:"input_cost_zar"`
	OutputZAR   float64 `json:"output_cost_zar"`
	TotalZAR    float64 `json:"total_cost_zar"`
	TotalTokens int     `json:"total_tokens"`
}

// Pricer converts token counts into ZAR amounts.
type Pricer struct {
	usdToZAR float64
}

// NewPricer creates a pricer with the given exchange rate; zero or negative
// rates fall back to DefaultUSDToZAR.
func NewPricer(usdToZAR float64) *Pricer {
	if usdToZAR <= 0 {
		usdToZAR = DefaultUSDToZAR
	}
	return &Pricer{usdToZAR: usdToZAR}
}

// CostZAR calculates the ZAR cost of a token count for a model.
func (p *Pricer) CostZAR(model string, inputTokens, outputTokens int) Cost {
	price, ok := modelPricing[model]
	if !ok {
		price = modelPricing[fallbackModel]
	}

	inputUSD := float64(inputTokens) / 1_000_000 * price.Input
	outputUSD := float64(outputTokens) / 1_000_000 * price.Output

	return Cost{
		InputZAR:    inputUSD * p.usdToZAR,
		OutputZAR:   outputUSD * p.usdToZAR,
		TotalZAR:    (inputUSD + outputUSD) * p.usdToZAR,
		TotalTokens: inputTokens + outputTokens,
	}
}

// FormatZAR renders a rand amount for display: four decimals under one cent,
// two otherwise.
func FormatZAR(cost float64) string {
	if cost < 0.01 {
		return fmt.Sprintf("R%.4f", cost)
	}
	return fmt.Sprintf("R%.2f", cost)
}
