package agent

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/weavely/weave/model"
)

var tokensPerPriceUnit = decimal.NewFromInt(1_000_000)

// Stats accumulates per-agent usage across turns.
type Stats struct {
	Messages       int64
	Usage          model.Usage
	Cost           decimal.Decimal
	AverageLatency time.Duration
}

func (a *Agent) recordInvocation(usage model.Usage, latency time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.Messages++
	a.stats.Usage.Add(usage)
	a.stats.Cost = a.stats.Cost.Add(invocationCost(usage, a.modelName))

	n := a.stats.Messages
	a.stats.AverageLatency += (latency - a.stats.AverageLatency) / time.Duration(n)
}

func invocationCost(usage model.Usage, modelName string) decimal.Decimal {
	m, ok := model.LookupModel(modelName)
	if !ok {
		return decimal.Zero
	}

	cost := decimal.Zero
	for _, part := range []struct {
		tokens int64
		rate   float64
	}{
		{usage.InputTokens, m.Pricing.Input},
		{usage.OutputTokens, m.Pricing.Output},
		{usage.CacheWriteTokens, m.Pricing.CacheWrite},
		{usage.CacheReadTokens, m.Pricing.CacheRead},
	} {
		cost = cost.Add(decimal.NewFromInt(part.tokens).
			Mul(decimal.NewFromFloat(part.rate)).
			Div(tokensPerPriceUnit))
	}
	return cost
}
