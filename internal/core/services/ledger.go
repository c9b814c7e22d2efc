package services

import (
	"sort"
	"sync"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

type usageKey struct {
	kind  domain.UsageKind
	model string
}

// UsageLedger aggregates the usage deltas returned by embedding and
// completion calls and prices them against a PriceTable.
// It is safe for concurrent use.
type UsageLedger struct {
	mu     sync.Mutex
	prices domain.PriceTable
	totals map[usageKey]domain.Usage
}

// NewUsageLedger creates a ledger priced with the given table.
// A nil table prices every model at zero and reports it as unpriced.
func NewUsageLedger(prices domain.PriceTable) *UsageLedger {
	return &UsageLedger{
		prices: prices,
		totals: make(map[usageKey]domain.Usage),
	}
}

// Add records one usage delta. Zero deltas are ignored.
func (l *UsageLedger) Add(u domain.Usage) {
	if u.IsZero() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := usageKey{kind: u.Kind, model: u.Model}
	l.totals[key] = l.totals[key].Add(u)
}

// Usages returns the per-model totals ordered by kind then model.
func (l *UsageLedger) Usages() []domain.Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.sortedLocked()
}

// Summary returns token counts and dollar cost per kind.
func (l *UsageLedger) Summary() domain.UsageSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	var s domain.UsageSummary
	for _, u := range l.sortedLocked() {
		cost := 0.0
		price, ok := l.prices.Lookup(u.Model)
		if ok {
			cost = price.Cost(u)
		} else if u.Model != "" {
			s.UnpricedModels = append(s.UnpricedModels, u.Model)
		}

		switch u.Kind {
		case domain.UsageEmbedding:
			s.EmbeddingTokens += u.InputTokens
			s.EmbeddingCalls += u.Calls
			s.EmbeddingCost += cost
		default:
			s.CompletionInputTokens += u.InputTokens
			s.CompletionCachedInputTokens += u.CachedInputTokens
			s.CompletionOutputTokens += u.OutputTokens
			s.CompletionCalls += u.Calls
			s.CompletionCost += cost
		}
	}
	s.TotalCost = s.EmbeddingCost + s.CompletionCost
	return s
}

// Reset discards all recorded usage.
func (l *UsageLedger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.totals = make(map[usageKey]domain.Usage)
}

func (l *UsageLedger) sortedLocked() []domain.Usage {
	keys := make([]usageKey, 0, len(l.totals))
	for k := range l.totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].kind != keys[j].kind {
			return keys[i].kind < keys[j].kind
		}
		return keys[i].model < keys[j].model
	})

	out := make([]domain.Usage, 0, len(keys))
	for _, k := range keys {
		out = append(out, l.totals[k])
	}
	return out
}
