package domain

// UsageKind separates embedding calls from completion calls.
type UsageKind string

// Usage kinds.
const (
	UsageEmbedding  UsageKind = "embedding"
	UsageCompletion UsageKind = "completion"
)

// Usage is the token count reported by one or more external calls against
// a single model. Calls return their own Usage instead of writing to a
// shared ledger; the caller decides where to aggregate.
type Usage struct {
	Kind  UsageKind
	Model string

	// InputTokens includes CachedInputTokens.
	InputTokens       int
	CachedInputTokens int
	OutputTokens      int

	// Calls is the number of requests that produced these counts.
	Calls int
}

// IsZero returns true if no call was recorded.
func (u Usage) IsZero() bool {
	return u.Calls == 0 && u.InputTokens == 0 && u.OutputTokens == 0
}

// Add returns the sum of two usages. Kind and Model are taken from the
// receiver, or from other when the receiver is empty.
func (u Usage) Add(other Usage) Usage {
	out := u
	if out.Kind == "" {
		out.Kind = other.Kind
	}
	if out.Model == "" {
		out.Model = other.Model
	}
	out.InputTokens += other.InputTokens
	out.CachedInputTokens += other.CachedInputTokens
	out.OutputTokens += other.OutputTokens
	out.Calls += other.Calls
	return out
}

// TotalTokens returns input plus output tokens.
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// ModelPrice is the dollar price per 1,000 tokens for one model.
type ModelPrice struct {
	InputPer1K       float64
	CachedInputPer1K float64
	OutputPer1K      float64
}

// Cost returns the dollar cost of a usage at this price.
// Cached input tokens are billed at the cached rate, the rest at the input rate.
func (p ModelPrice) Cost(u Usage) float64 {
	standard := u.InputTokens - u.CachedInputTokens
	if standard < 0 {
		standard = 0
	}
	return (float64(standard)*p.InputPer1K +
		float64(u.CachedInputTokens)*p.CachedInputPer1K +
		float64(u.OutputTokens)*p.OutputPer1K) / 1000
}

// PriceTable maps model names to prices.
type PriceTable map[string]ModelPrice

// Lookup returns the price for a model.
func (t PriceTable) Lookup(model string) (ModelPrice, bool) {
	p, ok := t[model]
	return p, ok
}

// DefaultPriceTable returns list prices for the models the tool ships with.
// Local Ollama models are free.
func DefaultPriceTable() PriceTable {
	return PriceTable{
		// OpenAI completions
		"gpt-4o":      {InputPer1K: 0.0025, CachedInputPer1K: 0.00125, OutputPer1K: 0.01},
		"gpt-4o-mini": {InputPer1K: 0.00015, CachedInputPer1K: 0.000075, OutputPer1K: 0.0006},
		"gpt-4.1":     {InputPer1K: 0.002, CachedInputPer1K: 0.0005, OutputPer1K: 0.008},
		// OpenAI embeddings
		"text-embedding-3-small": {InputPer1K: 0.00002},
		"text-embedding-3-large": {InputPer1K: 0.00013},
		"text-embedding-ada-002": {InputPer1K: 0.0001},
		// Anthropic
		"claude-3-5-sonnet-latest": {InputPer1K: 0.003, CachedInputPer1K: 0.0003, OutputPer1K: 0.015},
		"claude-3-5-haiku-latest":  {InputPer1K: 0.0008, CachedInputPer1K: 0.00008, OutputPer1K: 0.004},
		// Ollama
		"llama3.2":          {},
		"nomic-embed-text":  {},
		"mxbai-embed-large": {},
		"all-minilm":        {},
	}
}
