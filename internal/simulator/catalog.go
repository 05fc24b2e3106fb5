package simulator

import (
	"fmt"

	"trading-bot-dashboard/internal/types"
)

// Effects are the statistic updates an activity applies.
type Effects struct {
	NewsProcessed bool
	OrderPlaced   bool
}

// Activity is one canned bot event.
type Activity struct {
	Name     string
	Kind     types.LogKind
	Template string
	Args     []any
	Effects  Effects
}

// Render formats the log message for the activity.
func (a Activity) Render() string {
	if len(a.Args) == 0 {
		return a.Template
	}
	return fmt.Sprintf(a.Template, a.Args...)
}

const (
	FetchNews         = "fetch-news"
	SentimentAnalysis = "sentiment-analysis"
	PriceLookup       = "price-lookup"
	OrderDecision     = "order-decision"
	OrderExecuted     = "order-executed"
)

// DefaultCatalog returns the five events the simulator picks from.
func DefaultCatalog() []Activity {
	return []Activity{
		{
			Name:     FetchNews,
			Kind:     types.KindInfo,
			Template: "Fetched %d latest financial headlines from NewsData.io",
			Args:     []any{15},
			Effects:  Effects{NewsProcessed: true},
		},
		{
			Name:     SentimentAnalysis,
			Kind:     types.KindSuccess,
			Template: "Analyzing sentiment: %q - Sentiment: %s (%.2f)",
			Args:     []any{"Reliance Industries reports 12% profit growth", "positive", 0.89},
			Effects:  Effects{NewsProcessed: true},
		},
		{
			Name:     PriceLookup,
			Kind:     types.KindInfo,
			Template: "Ticker extracted: %s - Live price: ₹%s",
			Args:     []any{"RELIANCE", "2,847.50"},
		},
		{
			Name:     OrderDecision,
			Kind:     types.KindSuccess,
			Template: "Criteria met! Placing BUY order for %d shares of %s",
			Args:     []any{8, "RELIANCE"},
			Effects:  Effects{OrderPlaced: true},
		},
		{
			Name:     OrderExecuted,
			Kind:     types.KindSuccess,
			Template: "ORDER EXECUTED: Bought %d shares of %s at market price. Order ID: %s",
			Args:     []any{8, "RELIANCE", "240115001234"},
			Effects:  Effects{OrderPlaced: true},
		},
	}
}
