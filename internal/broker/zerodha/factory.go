package zerodha

import "trading-bot-dashboard/internal/store"

// NewFromConfig builds the authenticator described by the broker section.
func NewFromConfig(cfg *store.Config) *Zerodha {
	return NewZerodha(Params{
		Mode:     cfg.Mode,
		Exchange: cfg.Broker.Exchange,
	})
}
