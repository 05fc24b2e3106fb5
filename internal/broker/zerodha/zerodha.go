package zerodha

import (
	"context"
	"errors"
	"fmt"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"trading-bot-dashboard/internal/logger"
	"trading-bot-dashboard/internal/types"
)

const ModeDryRun = "DRY_RUN"

var (
	ErrLiveMode      = errors.New("live Kite sessions are not supported, use DRY_RUN")
	ErrMissingAPIKey = errors.New("api key and api secret are required")
)

type Params struct {
	Mode     string
	Exchange string
	// Now stamps issued tokens; defaults to time.Now.
	Now func() time.Time
}

// Zerodha simulates the Kite Connect login: it builds the real login URL for
// the API key but fabricates the access token instead of exchanging a
// request token.
type Zerodha struct {
	p Params
}

var _ Authenticator = (*Zerodha)(nil)

func NewZerodha(p Params) *Zerodha {
	if p.Mode == "" {
		p.Mode = ModeDryRun
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Zerodha{p: p}
}

func (z *Zerodha) Authenticate(ctx context.Context, creds types.Credentials) (types.AccessGrant, error) {
	if z.p.Mode != ModeDryRun {
		return types.AccessGrant{}, fmt.Errorf("mode %q: %w", z.p.Mode, ErrLiveMode)
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		return types.AccessGrant{}, ErrMissingAPIKey
	}

	loginURL := kiteconnect.New(creds.APIKey).GetLoginURL()

	issued := z.p.Now()
	token := fmt.Sprintf("mock_token_%d", issued.UnixMilli())

	logger.Debug(ctx, "Issued simulated Kite session", "exchange", z.p.Exchange, "login_url", loginURL)

	return types.AccessGrant{
		AccessToken: token,
		LoginURL:    loginURL,
		IssuedAt:    issued,
	}, nil
}
