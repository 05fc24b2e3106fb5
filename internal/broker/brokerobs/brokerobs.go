package brokerobs

import (
	"context"
	"fmt"

	"trading-bot-dashboard/internal/broker/zerodha"
	"trading-bot-dashboard/internal/logger"
	"trading-bot-dashboard/internal/trace"
	"trading-bot-dashboard/internal/types"
)

// observableAuthenticator wraps an Authenticator with logging & tracing
type observableAuthenticator struct {
	auth zerodha.Authenticator
}

var _ zerodha.Authenticator = (*observableAuthenticator)(nil)

// Wrap wraps an authenticator with observability middleware
func Wrap(auth zerodha.Authenticator) zerodha.Authenticator {
	return &observableAuthenticator{auth: auth}
}

func (oa *observableAuthenticator) Authenticate(ctx context.Context, creds types.Credentials) (types.AccessGrant, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Authenticate")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Authenticating with Kite", "api_key", creds.APIKey)

	grant, err := oa.auth.Authenticate(ctx, creds)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Kite authentication failed", err, "api_key", creds.APIKey)
		return types.AccessGrant{}, fmt.Errorf("broker authenticate failed: %w", err)
	}

	logger.InfoSkip(ctx, 1, "Kite session established",
		"api_key", creds.APIKey,
		"issued_at", grant.IssuedAt,
	)
	return grant, nil
}
