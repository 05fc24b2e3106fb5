package zerodha

import (
	"context"

	"trading-bot-dashboard/internal/types"
)

// Authenticator exchanges dashboard credentials for a Kite session
type Authenticator interface {
	// Authenticate returns the access token and the Kite login URL the
	// user would be redirected to
	Authenticate(ctx context.Context, creds types.Credentials) (types.AccessGrant, error)
}
