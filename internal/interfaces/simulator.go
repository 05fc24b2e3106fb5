package interfaces

import (
	"context"

	"trading-bot-dashboard/internal/types"
)

type Simulator interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) bool
	State() types.RunState
}
