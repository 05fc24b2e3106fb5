package interfaces

import "context"

// Workflows are the composite dashboard operations driven by user input.
type Workflows interface {
	Login(ctx context.Context) error
	StartBot(ctx context.Context) error
	StopBot(ctx context.Context) error
}
