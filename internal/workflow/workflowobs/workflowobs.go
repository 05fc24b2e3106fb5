package workflowobs

import (
	"context"
	"errors"

	"trading-bot-dashboard/internal/interfaces"
	"trading-bot-dashboard/internal/logger"
	"trading-bot-dashboard/internal/metrics"
	"trading-bot-dashboard/internal/workflow"
)

type observableWorkflows struct {
	wf interfaces.Workflows
}

var _ interfaces.Workflows = (*observableWorkflows)(nil)

func Wrap(wf interfaces.Workflows) interfaces.Workflows {
	return &observableWorkflows{
		wf: wf,
	}
}

func (ow *observableWorkflows) Login(ctx context.Context) error {
	return ow.run(ctx, "login", "accepted", ow.wf.Login)
}

func (ow *observableWorkflows) StartBot(ctx context.Context) error {
	return ow.run(ctx, "start_bot", "ok", ow.wf.StartBot)
}

func (ow *observableWorkflows) StopBot(ctx context.Context) error {
	return ow.run(ctx, "stop_bot", "ok", ow.wf.StopBot)
}

func (ow *observableWorkflows) run(ctx context.Context, name, success string, fn func(context.Context) error) error {
	op := logger.StartOperation(ctx, "workflow."+name, "workflow", name)

	err := fn(op.Context())
	outcome := outcomeOf(err, success)
	metrics.WorkflowRun(name, outcome)

	switch outcome {
	case "failed":
		op.EndWithError(err, "outcome", outcome)
	case "rejected", "busy":
		op.End("outcome", outcome)
		logger.Workflow(op.Context(), name, outcome, "reason", err.Error())
	default:
		op.End("outcome", outcome)
		logger.Workflow(op.Context(), name, outcome)
	}
	return err
}

func outcomeOf(err error, success string) string {
	switch {
	case err == nil:
		return success
	case errors.Is(err, workflow.ErrLoginInProgress):
		return "busy"
	case workflow.IsValidation(err):
		return "rejected"
	default:
		return "failed"
	}
}
