package controlplane

import (
	"context"
	"time"

	"github.com/edvin/svcctl/internal/model"
)

// CommandGetter re-reads a command by ID.
type CommandGetter func(ctx context.Context, id int64) (model.Command, error)

// Poll waits for cmd to become inactive, re-reading it every interval. The
// deadline is measured from the call, not from command submission. When the
// deadline passes first the outcome is TimedOut and the last observed command
// is returned; errors from get abort the wait.
func Poll(ctx context.Context, cmd model.Command, timeout, interval time.Duration, get CommandGetter) (model.CommandResult, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !cmd.Active {
			outcome := model.OutcomeFailed
			if cmd.Success {
				outcome = model.OutcomeSucceeded
			}
			return model.CommandResult{Command: cmd, Outcome: outcome}, nil
		}

		select {
		case <-ctx.Done():
			return model.CommandResult{Command: cmd}, ctx.Err()
		case <-deadline.C:
			return model.CommandResult{Command: cmd, Outcome: model.OutcomeTimedOut}, nil
		case <-ticker.C:
			next, err := get(ctx, cmd.ID)
			if err != nil {
				return model.CommandResult{Command: cmd}, err
			}
			cmd = next
		}
	}
}
