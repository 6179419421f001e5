package reconciler

import (
	"context"
	"fmt"

	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/svcerr"
)

// ensureAbsent stops and then deletes a present service. A service whose
// stop did not succeed is left in place.
func (ru *run) ensureAbsent(ctx context.Context, svc *model.Service) error {
	if svc == nil {
		return nil
	}

	state, err := ru.observe(ctx, svc)
	if err != nil {
		return err
	}
	if !state.IsPresent() {
		return nil
	}
	if state != model.StateStopped {
		if err := ru.transition(ctx, svc, model.StateStopped); err != nil {
			return err
		}
	}

	ru.action("delete service %s", svc.Name)
	if err := ru.client.DeleteService(ctx, svc); err != nil {
		return wrap(svcerr.KindStopFailed, "delete", "delete service "+svc.Name, err)
	}
	state, err = ru.observe(ctx, svc)
	if err != nil {
		return err
	}
	if state.IsPresent() {
		return svcerr.Newf(svcerr.KindStopFailed, "delete", "service %s still present after delete (%s)", svc.Name, state)
	}
	return nil
}

// ensureRunState starts or stops svc unless it is already in want.
func (ru *run) ensureRunState(ctx context.Context, svc *model.Service, want model.LifecycleState) error {
	state, err := ru.observe(ctx, svc)
	if err != nil {
		return err
	}
	if state == want {
		return nil
	}
	return ru.transition(ctx, svc, want)
}

// transition issues start or stop, polls it, and re-verifies the runstate.
func (ru *run) transition(ctx context.Context, svc *model.Service, want model.LifecycleState) error {
	var (
		step     string
		failKind svcerr.Kind
		timeout  = ru.req.Timeout("start", ru.opts.StartTimeout)
		submit   = ru.client.StartService
	)
	switch want {
	case model.StateStarted:
		step, failKind = "start", svcerr.KindStartFailed
	case model.StateStopped:
		step, failKind = "stop", svcerr.KindStopFailed
		timeout = ru.req.Timeout("stop", ru.opts.StopTimeout)
		submit = ru.client.StopService
	default:
		return fmt.Errorf("no transition to %s", want)
	}

	ru.action("%s service %s", step, svc.Name)
	cmd, err := submit(ctx, svc)
	if err != nil {
		return wrap(failKind, step, step+" service "+svc.Name, err)
	}
	if err := ru.poll(ctx, cmd, timeout, failKind, step); err != nil {
		if state, obsErr := ru.observe(ctx, svc); obsErr == nil {
			if e, ok := svcerr.As(err); ok {
				e.Message += fmt.Sprintf(" (observed %s)", state.Reported())
			}
		}
		return err
	}

	state, err := ru.observe(ctx, svc)
	if err != nil {
		return err
	}
	if state != want {
		return &svcerr.Error{
			Kind:    failKind,
			Stage:   step,
			Message: fmt.Sprintf("%s reported success but service is %s", step, state.Reported()),
			Outcome: model.OutcomeSucceeded,
		}
	}
	return nil
}
