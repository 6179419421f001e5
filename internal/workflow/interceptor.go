package workflow

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"
)

// ErrorTypingInterceptor tags untyped activity errors with the activity name
// so the Temporal UI shows which step failed. Errors that already carry a
// type, such as reconciliation failures typed by their kind, pass through.
type ErrorTypingInterceptor struct {
	interceptor.WorkerInterceptorBase
}

func (e *ErrorTypingInterceptor) InterceptActivity(
	ctx context.Context,
	next interceptor.ActivityInboundInterceptor,
) interceptor.ActivityInboundInterceptor {
	return &typedActivityErrors{next: next}
}

type typedActivityErrors struct {
	interceptor.ActivityInboundInterceptorBase
	next interceptor.ActivityInboundInterceptor
}

func (t *typedActivityErrors) Init(outbound interceptor.ActivityOutboundInterceptor) error {
	return t.next.Init(outbound)
}

func (t *typedActivityErrors) ExecuteActivity(
	ctx context.Context,
	in *interceptor.ExecuteActivityInput,
) (interface{}, error) {
	result, err := t.next.ExecuteActivity(ctx, in)
	if err == nil {
		return result, nil
	}
	return result, typeActivityError(activity.GetInfo(ctx).ActivityType.Name, err)
}

func typeActivityError(name string, err error) error {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		return err
	}
	return temporal.NewApplicationErrorWithCause(err.Error(), name, err)
}
