package workflow

import (
	"go.temporal.io/sdk/testsuite"

	"github.com/edvin/svcctl/internal/activity"
)

// registerActivities registers every activity struct so OnActivity mocks can
// refer to them by name.
func registerActivities(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivity(&activity.Reconcile{})
	env.RegisterActivity(&activity.Notify{})
}
