// Package controlplane is the boundary to the cluster-management control
// plane. Lookups report absence as a nil result rather than an error;
// transport and authentication failures are returned as svcerr Connectivity
// errors and are never retried here.
package controlplane

import (
	"context"
	"time"

	"github.com/edvin/svcctl/internal/model"
)

// Client is the set of control-plane operations the reconciler needs.
type Client interface {
	// FindCluster returns nil, nil when the cluster does not exist.
	FindCluster(ctx context.Context, name string) (*model.Cluster, error)
	// FindService returns the first service of the given type, or nil, nil.
	FindService(ctx context.Context, cluster string, t model.ServiceType) (*model.Service, error)
	CreateService(ctx context.Context, cluster string, t model.ServiceType, name string) (*model.Service, error)
	UpdateServiceConfig(ctx context.Context, svc *model.Service, cfg map[string]string) error
	// MissingHosts returns the hostnames the control plane does not know.
	MissingHosts(ctx context.Context, hostnames []string) ([]string, error)
	CreateRole(ctx context.Context, svc *model.Service, roleName, roleKind, host string) error
	UpdateRoleGroupConfig(ctx context.Context, svc *model.Service, groupID string, cfg map[string]string) error
	RunServiceCommand(ctx context.Context, svc *model.Service, command string) (*model.Command, error)
	RunRoleCommand(ctx context.Context, svc *model.Service, command string, roleNames []string) ([]model.Command, error)
	PollCommand(ctx context.Context, cmd *model.Command, timeout time.Duration) (model.CommandResult, error)
	// ServiceState returns StateAbsent when the service no longer exists.
	ServiceState(ctx context.Context, svc *model.Service) (model.LifecycleState, error)
	StartService(ctx context.Context, svc *model.Service) (*model.Command, error)
	StopService(ctx context.Context, svc *model.Service) (*model.Command, error)
	DeleteService(ctx context.Context, svc *model.Service) error
}
