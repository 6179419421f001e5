// Package dependency checks that the services a new service relies on exist
// in the cluster and turns them into configuration references.
package dependency

import (
	"context"

	"github.com/edvin/svcctl/internal/catalog"
	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/svcerr"
)

const stage = "dependencies"

// Finder looks up a service by type. controlplane.Client satisfies it.
type Finder interface {
	FindService(ctx context.Context, cluster string, t model.ServiceType) (*model.Service, error)
}

// Resolver resolves a descriptor's dependency table against a cluster.
type Resolver struct {
	finder Finder
}

// NewResolver creates a resolver backed by finder.
func NewResolver(finder Finder) *Resolver {
	return &Resolver{finder: finder}
}

// Resolve returns the dependency configuration for deps: each present
// dependency's service name under its config key. A missing optional
// dependency is left out; a missing required one is a MissingDependency
// error naming the absent type. Lookups are read-only.
func (r *Resolver) Resolve(ctx context.Context, cluster string, deps []catalog.Dependency) (map[string]string, error) {
	cfg := make(map[string]string, len(deps))
	for _, dep := range deps {
		svc, err := r.finder.FindService(ctx, cluster, dep.Type)
		if err != nil {
			if _, ok := svcerr.As(err); ok {
				return nil, err
			}
			return nil, svcerr.New(svcerr.KindConnectivity, stage, "look up "+string(dep.Type), err)
		}
		if svc == nil {
			if dep.Required {
				return nil, svcerr.Newf(svcerr.KindMissingDependency, stage,
					"required %s service not found in cluster %s", dep.Type, cluster)
			}
			continue
		}
		cfg[dep.ConfigKey] = svc.Name
	}
	return cfg, nil
}
