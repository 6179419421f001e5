package reconciler

import (
	"github.com/edvin/svcctl/internal/catalog"
	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/placement"
	"github.com/edvin/svcctl/internal/svcerr"
)

// plan is everything derived from a request before the control plane is
// contacted.
type plan struct {
	desc          catalog.Descriptor
	name          string
	serviceConfig map[string]string
	groups        []groupPlan
}

type groupPlan struct {
	group      catalog.RoleGroup
	groupID    string
	placements []model.Placement
	config     map[string]string
}

func (p *plan) placements() []model.Placement {
	var out []model.Placement
	for _, g := range p.groups {
		out = append(out, g.placements...)
	}
	return out
}

func (p *plan) roleNames(kind string) []string {
	var out []string
	for _, g := range p.groups {
		if g.group.Kind != kind {
			continue
		}
		for _, pl := range g.placements {
			out = append(out, pl.RoleName)
		}
	}
	return out
}

// buildPlan validates req, normalizing it in place, and resolves every
// placement. Host specs and required configuration are only enforced for
// targets that may create the service.
func buildPlan(req *model.DesiredState) (*plan, error) {
	if err := req.Normalize(); err != nil {
		return nil, svcerr.Configuration("%s", err.Error())
	}
	desc, ok := catalog.Lookup(req.Service)
	if !ok {
		return nil, svcerr.Configuration("service type %s cannot be reconciled", req.Service)
	}
	if err := desc.CheckHostKeys(req.Hosts); err != nil {
		return nil, err
	}
	if err := desc.CheckConfigKeys(req.Config); err != nil {
		return nil, err
	}

	p := &plan{desc: desc, name: desc.ServiceName(req.Name)}
	creating := req.Target != model.TargetAbsent

	for _, g := range desc.RoleGroups {
		spec, given := req.Hosts[g.HostsKey]
		if !given {
			if creating && !g.Optional {
				return nil, svcerr.Configuration("hosts.%s is required for %s", g.HostsKey, desc.Type)
			}
			continue
		}
		placements, err := placement.Resolve(spec, desc.RolePrefix(p.name, g), g.Singleton)
		if err != nil {
			return nil, withStage(err, "hosts."+g.HostsKey)
		}
		for i := range placements {
			placements[i].Group = g.HostsKey
			placements[i].Kind = g.Kind
		}
		gp := groupPlan{
			group:      g,
			groupID:    desc.BaseGroupID(p.name, g.Kind),
			placements: placements,
		}
		if creating {
			cfg, err := desc.GroupConfig(g, req.Config)
			if err != nil {
				return nil, err
			}
			gp.config = cfg
		}
		p.groups = append(p.groups, gp)
	}

	if creating {
		cfg, err := desc.ServiceConfig(req.Config)
		if err != nil {
			return nil, err
		}
		p.serviceConfig = cfg
	}
	return p, nil
}

func withStage(err error, stage string) error {
	if e, ok := svcerr.As(err); ok {
		e.Stage = stage
		return e
	}
	return err
}

// Preview validates req and returns the placements a creation would use,
// without contacting the control plane.
func Preview(req model.DesiredState) ([]model.Placement, error) {
	p, err := buildPlan(&req)
	if err != nil {
		return nil, err
	}
	return p.placements(), nil
}
