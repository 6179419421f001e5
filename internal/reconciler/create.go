package reconciler

import (
	"context"
	"maps"
	"strings"

	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/svcerr"
)

// create runs the creation sequence for an absent service. Any failure
// aborts without rolling back what was already created.
func (ru *run) create(ctx context.Context) (*model.Service, error) {
	p := ru.plan

	depCfg, err := ru.deps.Resolve(ctx, ru.req.Cluster, p.desc.Dependencies)
	if err != nil {
		return nil, err
	}
	if err := ru.checkHosts(ctx); err != nil {
		return nil, err
	}

	ru.action("create service %s", p.name)
	svc, err := ru.client.CreateService(ctx, ru.req.Cluster, p.desc.Type, p.name)
	if err != nil {
		return nil, wrap(svcerr.KindCreationFailed, "create", "create service "+p.name, err)
	}
	ru.report.Name = svc.Name
	ru.report.State = model.StateUnknownRunning.Reported()

	cfg := make(map[string]string, len(depCfg)+len(p.serviceConfig))
	maps.Copy(cfg, depCfg)
	maps.Copy(cfg, p.serviceConfig)
	if len(cfg) > 0 {
		ru.action("update service config")
		if err := ru.client.UpdateServiceConfig(ctx, svc, cfg); err != nil {
			return nil, wrap(svcerr.KindCreationFailed, "configure", "update service config", err)
		}
	}

	for _, g := range p.groups {
		stage := "roles:" + g.group.Kind
		for _, pl := range g.placements {
			ru.action("create role %s on %s", pl.RoleName, pl.Host)
			if err := ru.client.CreateRole(ctx, svc, pl.RoleName, g.group.Kind, pl.Host); err != nil {
				return nil, wrap(svcerr.KindCreationFailed, stage, "create role "+pl.RoleName, err)
			}
		}
		if len(g.config) > 0 {
			ru.action("update role group %s", g.groupID)
			if err := ru.client.UpdateRoleGroupConfig(ctx, svc, g.groupID, g.config); err != nil {
				return nil, wrap(svcerr.KindCreationFailed, stage, "update role group "+g.groupID, err)
			}
		}
	}

	if err := ru.settle(ctx); err != nil {
		return nil, err
	}

	for _, ic := range p.desc.InitCommands {
		stage := "init:" + ic.Name
		timeout := ru.req.Timeout(ic.Name, ic.Timeout)

		var cmds []model.Command
		if ic.RoleKind != "" {
			roles := p.roleNames(ic.RoleKind)
			ru.action("run %s on %s", ic.Name, strings.Join(roles, ","))
			cmds, err = ru.client.RunRoleCommand(ctx, svc, ic.Name, roles)
		} else {
			ru.action("run %s", ic.Name)
			var cmd *model.Command
			if cmd, err = ru.client.RunServiceCommand(ctx, svc, ic.Name); err == nil {
				cmds = []model.Command{*cmd}
			}
		}
		if err != nil {
			return nil, wrap(svcerr.KindInitCommandFailed, stage, "submit "+ic.Name, err)
		}
		for i := range cmds {
			if err := ru.poll(ctx, &cmds[i], timeout, svcerr.KindInitCommandFailed, stage); err != nil {
				return nil, err
			}
		}
	}

	return svc, nil
}

// checkHosts fails before any mutation when a placement names a host the
// control plane does not know.
func (ru *run) checkHosts(ctx context.Context) error {
	var hosts []string
	for _, g := range ru.plan.groups {
		for _, pl := range g.placements {
			hosts = append(hosts, pl.Host)
		}
	}
	if len(hosts) == 0 {
		return nil
	}
	missing, err := ru.client.MissingHosts(ctx, hosts)
	if err != nil {
		return lookupFailed("hosts", "list hosts", err)
	}
	if len(missing) > 0 {
		return svcerr.Newf(svcerr.KindConfiguration, "hosts",
			"hosts not registered with the control plane: %s", strings.Join(missing, ", "))
	}
	return nil
}

// settle pauses between role creation and the first init command. Types
// without init commands skip it.
func (ru *run) settle(ctx context.Context) error {
	if len(ru.plan.desc.InitCommands) == 0 || ru.opts.SettleDelay <= 0 {
		return nil
	}
	ru.logger.Debug().Dur("delay", ru.opts.SettleDelay).Msg("waiting for role registration")
	if err := sleep(ctx, ru.opts.SettleDelay); err != nil {
		return wrap(svcerr.KindCreationFailed, "settle", "settle", err)
	}
	return nil
}
