package controlplane

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/edvin/svcctl/internal/model"
)

var _ Client = (*HTTPClient)(nil)

type apiCluster struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	FullVersion string `json:"fullVersion"`
}

type apiService struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	ServiceState string `json:"serviceState,omitempty"`
}

type apiHostRef struct {
	HostID string `json:"hostId"`
}

type apiRole struct {
	Name    string     `json:"name"`
	Type    string     `json:"type"`
	HostRef apiHostRef `json:"hostRef"`
}

type apiHost struct {
	HostID   string `json:"hostId"`
	Hostname string `json:"hostname"`
}

type apiConfig struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type apiCommand struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Active        bool   `json:"active"`
	Success       bool   `json:"success"`
	ResultMessage string `json:"resultMessage"`
}

func (c apiCommand) model() model.Command {
	return model.Command{
		ID:            c.ID,
		Name:          c.Name,
		Active:        c.Active,
		Success:       c.Success,
		ResultMessage: c.ResultMessage,
	}
}

type itemList[T any] struct {
	Items []T `json:"items"`
}

func servicePath(svc *model.Service) string {
	return fmt.Sprintf("/clusters/%s/services/%s", url.PathEscape(svc.Cluster), url.PathEscape(svc.Name))
}

// configItems renders a config map in key order so repeated runs send
// identical payloads.
func configItems(cfg map[string]string) itemList[apiConfig] {
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	list := itemList[apiConfig]{Items: make([]apiConfig, 0, len(keys))}
	for _, k := range keys {
		list.Items = append(list.Items, apiConfig{Name: k, Value: cfg[k]})
	}
	return list
}

func (c *HTTPClient) FindCluster(ctx context.Context, name string) (*model.Cluster, error) {
	resp, err := c.get(ctx, "/clusters/"+url.PathEscape(name))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cluster %s: %w", name, err)
	}
	var cl apiCluster
	if err := resp.decode(&cl); err != nil {
		return nil, err
	}
	return &model.Cluster{Name: cl.Name, DisplayName: cl.DisplayName, Version: cl.FullVersion}, nil
}

func (c *HTTPClient) FindService(ctx context.Context, cluster string, t model.ServiceType) (*model.Service, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/clusters/%s/services", url.PathEscape(cluster)))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list services in %s: %w", cluster, err)
	}
	var services []apiService
	if err := resp.decodeItems(&services); err != nil {
		return nil, err
	}
	for _, s := range services {
		if strings.EqualFold(s.Type, string(t)) {
			return &model.Service{
				Name:    s.Name,
				Type:    t,
				Cluster: cluster,
				State:   model.LifecycleFromRemote(s.ServiceState),
			}, nil
		}
	}
	return nil, nil
}

func (c *HTTPClient) CreateService(ctx context.Context, cluster string, t model.ServiceType, name string) (*model.Service, error) {
	body := itemList[apiService]{Items: []apiService{{Name: name, Type: string(t)}}}
	resp, err := c.post(ctx, fmt.Sprintf("/clusters/%s/services", url.PathEscape(cluster)), body)
	if err != nil {
		return nil, fmt.Errorf("create service %s: %w", name, err)
	}
	var created []apiService
	if err := resp.decodeItems(&created); err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("create service %s: empty response", name)
	}
	return &model.Service{
		Name:    created[0].Name,
		Type:    t,
		Cluster: cluster,
		State:   model.LifecycleFromRemote(created[0].ServiceState),
	}, nil
}

func (c *HTTPClient) UpdateServiceConfig(ctx context.Context, svc *model.Service, cfg map[string]string) error {
	if len(cfg) == 0 {
		return nil
	}
	if _, err := c.put(ctx, servicePath(svc)+"/config", configItems(cfg)); err != nil {
		return fmt.Errorf("update config of %s: %w", svc.Name, err)
	}
	return nil
}

func (c *HTTPClient) UpdateRoleGroupConfig(ctx context.Context, svc *model.Service, groupID string, cfg map[string]string) error {
	if len(cfg) == 0 {
		return nil
	}
	path := servicePath(svc) + "/roleConfigGroups/" + url.PathEscape(groupID) + "/config"
	if _, err := c.put(ctx, path, configItems(cfg)); err != nil {
		return fmt.Errorf("update role group %s: %w", groupID, err)
	}
	return nil
}

func (c *HTTPClient) CreateRole(ctx context.Context, svc *model.Service, roleName, roleKind, host string) error {
	hostID, err := c.hostID(ctx, host)
	if err != nil {
		return err
	}
	body := itemList[apiRole]{Items: []apiRole{{Name: roleName, Type: roleKind, HostRef: apiHostRef{HostID: hostID}}}}
	if _, err := c.post(ctx, servicePath(svc)+"/roles", body); err != nil {
		return fmt.Errorf("create role %s on %s: %w", roleName, host, err)
	}
	return nil
}

// hostID resolves a hostname to the control plane's host identifier.
func (c *HTTPClient) hostID(ctx context.Context, hostname string) (string, error) {
	if err := c.loadHosts(ctx); err != nil {
		return "", err
	}
	id, ok := c.hosts[strings.ToLower(hostname)]
	if !ok {
		return "", fmt.Errorf("host %q is not registered with the control plane", hostname)
	}
	return id, nil
}

// MissingHosts returns the hostnames, in input order, that the control plane
// does not know.
func (c *HTTPClient) MissingHosts(ctx context.Context, hostnames []string) ([]string, error) {
	if err := c.loadHosts(ctx); err != nil {
		return nil, err
	}
	var missing []string
	for _, h := range hostnames {
		if _, ok := c.hosts[strings.ToLower(h)]; !ok {
			missing = append(missing, h)
		}
	}
	return missing, nil
}

// loadHosts fetches the host list once per client.
func (c *HTTPClient) loadHosts(ctx context.Context) error {
	if c.hosts != nil {
		return nil
	}
	resp, err := c.get(ctx, "/hosts")
	if err != nil {
		return fmt.Errorf("list hosts: %w", err)
	}
	var hosts []apiHost
	if err := resp.decodeItems(&hosts); err != nil {
		return err
	}
	c.hosts = make(map[string]string, len(hosts))
	for _, h := range hosts {
		c.hosts[strings.ToLower(h.Hostname)] = h.HostID
	}
	return nil
}

func (c *HTTPClient) RunServiceCommand(ctx context.Context, svc *model.Service, command string) (*model.Command, error) {
	resp, err := c.post(ctx, servicePath(svc)+"/commands/"+url.PathEscape(command), nil)
	if err != nil {
		return nil, fmt.Errorf("run %s on %s: %w", command, svc.Name, err)
	}
	var cmd apiCommand
	if err := resp.decode(&cmd); err != nil {
		return nil, err
	}
	m := cmd.model()
	if m.Name == "" {
		m.Name = command
	}
	return &m, nil
}

func (c *HTTPClient) RunRoleCommand(ctx context.Context, svc *model.Service, command string, roleNames []string) ([]model.Command, error) {
	body := itemList[string]{Items: roleNames}
	resp, err := c.post(ctx, servicePath(svc)+"/roleCommands/"+url.PathEscape(command), body)
	if err != nil {
		return nil, fmt.Errorf("run %s on %s: %w", command, strings.Join(roleNames, ","), err)
	}
	var bulk struct {
		Items  []apiCommand `json:"items"`
		Errors []string     `json:"errors"`
	}
	if err := resp.decode(&bulk); err != nil {
		return nil, err
	}
	if len(bulk.Errors) > 0 {
		return nil, fmt.Errorf("run %s: %s", command, strings.Join(bulk.Errors, "; "))
	}
	if len(bulk.Items) == 0 {
		return nil, fmt.Errorf("run %s on %s: no commands were submitted", command, strings.Join(roleNames, ","))
	}
	cmds := make([]model.Command, 0, len(bulk.Items))
	for _, item := range bulk.Items {
		m := item.model()
		if m.Name == "" {
			m.Name = command
		}
		cmds = append(cmds, m)
	}
	return cmds, nil
}

func (c *HTTPClient) getCommand(ctx context.Context, id int64) (model.Command, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/commands/%d", id))
	if err != nil {
		return model.Command{}, fmt.Errorf("get command %d: %w", id, err)
	}
	var cmd apiCommand
	if err := resp.decode(&cmd); err != nil {
		return model.Command{}, err
	}
	return cmd.model(), nil
}

func (c *HTTPClient) PollCommand(ctx context.Context, cmd *model.Command, timeout time.Duration) (model.CommandResult, error) {
	return Poll(ctx, *cmd, timeout, c.PollInterval, c.getCommand)
}

func (c *HTTPClient) ServiceState(ctx context.Context, svc *model.Service) (model.LifecycleState, error) {
	resp, err := c.get(ctx, servicePath(svc))
	if err != nil {
		if IsNotFound(err) {
			return model.StateAbsent, nil
		}
		return "", fmt.Errorf("get service %s: %w", svc.Name, err)
	}
	var s apiService
	if err := resp.decode(&s); err != nil {
		return "", err
	}
	return model.LifecycleFromRemote(s.ServiceState), nil
}

func (c *HTTPClient) StartService(ctx context.Context, svc *model.Service) (*model.Command, error) {
	return c.RunServiceCommand(ctx, svc, "start")
}

func (c *HTTPClient) StopService(ctx context.Context, svc *model.Service) (*model.Command, error) {
	return c.RunServiceCommand(ctx, svc, "stop")
}

func (c *HTTPClient) DeleteService(ctx context.Context, svc *model.Service) error {
	if _, err := c.delete(ctx, servicePath(svc)); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete service %s: %w", svc.Name, err)
	}
	return nil
}
