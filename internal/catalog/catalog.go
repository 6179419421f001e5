// Package catalog holds the per-service-type descriptors that drive the
// reconciler. Adding a service type means adding a descriptor here; the
// reconciliation flow itself does not change.
package catalog

import (
	"fmt"
	"sort"
	"time"

	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/svcerr"
)

// Dependency is another service the described service needs in the cluster.
type Dependency struct {
	Type      model.ServiceType `json:"type"`
	ConfigKey string            `json:"config_key"`
	Required  bool              `json:"required"`
}

// ConfigParam maps a request configuration key onto a control-plane
// configuration name.
type ConfigParam struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Default  string `json:"default,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// RoleGroup is one kind of role instance within a service.
type RoleGroup struct {
	Kind      string        `json:"kind"`
	Tag       string        `json:"tag"`
	HostsKey  string        `json:"hosts_key"`
	Singleton bool          `json:"singleton,omitempty"`
	Optional  bool          `json:"optional,omitempty"`
	Config    []ConfigParam `json:"config,omitempty"`
}

// InitCommand is an asynchronous command run once after creation. Commands
// with a RoleKind target every role of that kind; the rest are service-wide.
type InitCommand struct {
	Name     string        `json:"name"`
	RoleKind string        `json:"role_kind,omitempty"`
	Timeout  time.Duration `json:"timeout"`
}

// Descriptor describes everything type-specific about reconciling a service.
type Descriptor struct {
	Type         model.ServiceType `json:"type"`
	Prefix       string            `json:"prefix"`
	Dependencies []Dependency      `json:"dependencies,omitempty"`
	Config       []ConfigParam     `json:"config,omitempty"`
	RoleGroups   []RoleGroup       `json:"role_groups"`
	InitCommands []InitCommand     `json:"init_commands,omitempty"`
}

// ServiceName returns the requested name, or the type's default name.
func (d Descriptor) ServiceName(requested string) string {
	if requested != "" {
		return requested
	}
	return d.Prefix
}

// RolePrefix returns the role-name prefix for a group: "{service}-{tag}".
func (d Descriptor) RolePrefix(serviceName string, g RoleGroup) string {
	return serviceName + "-" + g.Tag
}

// BaseGroupID returns the id of the default role config group for a kind.
func (d Descriptor) BaseGroupID(serviceName, kind string) string {
	return fmt.Sprintf("%s-%s-BASE", serviceName, kind)
}

// ServiceConfig builds the base service configuration from the request.
func (d Descriptor) ServiceConfig(req map[string]string) (map[string]string, error) {
	return resolveParams(d.Type, d.Config, req)
}

// GroupConfig builds the role-group configuration for g from the request.
func (d Descriptor) GroupConfig(g RoleGroup, req map[string]string) (map[string]string, error) {
	return resolveParams(d.Type, g.Config, req)
}

// CheckConfigKeys rejects request keys the descriptor does not declare.
func (d Descriptor) CheckConfigKeys(req map[string]string) error {
	known := make(map[string]bool)
	for _, p := range d.Config {
		known[p.Key] = true
	}
	for _, g := range d.RoleGroups {
		for _, p := range g.Config {
			known[p.Key] = true
		}
	}
	keys := make([]string, 0, len(req))
	for k := range req {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !known[k] {
			return svcerr.Configuration("%s does not accept configuration key %q", d.Type, k)
		}
	}
	return nil
}

// CheckHostKeys rejects host specs for role groups the descriptor does not declare.
func (d Descriptor) CheckHostKeys(hosts map[string]string) error {
	known := make(map[string]bool)
	for _, g := range d.RoleGroups {
		known[g.HostsKey] = true
	}
	keys := make([]string, 0, len(hosts))
	for k := range hosts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !known[k] {
			return svcerr.Configuration("%s has no role group %q", d.Type, k)
		}
	}
	return nil
}

func resolveParams(t model.ServiceType, params []ConfigParam, req map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(params))
	for _, p := range params {
		v, ok := req[p.Key]
		if !ok || v == "" {
			if p.Required {
				return nil, svcerr.Configuration("%s requires configuration key %q", t, p.Key)
			}
			v = p.Default
		}
		if v == "" {
			continue
		}
		out[p.Name] = v
	}
	return out, nil
}

var descriptors = map[model.ServiceType]Descriptor{}

func register(d Descriptor) {
	descriptors[d.Type] = d
}

// Lookup returns the descriptor for a reconcilable service type.
func Lookup(t model.ServiceType) (Descriptor, bool) {
	d, ok := descriptors[t]
	return d, ok
}

// All returns every descriptor ordered by type name.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
