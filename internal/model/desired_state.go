package model

import (
	"fmt"
	"strings"
	"time"
)

// DesiredState is one reconciliation request: the lifecycle and placement a
// caller wants for a single service type within a cluster.
type DesiredState struct {
	Cluster  string            `json:"cluster" yaml:"cluster"`
	Service  ServiceType       `json:"service" yaml:"service"`
	Name     string            `json:"name,omitempty" yaml:"name,omitempty"`
	Target   Target            `json:"state,omitempty" yaml:"state,omitempty"`
	Endpoint Endpoint          `json:"endpoint" yaml:"endpoint"`
	Hosts    HostMap           `json:"hosts,omitempty" yaml:"hosts,omitempty"`
	Config   map[string]string `json:"config,omitempty" yaml:"config,omitempty"`
	// Timeouts overrides per-step poll timeouts, in seconds, keyed by step name
	// (e.g. "hdfsFormat", "start", "stop").
	Timeouts map[string]int `json:"timeouts,omitempty" yaml:"timeouts,omitempty"`
}

// Endpoint is where the control plane lives and how to authenticate to it.
type Endpoint struct {
	URL        string `json:"url,omitempty" yaml:"url,omitempty"`
	APIVersion int    `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	Username   string `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
}

// WithDefaults fills empty endpoint fields from def.
func (e Endpoint) WithDefaults(def Endpoint) Endpoint {
	if e.URL == "" {
		e.URL = def.URL
	}
	if e.APIVersion == 0 {
		e.APIVersion = def.APIVersion
	}
	if e.Username == "" {
		e.Username = def.Username
	}
	if e.Password == "" {
		e.Password = def.Password
	}
	return e
}

// Normalize canonicalises the service type and target. It does not contact
// the control plane.
func (d *DesiredState) Normalize() error {
	d.Cluster = strings.TrimSpace(d.Cluster)
	if d.Cluster == "" {
		return fmt.Errorf("cluster name is required")
	}
	t, err := ParseServiceType(string(d.Service))
	if err != nil {
		return err
	}
	d.Service = t
	target, err := ParseTarget(string(d.Target))
	if err != nil {
		return err
	}
	d.Target = target
	for step, secs := range d.Timeouts {
		if secs <= 0 {
			return fmt.Errorf("timeout for %q must be positive, got %d", step, secs)
		}
	}
	return nil
}

// Timeout returns the caller's override for step, or def.
func (d DesiredState) Timeout(step string, def time.Duration) time.Duration {
	if secs, ok := d.Timeouts[step]; ok && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}
