package model

// Cluster is a named collection of services in the control plane.
type Cluster struct {
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Host is a machine registered with the control plane.
type Host struct {
	ID       string `json:"host_id" yaml:"host_id"`
	Hostname string `json:"hostname" yaml:"hostname"`
}
