package model

import "time"

// Placement is one resolved role-to-host assignment.
type Placement struct {
	Group    string `json:"group" yaml:"group"`
	Kind     string `json:"kind" yaml:"kind"`
	Ordinal  int    `json:"ordinal" yaml:"ordinal"`
	Host     string `json:"host" yaml:"host"`
	RoleName string `json:"role_name" yaml:"role_name"`
}

// Report is the outcome of one reconciliation. It is produced for failed runs
// too, so callers can see which mutating actions were issued before the abort.
type Report struct {
	RunID      string       `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Cluster    string       `json:"cluster" yaml:"cluster"`
	Service    ServiceType  `json:"service" yaml:"service"`
	Name       string       `json:"name,omitempty" yaml:"name,omitempty"`
	Target     Target       `json:"target" yaml:"target"`
	Changed    bool         `json:"changed" yaml:"changed"`
	State      string       `json:"state" yaml:"state"`
	Placements []Placement  `json:"placements,omitempty" yaml:"placements,omitempty"`
	Actions    []string     `json:"actions,omitempty" yaml:"actions,omitempty"`
	Error      *ErrorReport `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time    `json:"finished_at" yaml:"finished_at"`
}

// Failed reports whether the run ended in an error.
func (r *Report) Failed() bool {
	return r.Error != nil
}

// Hosts returns the sorted host list used for each role group, in placement order.
func (r *Report) Hosts() map[string][]string {
	out := make(map[string][]string)
	for _, p := range r.Placements {
		out[p.Group] = append(out[p.Group], p.Host)
	}
	return out
}

// ErrorReport describes why a run failed.
type ErrorReport struct {
	Kind    string `json:"kind" yaml:"kind"`
	Stage   string `json:"stage,omitempty" yaml:"stage,omitempty"`
	Message string `json:"message" yaml:"message"`
	Outcome string `json:"outcome,omitempty" yaml:"outcome,omitempty"`
}
