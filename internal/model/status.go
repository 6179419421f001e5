package model

import (
	"fmt"
	"strings"
)

// LifecycleState is the observed state of a service.
type LifecycleState string

const (
	StateAbsent         LifecycleState = "ABSENT"
	StateUnknownRunning LifecycleState = "PRESENT_UNKNOWN_RUNSTATE"
	StateStarted        LifecycleState = "STARTED"
	StateStopped        LifecycleState = "STOPPED"
)

// StateNotFound is how an absent service is reported to callers.
const StateNotFound = "NOT_FOUND"

// StateUnknown is reported when a run ended before the service was observed.
const StateUnknown = "UNKNOWN"

// IsPresent reports whether the service exists in any runstate.
func (s LifecycleState) IsPresent() bool {
	return s != "" && s != StateAbsent
}

// Reported returns the state as surfaced in reports.
func (s LifecycleState) Reported() string {
	if !s.IsPresent() {
		return StateNotFound
	}
	return string(s)
}

// LifecycleFromRemote maps a control-plane serviceState value to a lifecycle
// state. Transitional and unknown values collapse to StateUnknownRunning.
func LifecycleFromRemote(s string) LifecycleState {
	switch strings.ToUpper(s) {
	case "STARTED":
		return StateStarted
	case "STOPPED":
		return StateStopped
	default:
		return StateUnknownRunning
	}
}

// Target is the lifecycle a caller asks for.
type Target string

const (
	TargetPresent Target = "present"
	TargetAbsent  Target = "absent"
	TargetStarted Target = "started"
	TargetStopped Target = "stopped"
)

// DefaultTarget is used when a request leaves the target empty.
const DefaultTarget = TargetStarted

// ParseTarget parses a target, defaulting to DefaultTarget when empty.
func ParseTarget(s string) (Target, error) {
	t := Target(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return DefaultTarget, nil
	}
	switch t {
	case TargetPresent, TargetAbsent, TargetStarted, TargetStopped:
		return t, nil
	}
	return "", fmt.Errorf("unknown target state %q (want present, absent, started or stopped)", s)
}

// Satisfied reports whether an observed state is an acceptable final result
// for the target.
func (t Target) Satisfied(s LifecycleState) bool {
	switch t {
	case TargetAbsent:
		return !s.IsPresent()
	case TargetPresent:
		return s.IsPresent()
	case TargetStarted:
		return s == StateStarted
	case TargetStopped:
		return s == StateStopped
	}
	return false
}
