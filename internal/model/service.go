package model

import (
	"fmt"
	"strings"
)

// ServiceType is the control-plane type name of a service.
type ServiceType string

const (
	ServiceTypeHDFS      ServiceType = "HDFS"
	ServiceTypeHive      ServiceType = "HIVE"
	ServiceTypeImpala    ServiceType = "IMPALA"
	ServiceTypeSolr      ServiceType = "SOLR"
	ServiceTypeZooKeeper ServiceType = "ZOOKEEPER"
	ServiceTypeYARN      ServiceType = "YARN"
	ServiceTypeHBase     ServiceType = "HBASE"
)

// serviceTypeAliases maps generic names to control-plane type names.
var serviceTypeAliases = map[string]ServiceType{
	"filesystem":   ServiceTypeHDFS,
	"sql_engine":   ServiceTypeHive,
	"query_engine": ServiceTypeImpala,
	"search":       ServiceTypeSolr,
	"coordination": ServiceTypeZooKeeper,
}

// ParseServiceType accepts either a control-plane type name (case-insensitive)
// or one of the generic aliases such as "filesystem".
func ParseServiceType(s string) (ServiceType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if t, ok := serviceTypeAliases[key]; ok {
		return t, nil
	}
	t := ServiceType(strings.ToUpper(key))
	if t.IsValid() {
		return t, nil
	}
	return "", fmt.Errorf("unknown service type %q", s)
}

// IsValid reports whether t is a known service type.
func (t ServiceType) IsValid() bool {
	switch t {
	case ServiceTypeHDFS, ServiceTypeHive, ServiceTypeImpala, ServiceTypeSolr,
		ServiceTypeZooKeeper, ServiceTypeYARN, ServiceTypeHBase:
		return true
	default:
		return false
	}
}

func (t ServiceType) String() string {
	return string(t)
}

// Service is one instance of a cluster-level offering.
type Service struct {
	Name    string            `json:"name" yaml:"name"`
	Type    ServiceType       `json:"type" yaml:"type"`
	Cluster string            `json:"cluster" yaml:"cluster"`
	State   LifecycleState    `json:"state" yaml:"state"`
	Config  map[string]string `json:"config,omitempty" yaml:"config,omitempty"`
	Roles   []Role            `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// Role is one host-bound unit belonging to a service.
type Role struct {
	Name string `json:"name" yaml:"name"`
	Kind string `json:"kind" yaml:"kind"`
	Host string `json:"host" yaml:"host"`
}
