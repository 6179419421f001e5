// Package placement turns a host specification into an ordered, reproducible
// assignment of role instances to hosts.
package placement

import (
	"fmt"
	"sort"
	"strings"

	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/svcerr"
)

// Split parses a comma-separated host list and returns the hosts sorted
// case-insensitively. Hosts that differ only in case are rejected, so the
// order is total and never depends on input order.
func Split(hostSpec string) ([]string, error) {
	var hosts []string
	seen := make(map[string]string)
	for _, h := range strings.Split(hostSpec, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		key := strings.ToLower(h)
		if prev, ok := seen[key]; ok {
			return nil, svcerr.Configuration("host %q listed more than once (also as %q)", h, prev)
		}
		seen[key] = h
		hosts = append(hosts, h)
	}
	if len(hosts) == 0 {
		return nil, svcerr.Configuration("host list is empty")
	}

	sort.Slice(hosts, func(i, j int) bool {
		return strings.ToLower(hosts[i]) < strings.ToLower(hosts[j])
	})
	return hosts, nil
}

// Resolve assigns 1-based ordinals to the sorted hosts and names each role
// "{prefix}-{ordinal}". A singleton group must name exactly one host and its
// role is named "{prefix}" without an ordinal.
func Resolve(hostSpec, prefix string, singleton bool) ([]model.Placement, error) {
	hosts, err := Split(hostSpec)
	if err != nil {
		return nil, err
	}
	if singleton {
		if len(hosts) != 1 {
			return nil, svcerr.Configuration("%s takes exactly one host, got %d", prefix, len(hosts))
		}
		return []model.Placement{{Ordinal: 1, Host: hosts[0], RoleName: prefix}}, nil
	}

	out := make([]model.Placement, len(hosts))
	for i, h := range hosts {
		out[i] = model.Placement{
			Ordinal:  i + 1,
			Host:     h,
			RoleName: fmt.Sprintf("%s-%d", prefix, i+1),
		}
	}
	return out, nil
}
