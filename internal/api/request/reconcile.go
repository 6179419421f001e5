package request

import (
	"net/http"
	"strconv"

	"github.com/edvin/svcctl/internal/history"
	"github.com/edvin/svcctl/internal/model"
)

// Endpoint overrides the server's default control-plane endpoint.
type Endpoint struct {
	URL        string `json:"url" validate:"omitempty,url"`
	APIVersion int    `json:"api_version" validate:"omitempty,gte=1"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// Reconcile is the body of a reconcile request. The cluster and service
// type come from the path.
type Reconcile struct {
	Name        string            `json:"name" validate:"omitempty,service_name"`
	State       string            `json:"state" validate:"target"`
	Endpoint    Endpoint          `json:"endpoint"`
	Hosts       model.HostMap     `json:"hosts"`
	Config      map[string]string `json:"config"`
	Timeouts    map[string]int    `json:"timeouts" validate:"omitempty,dive,gt=0"`
	CallbackURL string            `json:"callback_url" validate:"omitempty,url"`
}

// DesiredState combines the path parameters with the body.
func (r Reconcile) DesiredState(cluster, service string) model.DesiredState {
	return model.DesiredState{
		Cluster: cluster,
		Service: model.ServiceType(service),
		Name:    r.Name,
		Target:  model.Target(r.State),
		Endpoint: model.Endpoint{
			URL:        r.Endpoint.URL,
			APIVersion: r.Endpoint.APIVersion,
			Username:   r.Endpoint.Username,
			Password:   r.Endpoint.Password,
		},
		Hosts:    r.Hosts,
		Config:   r.Config,
		Timeouts: r.Timeouts,
	}
}

// ParseRunFilter extracts ledger filters from the query string.
func ParseRunFilter(r *http.Request) history.Filter {
	q := r.URL.Query()
	f := history.Filter{
		Cluster: q.Get("cluster"),
		Limit:   history.DefaultLimit,
	}
	if s := q.Get("service"); s != "" {
		if t, err := model.ParseServiceType(s); err == nil {
			f.Service = t
		} else {
			f.Service = model.ServiceType(s)
		}
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		f.Limit = min(limit, history.MaxLimit)
	}
	return f
}
