// Package cmtest provides an in-memory control plane served over HTTP for
// tests. It understands the subset of the REST API that controlplane.HTTPClient
// uses and records every request it receives.
package cmtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/svcctl/internal/model"
)

// Behavior controls how a command submitted to the fake completes.
type Behavior int

const (
	// Succeed completes the command successfully on first read.
	Succeed Behavior = iota
	// Fail completes the command unsuccessfully on first read.
	Fail
	// Hang leaves the command active forever.
	Hang
)

// Credentials accepted by a new Server.
const (
	Username = "admin"
	Password = "admin"
)

// Call is one recorded request.
type Call struct {
	Method string
	Path   string
	At     time.Time
}

func (c Call) String() string { return c.Method + " " + c.Path }

// Role is a role instance held by the fake.
type Role struct {
	Name   string
	Kind   string
	HostID string
}

// Service is a snapshot of a service held by the fake.
type Service struct {
	Name        string
	Type        string
	State       string
	Config      map[string]string
	GroupConfig map[string]map[string]string
	Roles       []Role
	Commands    []string
}

type command struct {
	model.Command
	service *Service
	onDone  func()
}

// Server is a fake control plane.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	clusters  map[string][]*Service
	hosts     map[string]string
	commands  map[int64]*command
	nextID    int64
	behaviors map[string]Behavior
	calls     []Call
	failPaths map[string]int
}

// NewServer starts a fake control plane. Call Close when done.
func NewServer() *Server {
	s := &Server{
		clusters:  make(map[string][]*Service),
		hosts:     make(map[string]string),
		commands:  make(map[int64]*command),
		behaviors: make(map[string]Behavior),
		failPaths: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.auth)
	r.Route("/api/{version}", func(r chi.Router) {
		r.Get("/hosts", s.listHosts)
		r.Get("/commands/{id}", s.getCommand)
		r.Route("/clusters/{cluster}", func(r chi.Router) {
			r.Get("/", s.getCluster)
			r.Get("/services", s.listServices)
			r.Post("/services", s.createServices)
			r.Route("/services/{service}", func(r chi.Router) {
				r.Get("/", s.getService)
				r.Delete("/", s.deleteService)
				r.Put("/config", s.updateServiceConfig)
				r.Post("/roles", s.createRoles)
				r.Put("/roleConfigGroups/{group}/config", s.updateGroupConfig)
				r.Post("/commands/{command}", s.runServiceCommand)
				r.Post("/roleCommands/{command}", s.runRoleCommand)
			})
		})
	})

	s.Server = httptest.NewServer(r)
	return s
}

// Endpoint returns connection details for the fake.
func (s *Server) Endpoint() model.Endpoint {
	return model.Endpoint{URL: s.URL, APIVersion: 19, Username: Username, Password: Password}
}

// AddCluster registers an empty cluster.
func (s *Server) AddCluster(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clusters[name]; !ok {
		s.clusters[name] = nil
	}
}

// AddHosts registers hosts; each gets a generated host ID.
func (s *Server) AddHosts(hostnames ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hostnames {
		s.hosts[h] = fmt.Sprintf("host-%d", len(s.hosts)+1)
	}
}

// AddService places a pre-existing service in a cluster.
func (s *Server) AddService(cluster, name string, t model.ServiceType, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusters[cluster] = append(s.clusters[cluster], newService(name, string(t), state))
}

// SetBehavior sets how commands with the given name complete.
func (s *Server) SetBehavior(commandName string, b Behavior) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.behaviors[commandName] = b
}

// FailNext makes the next n requests whose path ends with suffix return 500.
func (s *Server) FailNext(suffix string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPaths[suffix] = n
}

// Service returns a copy of the first service of the given type in cluster.
func (s *Server) Service(cluster string, t model.ServiceType) (Service, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc := s.findByType(cluster, string(t))
	if svc == nil {
		return Service{}, false
	}
	out := *svc
	out.Roles = append([]Role(nil), svc.Roles...)
	out.Commands = append([]string(nil), svc.Commands...)
	return out, true
}

// Calls returns every request received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// MutatingCalls returns every non-GET request received so far.
func (s *Server) MutatingCalls() []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method != http.MethodGet {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the request log.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func newService(name, typ, state string) *Service {
	return &Service{
		Name:        name,
		Type:        typ,
		State:       state,
		Config:      map[string]string{},
		GroupConfig: map[string]map[string]string{},
	}
}

func (s *Server) findByType(cluster, typ string) *Service {
	for _, svc := range s.clusters[cluster] {
		if strings.EqualFold(svc.Type, typ) {
			return svc
		}
	}
	return nil
}

func (s *Server) findByName(cluster, name string) *Service {
	for _, svc := range s.clusters[cluster] {
		if svc.Name == name {
			return svc
		}
	}
	return nil
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, At: time.Now()})
		for suffix, n := range s.failPaths {
			if n > 0 && strings.HasSuffix(r.URL.Path, suffix) {
				s.failPaths[suffix] = n - 1
				s.mu.Unlock()
				writeError(w, http.StatusInternalServerError, "injected failure")
				return
			}
		}
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != Username || pass != Password {
			writeError(w, http.StatusUnauthorized, "bad credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func items(v any) map[string]any {
	return map[string]any{"items": v}
}

func serviceJSON(svc *Service) map[string]any {
	return map[string]any{"name": svc.Name, "type": svc.Type, "serviceState": svc.State}
}

func (s *Server) listHosts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.hosts))
	for h := range s.hosts {
		names = append(names, h)
	}
	sort.Strings(names)
	out := make([]map[string]string, 0, len(names))
	for _, h := range names {
		out = append(out, map[string]string{"hostId": s.hosts[h], "hostname": h})
	}
	writeJSON(w, http.StatusOK, items(out))
}

func (s *Server) getCluster(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "cluster")
	s.mu.Lock()
	_, ok := s.clusters[name]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name, "displayName": name, "fullVersion": "6.3.0"})
}

func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svcs, ok := s.clusters[chi.URLParam(r, "cluster")]
	if !ok {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	out := make([]map[string]any, 0, len(svcs))
	for _, svc := range svcs {
		out = append(out, serviceJSON(svc))
	}
	writeJSON(w, http.StatusOK, items(out))
}

func (s *Server) createServices(w http.ResponseWriter, r *http.Request) {
	cluster := chi.URLParam(r, "cluster")
	var req struct {
		Items []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clusters[cluster]; !ok {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	out := make([]map[string]any, 0, len(req.Items))
	for _, it := range req.Items {
		if s.findByName(cluster, it.Name) != nil {
			writeError(w, http.StatusBadRequest, "service already exists: "+it.Name)
			return
		}
		svc := newService(it.Name, it.Type, "STOPPED")
		s.clusters[cluster] = append(s.clusters[cluster], svc)
		out = append(out, serviceJSON(svc))
	}
	writeJSON(w, http.StatusOK, items(out))
}

func (s *Server) service(w http.ResponseWriter, r *http.Request) *Service {
	svc := s.findByName(chi.URLParam(r, "cluster"), chi.URLParam(r, "service"))
	if svc == nil {
		writeError(w, http.StatusNotFound, "service not found")
	}
	return svc
}

func (s *Server) getService(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc := s.service(w, r); svc != nil {
		writeJSON(w, http.StatusOK, serviceJSON(svc))
	}
}

func (s *Server) deleteService(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc := s.service(w, r)
	if svc == nil {
		return
	}
	if svc.State != "STOPPED" {
		writeError(w, http.StatusBadRequest, "service must be stopped before deletion")
		return
	}
	cluster := chi.URLParam(r, "cluster")
	kept := s.clusters[cluster][:0]
	for _, other := range s.clusters[cluster] {
		if other != svc {
			kept = append(kept, other)
		}
	}
	s.clusters[cluster] = kept
	writeJSON(w, http.StatusOK, serviceJSON(svc))
}

func decodeConfig(r *http.Request) (map[string]string, error) {
	var req struct {
		Items []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(req.Items))
	for _, it := range req.Items {
		out[it.Name] = it.Value
	}
	return out, nil
}

func (s *Server) updateServiceConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := decodeConfig(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	svc := s.service(w, r)
	if svc == nil {
		return
	}
	for k, v := range cfg {
		svc.Config[k] = v
	}
	writeJSON(w, http.StatusOK, items([]any{}))
}

func (s *Server) updateGroupConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := decodeConfig(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	svc := s.service(w, r)
	if svc == nil {
		return
	}
	group := chi.URLParam(r, "group")
	if svc.GroupConfig[group] == nil {
		svc.GroupConfig[group] = map[string]string{}
	}
	for k, v := range cfg {
		svc.GroupConfig[group][k] = v
	}
	writeJSON(w, http.StatusOK, items([]any{}))
}

func (s *Server) createRoles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []struct {
			Name    string `json:"name"`
			Type    string `json:"type"`
			HostRef struct {
				HostID string `json:"hostId"`
			} `json:"hostRef"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	svc := s.service(w, r)
	if svc == nil {
		return
	}
	for _, it := range req.Items {
		svc.Roles = append(svc.Roles, Role{Name: it.Name, Kind: it.Type, HostID: it.HostRef.HostID})
	}
	writeJSON(w, http.StatusOK, items([]any{}))
}

// submit records a new command. Callers hold s.mu.
func (s *Server) submit(svc *Service, name string, onSuccess func()) *command {
	s.nextID++
	cmd := &command{
		Command: model.Command{ID: s.nextID, Name: name, Active: true},
		service: svc,
		onDone:  onSuccess,
	}
	svc.Commands = append(svc.Commands, name)
	s.commands[cmd.ID] = cmd
	return cmd
}

func commandJSON(c *command) map[string]any {
	return map[string]any{
		"id":            c.ID,
		"name":          c.Name,
		"active":        c.Active,
		"success":       c.Success,
		"resultMessage": c.ResultMessage,
	}
}

func (s *Server) runServiceCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "command")
	s.mu.Lock()
	defer s.mu.Unlock()
	svc := s.service(w, r)
	if svc == nil {
		return
	}
	var onSuccess func()
	switch name {
	case "start":
		onSuccess = func() { svc.State = "STARTED" }
	case "stop":
		onSuccess = func() { svc.State = "STOPPED" }
	}
	cmd := s.submit(svc, name, onSuccess)
	writeJSON(w, http.StatusOK, commandJSON(cmd))
}

func (s *Server) runRoleCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "command")
	var req struct {
		Items []string `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	svc := s.service(w, r)
	if svc == nil {
		return
	}
	var out []map[string]any
	var errs []string
	for _, roleName := range req.Items {
		found := false
		for _, role := range svc.Roles {
			if role.Name == roleName {
				found = true
			}
		}
		if !found {
			errs = append(errs, "role not found: "+roleName)
			continue
		}
		out = append(out, commandJSON(s.submit(svc, name, nil)))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "errors": errs})
}

func (s *Server) getCommand(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad command id")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd, ok := s.commands[id]
	if !ok {
		writeError(w, http.StatusNotFound, "command not found")
		return
	}
	if cmd.Active {
		switch s.behaviors[cmd.Name] {
		case Succeed:
			cmd.Active = false
			cmd.Success = true
			cmd.ResultMessage = cmd.Name + " completed"
			if cmd.onDone != nil {
				cmd.onDone()
			}
		case Fail:
			cmd.Active = false
			cmd.ResultMessage = cmd.Name + " failed"
		case Hang:
		}
	}
	writeJSON(w, http.StatusOK, commandJSON(cmd))
}
