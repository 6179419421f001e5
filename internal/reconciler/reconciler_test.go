package reconciler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/svcctl/internal/catalog"
	"github.com/edvin/svcctl/internal/controlplane"
	"github.com/edvin/svcctl/internal/controlplane/cmtest"
	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/svcerr"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[string]model.CommandOutcome
}

func (o *recordingObserver) CommandFinished(_ model.ServiceType, command string, outcome model.CommandOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]model.CommandOutcome{}
	}
	o.outcomes[command] = outcome
}

func newCluster(t *testing.T) *cmtest.Server {
	t.Helper()
	srv := cmtest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddCluster("c1")
	srv.AddHosts("nn.example.com", "snn.example.com", "DN1.example.com", "dn2.example.com",
		"hms.example.com", "hs2.example.com")
	return srv
}

func reconcileWith(t *testing.T, srv *cmtest.Server, opts Options, req model.DesiredState) (*model.Report, error) {
	t.Helper()
	req.Endpoint = req.Endpoint.WithDefaults(srv.Endpoint())
	client := controlplane.NewClient(req.Endpoint, zerolog.Nop())
	client.PollInterval = time.Millisecond
	rep, err := New(client, opts).Reconcile(context.Background(), req)
	require.NotNil(t, rep)
	return rep, err
}

func reconcile(t *testing.T, srv *cmtest.Server, req model.DesiredState) (*model.Report, error) {
	t.Helper()
	return reconcileWith(t, srv, Options{Logger: zerolog.Nop()}, req)
}

func hdfsRequest(target model.Target) model.DesiredState {
	return model.DesiredState{
		Cluster: "c1",
		Service: "filesystem",
		Target:  target,
		Hosts: map[string]string{
			"namenode":          "nn.example.com",
			"secondarynamenode": "snn.example.com",
			"datanodes":         "dn2.example.com, DN1.example.com",
		},
	}
}

func hiveRequest() model.DesiredState {
	return model.DesiredState{
		Cluster: "c1",
		Service: "sql_engine",
		Hosts: map[string]string{
			"metastore":   "hms.example.com",
			"hiveservers": "hs2.example.com",
		},
		Config: map[string]string{
			"metastore_db_host":     "db.example.com",
			"metastore_db_password": "secret",
		},
	}
}

func roleNames(svc cmtest.Service) []string {
	var out []string
	for _, r := range svc.Roles {
		out = append(out, r.Name)
	}
	return out
}

func TestReconcile_CreateAndStart(t *testing.T) {
	srv := newCluster(t)

	rep, err := reconcile(t, srv, hdfsRequest(""))
	require.NoError(t, err)
	assert.True(t, rep.Changed)
	assert.Equal(t, "STARTED", rep.State)
	assert.Equal(t, model.ServiceTypeHDFS, rep.Service)
	assert.Equal(t, model.TargetStarted, rep.Target)
	assert.Equal(t, "hdfs", rep.Name)
	assert.NotEmpty(t, rep.RunID)
	assert.Nil(t, rep.Error)

	require.NotEmpty(t, rep.Actions)
	assert.Equal(t, "create service hdfs", rep.Actions[0])
	assert.Contains(t, rep.Actions, "run hdfsFormat on hdfs-nn")
	assert.Equal(t, "start service hdfs", rep.Actions[len(rep.Actions)-1])

	svc, ok := srv.Service("c1", model.ServiceTypeHDFS)
	require.True(t, ok)
	assert.Equal(t, []string{"hdfs-nn", "hdfs-snn", "hdfs-dn-1", "hdfs-dn-2"}, roleNames(svc))
	assert.Equal(t, []string{"hdfsFormat", "deployClientConfig", "start"}, svc.Commands)
	assert.Equal(t, "3", svc.Config["dfs_replication"])
	assert.NotContains(t, svc.Config, "zookeeper_service")
	assert.Equal(t, "/dfs/nn", svc.GroupConfig["hdfs-NAMENODE-BASE"]["dfs_name_dir_list"])
	assert.Equal(t, "/dfs/dn", svc.GroupConfig["hdfs-DATANODE-BASE"]["dfs_data_dir_list"])

	assert.Equal(t, []string{"DN1.example.com", "dn2.example.com"}, rep.Hosts()["datanodes"])
}

func TestReconcile_Idempotent(t *testing.T) {
	srv := newCluster(t)

	first, err := reconcile(t, srv, hdfsRequest(model.TargetStarted))
	require.NoError(t, err)
	require.True(t, first.Changed)

	srv.ResetCalls()
	second, err := reconcile(t, srv, hdfsRequest(model.TargetStarted))
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Empty(t, second.Actions)
	assert.Equal(t, first.State, second.State)
	assert.Equal(t, first.Placements, second.Placements)
	assert.Empty(t, srv.MutatingCalls())
}

func TestReconcile_DependencyGating(t *testing.T) {
	srv := newCluster(t)

	rep, err := reconcile(t, srv, hiveRequest())
	require.Error(t, err)
	assert.True(t, svcerr.Is(err, svcerr.KindMissingDependency))
	assert.Contains(t, err.Error(), "HDFS")
	assert.False(t, rep.Changed)
	require.NotNil(t, rep.Error)
	assert.Equal(t, "MissingDependency", rep.Error.Kind)
	assert.Empty(t, srv.MutatingCalls())
}

func TestReconcile_HiveWithDependencies(t *testing.T) {
	srv := newCluster(t)
	srv.AddService("c1", "hdfs", model.ServiceTypeHDFS, "STARTED")
	srv.AddService("c1", "zookeeper", model.ServiceTypeZooKeeper, "STARTED")

	rep, err := reconcile(t, srv, hiveRequest())
	require.NoError(t, err)
	assert.Equal(t, "STARTED", rep.State)

	svc, ok := srv.Service("c1", model.ServiceTypeHive)
	require.True(t, ok)
	assert.Equal(t, "hdfs", svc.Config["hdfs_service"])
	assert.Equal(t, "zookeeper", svc.Config["zookeeper_service"])
	assert.NotContains(t, svc.Config, "mapreduce_yarn_service")
	assert.Equal(t, "db.example.com", svc.Config["hive_metastore_database_host"])
	assert.Equal(t, "postgresql", svc.Config["hive_metastore_database_type"])
	assert.Equal(t, []string{"hive-hms", "hive-hs2-1"}, roleNames(svc))
	assert.Equal(t, []string{
		"hiveCreateMetastoreDatabaseTables",
		"hiveCreateHiveWarehouse",
		"hiveCreateHiveUserDir",
		"deployClientConfig",
		"start",
	}, svc.Commands)
}

func TestReconcile_Lifecycle(t *testing.T) {
	t.Run("absent on absent is a no-op", func(t *testing.T) {
		srv := newCluster(t)
		rep, err := reconcile(t, srv, model.DesiredState{Cluster: "c1", Service: "hdfs", Target: model.TargetAbsent})
		require.NoError(t, err)
		assert.False(t, rep.Changed)
		assert.Equal(t, model.StateNotFound, rep.State)
		assert.Empty(t, srv.MutatingCalls())
	})

	t.Run("started on started is a no-op", func(t *testing.T) {
		srv := newCluster(t)
		srv.AddService("c1", "hdfs", model.ServiceTypeHDFS, "STARTED")
		rep, err := reconcile(t, srv, hdfsRequest(model.TargetStarted))
		require.NoError(t, err)
		assert.False(t, rep.Changed)
		assert.Equal(t, "STARTED", rep.State)
		assert.Empty(t, srv.MutatingCalls())
	})

	t.Run("absent on started stops then deletes", func(t *testing.T) {
		srv := newCluster(t)
		srv.AddService("c1", "hdfs", model.ServiceTypeHDFS, "STARTED")
		rep, err := reconcile(t, srv, model.DesiredState{Cluster: "c1", Service: "hdfs", Target: model.TargetAbsent})
		require.NoError(t, err)
		assert.True(t, rep.Changed)
		assert.Equal(t, model.StateNotFound, rep.State)

		calls := srv.MutatingCalls()
		require.Len(t, calls, 2)
		assert.Equal(t, http.MethodPost, calls[0].Method)
		assert.True(t, strings.HasSuffix(calls[0].Path, "/services/hdfs/commands/stop"))
		assert.Equal(t, http.MethodDelete, calls[1].Method)

		_, ok := srv.Service("c1", model.ServiceTypeHDFS)
		assert.False(t, ok)
	})

	t.Run("absent on stopped deletes without stopping", func(t *testing.T) {
		srv := newCluster(t)
		srv.AddService("c1", "hdfs", model.ServiceTypeHDFS, "STOPPED")
		rep, err := reconcile(t, srv, model.DesiredState{Cluster: "c1", Service: "hdfs", Target: model.TargetAbsent})
		require.NoError(t, err)
		assert.Equal(t, []string{"delete service hdfs"}, rep.Actions)
	})

	t.Run("failed stop leaves service in place", func(t *testing.T) {
		srv := newCluster(t)
		srv.AddService("c1", "hdfs", model.ServiceTypeHDFS, "STARTED")
		srv.SetBehavior("stop", cmtest.Fail)
		rep, err := reconcile(t, srv, model.DesiredState{Cluster: "c1", Service: "hdfs", Target: model.TargetAbsent})
		require.Error(t, err)
		assert.True(t, svcerr.Is(err, svcerr.KindStopFailed))
		assert.Equal(t, "STARTED", rep.State)
		for _, c := range srv.MutatingCalls() {
			assert.NotEqual(t, http.MethodDelete, c.Method)
		}
		_, ok := srv.Service("c1", model.ServiceTypeHDFS)
		assert.True(t, ok)
	})

	t.Run("stopped on started stops", func(t *testing.T) {
		srv := newCluster(t)
		srv.AddService("c1", "hdfs", model.ServiceTypeHDFS, "STARTED")
		rep, err := reconcile(t, srv, hdfsRequest(model.TargetStopped))
		require.NoError(t, err)
		assert.Equal(t, []string{"stop service hdfs"}, rep.Actions)
		assert.Equal(t, "STOPPED", rep.State)
	})

	t.Run("present creates without starting", func(t *testing.T) {
		srv := newCluster(t)
		rep, err := reconcile(t, srv, hdfsRequest(model.TargetPresent))
		require.NoError(t, err)
		assert.True(t, rep.Changed)
		assert.Equal(t, "STOPPED", rep.State)
		svc, _ := srv.Service("c1", model.ServiceTypeHDFS)
		assert.NotContains(t, svc.Commands, "start")
	})

	t.Run("unknown runstate is started", func(t *testing.T) {
		srv := newCluster(t)
		srv.AddService("c1", "hdfs", model.ServiceTypeHDFS, "STARTING")
		rep, err := reconcile(t, srv, hdfsRequest(model.TargetStarted))
		require.NoError(t, err)
		assert.Equal(t, []string{"start service hdfs"}, rep.Actions)
	})
}

func TestReconcile_StartFailedReportsRunstate(t *testing.T) {
	srv := newCluster(t)
	srv.AddService("c1", "hdfs", model.ServiceTypeHDFS, "STOPPED")
	srv.SetBehavior("start", cmtest.Fail)

	rep, err := reconcile(t, srv, hdfsRequest(model.TargetStarted))
	require.Error(t, err)
	assert.True(t, svcerr.Is(err, svcerr.KindStartFailed))
	require.NotNil(t, rep.Error)
	assert.Equal(t, "start", rep.Error.Stage)
	assert.Equal(t, "FAILED", rep.Error.Outcome)
	assert.Contains(t, rep.Error.Message, "observed STOPPED")
	assert.True(t, rep.Changed)
}

func TestReconcile_TimeoutsAreDistinct(t *testing.T) {
	t.Run("init command timeout", func(t *testing.T) {
		srv := newCluster(t)
		srv.SetBehavior("hdfsFormat", cmtest.Hang)
		req := hdfsRequest(model.TargetStarted)
		req.Timeouts = map[string]int{"hdfsFormat": 1}

		rep, err := reconcile(t, srv, req)
		require.Error(t, err)
		assert.True(t, svcerr.Is(err, svcerr.KindTimedOut))
		assert.Equal(t, "init:hdfsFormat", rep.Error.Stage)
		assert.Equal(t, "TIMED_OUT", rep.Error.Outcome)
	})

	t.Run("init command failure", func(t *testing.T) {
		srv := newCluster(t)
		srv.SetBehavior("deployClientConfig", cmtest.Fail)

		rep, err := reconcile(t, srv, hdfsRequest(model.TargetStarted))
		require.Error(t, err)
		assert.True(t, svcerr.Is(err, svcerr.KindInitCommandFailed))
		assert.Equal(t, "init:deployClientConfig", rep.Error.Stage)
		assert.Equal(t, "FAILED", rep.Error.Outcome)
	})

	t.Run("start timeout", func(t *testing.T) {
		srv := newCluster(t)
		srv.AddService("c1", "hdfs", model.ServiceTypeHDFS, "STOPPED")
		srv.SetBehavior("start", cmtest.Hang)
		obs := &recordingObserver{}

		rep, err := reconcileWith(t, srv, Options{StartTimeout: 20 * time.Millisecond, Observer: obs, Logger: zerolog.Nop()},
			hdfsRequest(model.TargetStarted))
		require.Error(t, err)
		assert.True(t, svcerr.Is(err, svcerr.KindTimedOut))
		assert.False(t, svcerr.Is(err, svcerr.KindStartFailed))
		assert.Equal(t, "start", rep.Error.Stage)
		assert.Equal(t, model.OutcomeTimedOut, obs.outcomes["start"])
	})
}

func TestReconcile_PartialCreationIsNotRepaired(t *testing.T) {
	srv := newCluster(t)
	srv.FailNext("/roles", 1)

	rep, err := reconcile(t, srv, hdfsRequest(model.TargetStarted))
	require.Error(t, err)
	assert.True(t, svcerr.Is(err, svcerr.KindCreationFailed))
	assert.Equal(t, "roles:NAMENODE", rep.Error.Stage)
	assert.True(t, rep.Changed)

	rep, err = reconcile(t, srv, hdfsRequest(model.TargetStarted))
	require.NoError(t, err)
	assert.Equal(t, []string{"start service hdfs"}, rep.Actions)

	svc, _ := srv.Service("c1", model.ServiceTypeHDFS)
	assert.Empty(t, svc.Roles)
	assert.NotContains(t, svc.Commands, "hdfsFormat")
}

func TestReconcile_ClusterNotFound(t *testing.T) {
	srv := newCluster(t)
	req := hdfsRequest(model.TargetStarted)
	req.Cluster = "nope"

	rep, err := reconcile(t, srv, req)
	require.Error(t, err)
	assert.True(t, svcerr.Is(err, svcerr.KindClusterNotFound))
	assert.Equal(t, model.StateNotFound, rep.State)
	assert.Empty(t, srv.MutatingCalls())
}

func TestReconcile_ConfigurationErrorsMakeNoCalls(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.DesiredState)
	}{
		{"empty host spec", func(r *model.DesiredState) { r.Hosts["datanodes"] = " , " }},
		{"missing required group", func(r *model.DesiredState) { delete(r.Hosts, "namenode") }},
		{"multi-host singleton", func(r *model.DesiredState) { r.Hosts["namenode"] = "a,b" }},
		{"duplicate host", func(r *model.DesiredState) { r.Hosts["datanodes"] = "a.host,A.HOST" }},
		{"unknown host key", func(r *model.DesiredState) { r.Hosts["journalnodes"] = "a" }},
		{"unknown config key", func(r *model.DesiredState) { r.Config = map[string]string{"bogus": "1"} }},
		{"unknown service", func(r *model.DesiredState) { r.Service = "kafka" }},
		{"lookup-only service", func(r *model.DesiredState) { r.Service = "zookeeper" }},
		{"bad target", func(r *model.DesiredState) { r.Target = "running" }},
		{"missing cluster", func(r *model.DesiredState) { r.Cluster = " " }},
		{"non-positive timeout", func(r *model.DesiredState) { r.Timeouts = map[string]int{"start": 0} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newCluster(t)
			req := hdfsRequest(model.TargetStarted)
			tt.mutate(&req)

			rep, err := reconcile(t, srv, req)
			require.Error(t, err)
			assert.True(t, svcerr.Is(err, svcerr.KindConfiguration), "got %v", err)
			assert.False(t, rep.Changed)
			assert.Empty(t, srv.Calls())
		})
	}
}

func TestReconcile_MissingRequiredConfig(t *testing.T) {
	srv := newCluster(t)
	req := hiveRequest()
	delete(req.Config, "metastore_db_password")

	_, err := reconcile(t, srv, req)
	require.Error(t, err)
	assert.True(t, svcerr.Is(err, svcerr.KindConfiguration))
	assert.Contains(t, err.Error(), "metastore_db_password")
	assert.Empty(t, srv.Calls())
}

func TestReconcile_BadCredentials(t *testing.T) {
	srv := newCluster(t)
	req := hdfsRequest(model.TargetStarted)
	req.Endpoint.Password = "wrong"

	rep, err := reconcile(t, srv, req)
	require.Error(t, err)
	assert.True(t, svcerr.IsConnectivity(err))
	assert.Equal(t, "Connectivity", rep.Error.Kind)
	assert.Empty(t, srv.MutatingCalls())
}

func TestReconcile_UnregisteredHostMakesNoChanges(t *testing.T) {
	srv := newCluster(t)
	req := hdfsRequest(model.TargetStarted)
	req.Hosts["datanodes"] = "dn2.example.com,ghost.example.com"

	rep, err := reconcile(t, srv, req)
	require.Error(t, err)
	assert.True(t, svcerr.Is(err, svcerr.KindConfiguration), "got %v", err)
	assert.Equal(t, "hosts", rep.Error.Stage)
	assert.Contains(t, rep.Error.Message, "ghost.example.com")
	assert.False(t, rep.Changed)
	assert.Empty(t, srv.MutatingCalls())
	_, ok := srv.Service("c1", model.ServiceTypeHDFS)
	assert.False(t, ok)

	rep, err = reconcile(t, srv, hdfsRequest(model.TargetStarted))
	require.NoError(t, err)
	svc, ok := srv.Service("c1", model.ServiceTypeHDFS)
	require.True(t, ok)
	assert.Equal(t, []string{"hdfsFormat", "deployClientConfig", "start"}, svc.Commands)
	assert.Equal(t, "STARTED", rep.State)
}

func TestReconcile_ControlPlaneErrorStatus(t *testing.T) {
	srv := newCluster(t)
	srv.FailNext("/clusters/c1", 1)

	rep, err := reconcile(t, srv, hdfsRequest(model.TargetStarted))
	require.Error(t, err)
	require.NotNil(t, rep.Error)
	assert.Equal(t, "cluster", rep.Error.Stage)
	assert.Contains(t, rep.Error.Message, "control plane returned status 500")
	assert.NotContains(t, rep.Error.Message, "unreachable")
	assert.Empty(t, srv.MutatingCalls())
}

func firstCall(calls []cmtest.Call, match func(cmtest.Call) bool) int {
	for i, c := range calls {
		if match(c) {
			return i
		}
	}
	return -1
}

func lastCall(calls []cmtest.Call, match func(cmtest.Call) bool) int {
	for i := len(calls) - 1; i >= 0; i-- {
		if match(calls[i]) {
			return i
		}
	}
	return -1
}

func TestReconcile_SettleDelayBeforeInitCommands(t *testing.T) {
	const delay = 100 * time.Millisecond
	srv := newCluster(t)

	_, err := reconcileWith(t, srv, Options{SettleDelay: delay, Logger: zerolog.Nop()}, hdfsRequest(model.TargetStarted))
	require.NoError(t, err)

	calls := srv.Calls()
	lastRole := lastCall(calls, func(c cmtest.Call) bool {
		return c.Method == http.MethodPost && strings.HasSuffix(c.Path, "/roles")
	})
	firstCommand := firstCall(calls, func(c cmtest.Call) bool {
		return c.Method == http.MethodPost &&
			(strings.Contains(c.Path, "/roleCommands/") || strings.Contains(c.Path, "/commands/"))
	})
	require.NotEqual(t, -1, lastRole)
	require.NotEqual(t, -1, firstCommand)
	assert.Less(t, lastRole, firstCommand)
	assert.Contains(t, calls[firstCommand].Path, "/roleCommands/hdfsFormat")
	assert.GreaterOrEqual(t, calls[firstCommand].At.Sub(calls[lastRole].At), delay)
}

func TestReconcile_SettleDelayCancelled(t *testing.T) {
	srv := newCluster(t)
	req := hdfsRequest(model.TargetStarted)
	req.Endpoint = srv.Endpoint()
	client := controlplane.NewClient(req.Endpoint, zerolog.Nop())
	client.PollInterval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	rep, err := New(client, Options{SettleDelay: time.Hour, Logger: zerolog.Nop()}).Reconcile(ctx, req)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Minute)
	assert.True(t, svcerr.Is(err, svcerr.KindCreationFailed))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "settle", rep.Error.Stage)

	svc, ok := srv.Service("c1", model.ServiceTypeHDFS)
	require.True(t, ok)
	assert.Empty(t, svc.Commands)
}

func TestSettle(t *testing.T) {
	withInit := catalog.Descriptor{
		Type:         model.ServiceTypeHDFS,
		InitCommands: []catalog.InitCommand{{Name: "hdfsFormat"}},
	}
	newRun := func(desc catalog.Descriptor, delay time.Duration) *run {
		return &run{
			Reconciler: New(nil, Options{SettleDelay: delay}),
			plan:       &plan{desc: desc},
			logger:     zerolog.Nop(),
		}
	}

	t.Run("skipped without init commands", func(t *testing.T) {
		start := time.Now()
		require.NoError(t, newRun(catalog.Descriptor{Type: model.ServiceTypeImpala}, time.Hour).settle(context.Background()))
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("skipped when zero", func(t *testing.T) {
		require.NoError(t, newRun(withInit, 0).settle(context.Background()))
	})

	t.Run("waits the delay", func(t *testing.T) {
		start := time.Now()
		require.NoError(t, newRun(withInit, 30*time.Millisecond).settle(context.Background()))
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("aborts on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := newRun(withInit, time.Hour).settle(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, "settle", svcerr.ToReport(err).Stage)
	})
}
