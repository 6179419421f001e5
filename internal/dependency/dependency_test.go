package dependency

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/svcctl/internal/catalog"
	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/svcerr"
)

type mockFinder struct {
	mock.Mock
}

func (m *mockFinder) FindService(ctx context.Context, cluster string, t model.ServiceType) (*model.Service, error) {
	args := m.Called(ctx, cluster, t)
	svc, _ := args.Get(0).(*model.Service)
	return svc, args.Error(1)
}

func hiveDeps(t *testing.T) []catalog.Dependency {
	t.Helper()
	d, ok := catalog.Lookup(model.ServiceTypeHive)
	require.True(t, ok)
	return d.Dependencies
}

func TestResolve_AllPresent(t *testing.T) {
	f := new(mockFinder)
	f.On("FindService", mock.Anything, "prod", model.ServiceTypeHDFS).Return(&model.Service{Name: "hdfs-main"}, nil)
	f.On("FindService", mock.Anything, "prod", model.ServiceTypeZooKeeper).Return(&model.Service{Name: "zk"}, nil)
	f.On("FindService", mock.Anything, "prod", model.ServiceTypeYARN).Return(&model.Service{Name: "yarn"}, nil)

	cfg, err := NewResolver(f).Resolve(context.Background(), "prod", hiveDeps(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"hdfs_service":           "hdfs-main",
		"zookeeper_service":      "zk",
		"mapreduce_yarn_service": "yarn",
	}, cfg)
	f.AssertExpectations(t)
}

func TestResolve_OptionalMissingIsOmitted(t *testing.T) {
	f := new(mockFinder)
	f.On("FindService", mock.Anything, "prod", model.ServiceTypeHDFS).Return(&model.Service{Name: "hdfs"}, nil)
	f.On("FindService", mock.Anything, "prod", model.ServiceTypeZooKeeper).Return(nil, nil)
	f.On("FindService", mock.Anything, "prod", model.ServiceTypeYARN).Return(nil, nil)

	cfg, err := NewResolver(f).Resolve(context.Background(), "prod", hiveDeps(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"hdfs_service": "hdfs"}, cfg)
}

func TestResolve_RequiredMissing(t *testing.T) {
	f := new(mockFinder)
	f.On("FindService", mock.Anything, "prod", model.ServiceTypeHDFS).Return(nil, nil)

	_, err := NewResolver(f).Resolve(context.Background(), "prod", hiveDeps(t))
	require.Error(t, err)
	assert.True(t, svcerr.Is(err, svcerr.KindMissingDependency))
	assert.Contains(t, err.Error(), "HDFS")
	f.AssertNotCalled(t, "FindService", mock.Anything, "prod", model.ServiceTypeZooKeeper)
}

func TestResolve_LookupErrors(t *testing.T) {
	t.Run("untyped error becomes connectivity", func(t *testing.T) {
		f := new(mockFinder)
		f.On("FindService", mock.Anything, "prod", model.ServiceTypeHDFS).Return(nil, errors.New("status 500"))

		_, err := NewResolver(f).Resolve(context.Background(), "prod", hiveDeps(t))
		assert.True(t, svcerr.IsConnectivity(err))
	})

	t.Run("typed error passes through", func(t *testing.T) {
		typed := svcerr.Connectivity("GET /clusters/prod/services", errors.New("refused"))
		f := new(mockFinder)
		f.On("FindService", mock.Anything, "prod", model.ServiceTypeHDFS).Return(nil, typed)

		_, err := NewResolver(f).Resolve(context.Background(), "prod", hiveDeps(t))
		assert.Same(t, typed, err)
	})
}

func TestResolve_NoDependencies(t *testing.T) {
	f := new(mockFinder)
	cfg, err := NewResolver(f).Resolve(context.Background(), "prod", nil)
	require.NoError(t, err)
	assert.Empty(t, cfg)
	f.AssertNotCalled(t, "FindService")
}
