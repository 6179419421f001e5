package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/svcerr"
)

func TestResolve_CaseInsensitiveOrder(t *testing.T) {
	got, err := Resolve("b.host,A.host", "hdfs-dn", false)
	require.NoError(t, err)

	assert.Equal(t, []model.Placement{
		{Ordinal: 1, Host: "A.host", RoleName: "hdfs-dn-1"},
		{Ordinal: 2, Host: "b.host", RoleName: "hdfs-dn-2"},
	}, got)
}

func TestResolve_PermutationsAgree(t *testing.T) {
	specs := []string{
		"node3.example.com,Node1.example.com,node2.example.com",
		"node2.example.com, node3.example.com ,Node1.example.com",
		"Node1.example.com,node2.example.com,node3.example.com",
		" node3.example.com,node2.example.com,Node1.example.com,",
	}

	want, err := Resolve(specs[0], "solr-solr", false)
	require.NoError(t, err)
	for _, spec := range specs[1:] {
		got, err := Resolve(spec, "solr-solr", false)
		require.NoError(t, err)
		assert.Equal(t, want, got, "spec %q", spec)
	}
	assert.Equal(t, "Node1.example.com", want[0].Host)
}

func TestResolve_Singleton(t *testing.T) {
	got, err := Resolve(" nn1.example.com ", "hdfs-nn", true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hdfs-nn", got[0].RoleName)
	assert.Equal(t, "nn1.example.com", got[0].Host)

	_, err = Resolve("a,b", "hdfs-nn", true)
	assert.True(t, svcerr.Is(err, svcerr.KindConfiguration))
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"only commas", " , ,"},
		{"duplicate ignoring case", "a.host,A.HOST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.spec, "impala-impalad", false)
			require.Error(t, err)
			assert.Equal(t, svcerr.KindConfiguration, svcerr.KindOf(err))
		})
	}
}

func TestSplit(t *testing.T) {
	hosts, err := Split("c,B,a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "B", "c"}, hosts)
}
