package catalog

import (
	"time"

	"github.com/edvin/svcctl/internal/model"
)

const (
	formatTimeout          = 1800 * time.Second
	metastoreTablesTimeout = 60 * time.Second
	defaultCommandTimeout  = 300 * time.Second
)

const deployClientConfig = "deployClientConfig"

func init() {
	register(Descriptor{
		Type:   model.ServiceTypeHDFS,
		Prefix: "hdfs",
		Dependencies: []Dependency{
			{Type: model.ServiceTypeZooKeeper, ConfigKey: "zookeeper_service"},
		},
		Config: []ConfigParam{
			{Key: "replication", Name: "dfs_replication", Default: "3"},
		},
		RoleGroups: []RoleGroup{
			{Kind: "NAMENODE", Tag: "nn", HostsKey: "namenode", Singleton: true, Config: []ConfigParam{
				{Key: "namenode_dirs", Name: "dfs_name_dir_list", Default: "/dfs/nn"},
			}},
			{Kind: "SECONDARYNAMENODE", Tag: "snn", HostsKey: "secondarynamenode", Singleton: true, Config: []ConfigParam{
				{Key: "checkpoint_dirs", Name: "fs_checkpoint_dir_list", Default: "/dfs/snn"},
			}},
			{Kind: "DATANODE", Tag: "dn", HostsKey: "datanodes", Config: []ConfigParam{
				{Key: "datanode_dirs", Name: "dfs_data_dir_list", Default: "/dfs/dn"},
			}},
			{Kind: "GATEWAY", Tag: "gw", HostsKey: "gateways", Optional: true},
		},
		InitCommands: []InitCommand{
			{Name: "hdfsFormat", RoleKind: "NAMENODE", Timeout: formatTimeout},
			{Name: deployClientConfig, Timeout: defaultCommandTimeout},
		},
	})

	register(Descriptor{
		Type:   model.ServiceTypeHive,
		Prefix: "hive",
		Dependencies: []Dependency{
			{Type: model.ServiceTypeHDFS, ConfigKey: "hdfs_service", Required: true},
			{Type: model.ServiceTypeZooKeeper, ConfigKey: "zookeeper_service"},
			{Type: model.ServiceTypeYARN, ConfigKey: "mapreduce_yarn_service"},
		},
		Config: []ConfigParam{
			{Key: "metastore_db_type", Name: "hive_metastore_database_type", Default: "postgresql"},
			{Key: "metastore_db_host", Name: "hive_metastore_database_host", Required: true},
			{Key: "metastore_db_port", Name: "hive_metastore_database_port", Default: "5432"},
			{Key: "metastore_db_name", Name: "hive_metastore_database_name", Default: "metastore"},
			{Key: "metastore_db_user", Name: "hive_metastore_database_user", Default: "hive"},
			{Key: "metastore_db_password", Name: "hive_metastore_database_password", Required: true},
		},
		RoleGroups: []RoleGroup{
			{Kind: "HIVEMETASTORE", Tag: "hms", HostsKey: "metastore", Singleton: true},
			{Kind: "HIVESERVER2", Tag: "hs2", HostsKey: "hiveservers"},
			{Kind: "GATEWAY", Tag: "gw", HostsKey: "gateways", Optional: true},
		},
		InitCommands: []InitCommand{
			{Name: "hiveCreateMetastoreDatabaseTables", Timeout: metastoreTablesTimeout},
			{Name: "hiveCreateHiveWarehouse", Timeout: defaultCommandTimeout},
			{Name: "hiveCreateHiveUserDir", Timeout: defaultCommandTimeout},
			{Name: deployClientConfig, Timeout: defaultCommandTimeout},
		},
	})

	register(Descriptor{
		Type:   model.ServiceTypeImpala,
		Prefix: "impala",
		Dependencies: []Dependency{
			{Type: model.ServiceTypeHDFS, ConfigKey: "hdfs_service", Required: true},
			{Type: model.ServiceTypeHive, ConfigKey: "hive_service", Required: true},
			{Type: model.ServiceTypeHBase, ConfigKey: "hbase_service"},
		},
		RoleGroups: []RoleGroup{
			{Kind: "STATESTORE", Tag: "ss", HostsKey: "statestore", Singleton: true},
			{Kind: "CATALOGSERVER", Tag: "cs", HostsKey: "catalogserver", Singleton: true},
			{Kind: "IMPALAD", Tag: "impalad", HostsKey: "impalads", Config: []ConfigParam{
				{Key: "scratch_dirs", Name: "scratch_dirs", Default: "/impala/impalad"},
			}},
		},
		InitCommands: []InitCommand{
			{Name: "impalaCreateUserDir", Timeout: defaultCommandTimeout},
		},
	})

	register(Descriptor{
		Type:   model.ServiceTypeSolr,
		Prefix: "solr",
		Dependencies: []Dependency{
			{Type: model.ServiceTypeHDFS, ConfigKey: "hdfs_service", Required: true},
			{Type: model.ServiceTypeZooKeeper, ConfigKey: "zookeeper_service", Required: true},
		},
		Config: []ConfigParam{
			{Key: "hdfs_data_dir", Name: "hdfs_data_dir", Default: "/solr"},
			{Key: "zookeeper_znode", Name: "zookeeper_znode", Default: "/solr"},
		},
		RoleGroups: []RoleGroup{
			{Kind: "SOLR_SERVER", Tag: "solr", HostsKey: "solr_servers"},
			{Kind: "GATEWAY", Tag: "gw", HostsKey: "gateways", Optional: true},
		},
		InitCommands: []InitCommand{
			{Name: "initSolr", Timeout: defaultCommandTimeout},
			{Name: "createSolrHdfsHomeDir", Timeout: defaultCommandTimeout},
			{Name: deployClientConfig, Timeout: defaultCommandTimeout},
		},
	})
}
