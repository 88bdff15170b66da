package conf

import (
    "github.com/google/uuid"
)

type ServiceKind string

const (
    ServicePostgres ServiceKind = "postgres"
    ServiceMySQL ServiceKind = "mysql"
    ServiceZooKeeper ServiceKind = "zookeeper"
    ServiceHAProxy ServiceKind = "haproxy"
    ServiceNginx ServiceKind = "nginx"
)

type ServiceClass int

const (
    ClassDatabase ServiceClass = iota
    ClassCoordinator
    ClassProxy
)

// Mode selects one of the mutually exclusive configuration variants of a
// service. Modes are not composable: the builder picks exactly one template
// per mode.
type Mode string

const (
    ModeStandalone Mode = "standalone"
    ModeReplication Mode = "replication"
    ModeGroupReplication Mode = "group_replication"
    ModeCluster Mode = "cluster"
    ModeStatic Mode = "static"
    ModeDynamic Mode = "dynamic"
    ModeDNS Mode = "dns"
)

const (
    PostgresPortDefault = 5432
    MySQLPortDefault = 3306
    GroupReplicationPortDefault = 33061
    ZooKeeperPortDefault = 2181
    ZooKeeperQuorumPort = 2888
    ZooKeeperElectionPort = 3888
    ProxyPortDefault = 80

    AdminUserDefault = "clusteradmin"
    ReplicationUserDefault = "repl_user"
)

var serviceClasses = map[ServiceKind]ServiceClass{
    ServicePostgres: ClassDatabase,
    ServiceMySQL: ClassDatabase,
    ServiceZooKeeper: ClassCoordinator,
    ServiceHAProxy: ClassProxy,
    ServiceNginx: ClassProxy,
}

var serviceModes = map[ServiceKind][]Mode{
    ServicePostgres: { ModeStandalone, ModeReplication },
    ServiceMySQL: { ModeStandalone, ModeReplication, ModeGroupReplication },
    ServiceZooKeeper: { ModeStandalone, ModeCluster },
    ServiceHAProxy: { ModeStatic, ModeDynamic, ModeDNS },
    ServiceNginx: { ModeStatic, ModeDynamic, ModeDNS },
}

func (serviceKind ServiceKind) Known() bool {
    _, ok := serviceClasses[serviceKind]

    return ok
}

func (serviceKind ServiceKind) Class() ServiceClass {
    return serviceClasses[serviceKind]
}

func (serviceKind ServiceKind) SupportsMode(mode Mode) bool {
    for _, supported := range serviceModes[serviceKind] {
        if supported == mode {
            return true
        }
    }

    return false
}

func (serviceKind ServiceKind) DefaultPort() int {
    switch serviceKind {
    case ServicePostgres:
        return PostgresPortDefault
    case ServiceMySQL:
        return MySQLPortDefault
    case ServiceZooKeeper:
        return ZooKeeperPortDefault
    default:
        return ProxyPortDefault
    }
}

// ServiceParams are the per-service tunables supplied by the provisioning
// layer. Zero values fall back to the shipped defaults.
type ServiceParams struct {
    Port int
    AdminUser string
    AdminPassword string
    ReplicationUser string
    ReplicationPassword string
    GroupReplicationName string
    GroupReplicationPort int
    SynchronousMode string
    SynchronousNum int
    Workspace string
    ClusterName string
    BackendPort int
    BackendServiceName string
}

// GroupReplicationName derives a stable group name from the workspace and
// cluster names when no explicit name is configured. Group replication
// requires the name to be a UUID, and deriving it keeps every node of the
// cluster in agreement without coordination.
func GroupReplicationName(workspace string, clusterName string) string {
    return uuid.NewMD5(uuid.NameSpaceOID, []byte(workspace+clusterName)).String()
}
