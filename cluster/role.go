package cluster

import (
    . "github.com/clustertools/runtimectl/errors"
)

type Role int

const (
    RoleHead Role = iota
    RoleWorker
)

func (role Role) String() string {
    switch role {
    case RoleHead:
        return "head"
    case RoleWorker:
        return "worker"
    default:
        return "unknown"
    }
}

type ClusterMode int

const (
    ClusterModeNone ClusterMode = iota
    ClusterModeReplication
    ClusterModeGroupReplication
    ClusterModeCluster
)

func (clusterMode ClusterMode) String() string {
    switch clusterMode {
    case ClusterModeNone:
        return "none"
    case ClusterModeReplication:
        return "replication"
    case ClusterModeGroupReplication:
        return "group_replication"
    case ClusterModeCluster:
        return "cluster"
    default:
        return "unknown"
    }
}

func ParseClusterMode(s string) (ClusterMode, error) {
    switch s {
    case "", "none":
        return ClusterModeNone, nil
    case "replication":
        return ClusterModeReplication, nil
    case "group_replication":
        return ClusterModeGroupReplication, nil
    case "cluster":
        return ClusterModeCluster, nil
    default:
        return ClusterModeNone, EMissingRequiredValue
    }
}

// NodeIdentity is assigned once when the node starts and is immutable for
// the node's lifetime. SequenceID is allocated by the external provisioner,
// which guarantees cluster-wide uniqueness; zero means unassigned.
type NodeIdentity struct {
    Role Role
    SequenceID int
    IPAddress string
}

// ClusterTopology is supplied by the external provisioning layer and is
// read-only to this library.
type ClusterTopology struct {
    HeadAddress string
    ClusterMode ClusterMode
    NodeCountHint int
}

// RequireHeadAddress is the deferred head address check. Resolution does not
// fail eagerly on a missing head address because head nodes and standalone
// configurations never need one; stages that do need it call this.
func (topology ClusterTopology) RequireHeadAddress() (string, error) {
    if topology.HeadAddress == "" {
        return "", EMissingHeadAddress
    }

    return topology.HeadAddress, nil
}
