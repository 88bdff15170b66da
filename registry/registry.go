package registry

import (
    "crypto/rand"
    "encoding/binary"
    "encoding/json"

    "github.com/syndtr/goleveldb/leveldb"
    "github.com/syndtr/goleveldb/leveldb/opt"

    . "github.com/clustertools/runtimectl/cluster"
    . "github.com/clustertools/runtimectl/errors"
    . "github.com/clustertools/runtimectl/logging"
)

// Registry is the node-local store of the snapshots the provisioning layer
// publishes: the cluster's node set and the per-service runtime
// configuration. The provisioner pushes these onto each node; the
// configuration builder reads the node set from here when it renders
// ensembles and backend lists.
type Registry struct {
    db *leveldb.DB
}

var keyNodesInfo = []byte("nodes-info")

func runtimeConfigKey(service string) []byte {
    return []byte("runtime-config." + service)
}

type nodesInfoSnapshot struct {
    SnapshotID uint64 `json:"snapshot_id"`
    Nodes []NodeInfo `json:"nodes"`
}

func Open(path string) (*Registry, error) {
    db, err := leveldb.OpenFile(path, &opt.Options{ })

    if err != nil {
        Log.Errorf("Unable to open registry at %s: %v", path, err)

        return nil, EStorage
    }

    return &Registry{ db: db }, nil
}

func (registry *Registry) Close() {
    registry.db.Close()
}

// PutNodesInfo replaces the stored node set and returns the new snapshot id.
func (registry *Registry) PutNodesInfo(nodes []NodeInfo) (uint64, error) {
    snapshot := nodesInfoSnapshot{
        SnapshotID: snapshotID(),
        Nodes: nodes,
    }

    encoded, err := json.Marshal(snapshot)

    if err != nil {
        return 0, err
    }

    if err := registry.db.Put(keyNodesInfo, encoded, &opt.WriteOptions{ Sync: true }); err != nil {
        Log.Errorf("Unable to store nodes info snapshot: %v", err)

        return 0, EStorage
    }

    return snapshot.SnapshotID, nil
}

// NodesInfo returns the stored node set and its snapshot id. A registry
// that has never received a snapshot returns an empty set.
func (registry *Registry) NodesInfo() ([]NodeInfo, uint64, error) {
    encoded, err := registry.db.Get(keyNodesInfo, nil)

    if err != nil {
        if err == leveldb.ErrNotFound {
            return nil, 0, nil
        }

        Log.Errorf("Unable to read nodes info snapshot: %v", err)

        return nil, 0, EStorage
    }

    var snapshot nodesInfoSnapshot

    if err := json.Unmarshal(encoded, &snapshot); err != nil {
        return nil, 0, err
    }

    return snapshot.Nodes, snapshot.SnapshotID, nil
}

// PutRuntimeConfig stores the opaque runtime configuration document the
// provisioner published for one service.
func (registry *Registry) PutRuntimeConfig(service string, contents []byte) error {
    if err := registry.db.Put(runtimeConfigKey(service), contents, &opt.WriteOptions{ Sync: true }); err != nil {
        Log.Errorf("Unable to store runtime config for %s: %v", service, err)

        return EStorage
    }

    return nil
}

func (registry *Registry) RuntimeConfig(service string) ([]byte, error) {
    contents, err := registry.db.Get(runtimeConfigKey(service), nil)

    if err != nil {
        if err == leveldb.ErrNotFound {
            return nil, nil
        }

        Log.Errorf("Unable to read runtime config for %s: %v", service, err)

        return nil, EStorage
    }

    return contents, nil
}

func snapshotID() uint64 {
    randomBytes := make([]byte, 8)
    rand.Read(randomBytes)

    return binary.BigEndian.Uint64(randomBytes[:8])
}
