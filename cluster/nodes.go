package cluster

import (
    "sort"

    . "github.com/clustertools/runtimectl/errors"
    . "github.com/clustertools/runtimectl/logging"
)

// NodeInfo describes one member of the cluster as published by the
// provisioning layer. QuorumID groups nodes that participate in the same
// quorum for services that form one.
type NodeInfo struct {
    NodeID string `json:"node_id" yaml:"nodeID"`
    IPAddress string `json:"node_ip" yaml:"ip"`
    SequenceID int `json:"node_seq_id" yaml:"sequenceID"`
    QuorumID string `json:"quorum_id,omitempty" yaml:"quorumID,omitempty"`
}

// SortNodesBySeqID orders the published node set by sequence id. Rendering
// an ensemble or a backend list requires a stable order so that repeated
// renders on an unchanged cluster produce identical output. Every entry must
// carry an ip and a sequence id.
func SortNodesBySeqID(nodes []NodeInfo) ([]NodeInfo, error) {
    sorted := make([]NodeInfo, 0, len(nodes))

    for _, nodeInfo := range nodes {
        if nodeInfo.IPAddress == "" {
            Log.Errorf("Node %s is missing its ip address", nodeInfo.NodeID)

            return nil, EMissingRequiredValue
        }

        if nodeInfo.SequenceID == 0 {
            Log.Errorf("Node %s is missing its sequence id", nodeInfo.NodeID)

            return nil, EMissingRequiredValue
        }

        sorted = append(sorted, nodeInfo)
    }

    sort.SliceStable(sorted, func(i, j int) bool {
        return sorted[i].SequenceID < sorted[j].SequenceID
    })

    return sorted, nil
}
