package cluster

import (
    "os"
    "strconv"
)

// Environment variable names form the contract with the provisioning layer.
const (
    EnvNodeHead = "RUNTIME_NODE_HEAD"
    EnvNodeIP = "RUNTIME_NODE_IP"
    EnvHeadAddress = "RUNTIME_HEAD_ADDRESS"
    EnvNodeSeqID = "RUNTIME_NODE_SEQ_ID"
)

// EnvironmentFromOS reads the provisioner-supplied environment variables
// into a NodeEnvironment. This is the only place the library touches the
// process environment; everything downstream works on the returned struct.
func EnvironmentFromOS() NodeEnvironment {
    var env NodeEnvironment

    if v := os.Getenv(EnvNodeHead); v == "true" || v == "1" {
        env.Head = true
    }

    env.IPAddress = os.Getenv(EnvNodeIP)
    env.HeadAddress = os.Getenv(EnvHeadAddress)

    if v := os.Getenv(EnvNodeSeqID); v != "" {
        if seqID, err := strconv.Atoi(v); err == nil {
            env.SequenceID = seqID
        }
    }

    return env
}
