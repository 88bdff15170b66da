package cluster

import (
    "net"

    . "github.com/clustertools/runtimectl/errors"
    . "github.com/clustertools/runtimectl/logging"
)

// NodeEnvironment carries the per-node values handed in by the external
// provisioning layer. It replaces the environment-variable plumbing the
// provisioner uses internally: the CLI edge converts the environment into
// this struct once and later stages only ever see the struct.
type NodeEnvironment struct {
    Head bool
    IPAddress string
    HeadAddress string
    SequenceID int
}

// Resolve determines the node's identity from its environment. The IP
// address comes from an explicit override when present, otherwise from the
// node's primary network interface. The head address is deliberately not
// validated here; see ClusterTopology.RequireHeadAddress.
func Resolve(env NodeEnvironment) (NodeIdentity, error) {
    ipAddress := env.IPAddress

    if ipAddress == "" {
        ipAddress = primaryInterfaceAddress()

        if ipAddress == "" {
            Log.Errorf("Local node has no explicit IP address and no usable network interface")

            return NodeIdentity{}, EMissingRequiredValue
        }
    }

    role := RoleWorker

    if env.Head {
        role = RoleHead
    }

    return NodeIdentity{
        Role: role,
        SequenceID: env.SequenceID,
        IPAddress: ipAddress,
    }, nil
}

// primaryInterfaceAddress returns the IPv4 address of the first interface
// that is up and not a loopback.
func primaryInterfaceAddress() string {
    interfaces, err := net.Interfaces()

    if err != nil {
        return ""
    }

    for _, iface := range interfaces {
        if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
            continue
        }

        addrs, err := iface.Addrs()

        if err != nil {
            continue
        }

        for _, addr := range addrs {
            var ip net.IP

            switch a := addr.(type) {
            case *net.IPNet:
                ip = a.IP
            case *net.IPAddr:
                ip = a.IP
            }

            if ip == nil || ip.IsLoopback() {
                continue
            }

            if ip.To4() != nil {
                return ip.String()
            }
        }
    }

    return ""
}
