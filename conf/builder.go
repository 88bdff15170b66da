package conf

import (
    "fmt"
    "io/ioutil"
    "path/filepath"
    "strconv"
    "strings"

    . "github.com/clustertools/runtimectl/cluster"
    . "github.com/clustertools/runtimectl/errors"
    . "github.com/clustertools/runtimectl/logging"
    "github.com/clustertools/runtimectl/render"
)

// Builder composes a node's identity, its data directory and the cluster
// topology into the materialized configuration file set for one service.
// Build performs a two-phase render: phase one substitutes identity and
// topology values into the template selected for the mode; phase two, for
// proxy services in dynamic mode, additionally emits a runtime template
// artifact whose backend list marker is left unbound for the external
// updater to re-render with a live server list.
type Builder struct {
    ServiceKind ServiceKind
    Mode Mode
    Identity NodeIdentity
    Topology ClusterTopology
    Params ServiceParams
    Nodes []NodeInfo
    DataDir string
    TemplateDir string
}

// Output file names are dictated by the managed binaries.
var configFileNames = map[ServiceKind]string{
    ServicePostgres: "postgresql.conf",
    ServiceMySQL: "my.cnf",
    ServiceZooKeeper: "zoo.cfg",
    ServiceHAProxy: "haproxy.cfg",
    ServiceNginx: "nginx.conf",
}

const BackendServersMarker = "backend_servers"

func (builder *Builder) Build() (*ConfigFileSet, error) {
    if !builder.ServiceKind.Known() {
        Log.Errorf("Service kind %s is not known", builder.ServiceKind)

        return nil, EUnsupportedService
    }

    if !builder.ServiceKind.SupportsMode(builder.Mode) {
        Log.Errorf("Service %s does not support mode %s", builder.ServiceKind, builder.Mode)

        return nil, EUnsupportedMode
    }

    templateText, err := builder.readTemplate()

    if err != nil {
        return nil, err
    }

    bindings, err := builder.bindings()

    if err != nil {
        return nil, err
    }

    rendered := render.Render(templateText, bindings)
    configFileSet := &ConfigFileSet{ }
    fileName := configFileNames[builder.ServiceKind]

    configFileSet.Add(fileName, rendered, false)

    if builder.ServiceKind.Class() == ClassProxy && builder.Mode == ModeDynamic {
        // The runtime template keeps the backend list marker unbound. It is
        // rendered from the same binding set minus the backend servers so
        // every other value is already fixed.
        templateBindings := make(render.Bindings)

        for key, value := range bindings {
            if key != BackendServersMarker {
                templateBindings[key] = value
            }
        }

        configFileSet.Add(fileName+".template", render.Render(templateText, templateBindings), true)
    }

    return configFileSet, nil
}

func (builder *Builder) readTemplate() (string, error) {
    templatePath := filepath.Join(builder.TemplateDir, string(builder.ServiceKind), string(builder.Mode)+".conf")
    templateText, err := ioutil.ReadFile(templatePath)

    if err != nil {
        Log.Errorf("No template for service %s mode %s at %s", builder.ServiceKind, builder.Mode, templatePath)

        return "", EUnsupportedMode
    }

    return string(templateText), nil
}

// bindings assembles the phase one binding set and enforces the values the
// selected mode requires.
func (builder *Builder) bindings() (render.Bindings, error) {
    params := builder.Params
    port := params.Port

    if port == 0 {
        port = builder.ServiceKind.DefaultPort()
    }

    adminUser := params.AdminUser

    if adminUser == "" {
        adminUser = AdminUserDefault
    }

    replicationUser := params.ReplicationUser

    if replicationUser == "" {
        replicationUser = ReplicationUserDefault
    }

    bindings := render.Bindings{
        "node_ip": builder.Identity.IPAddress,
        "bind_address": builder.Identity.IPAddress,
        "port": strconv.Itoa(port),
        "data_dir": builder.DataDir,
        "cluster_size": strconv.Itoa(builder.Topology.NodeCountHint),
        "admin_user": adminUser,
        "admin_password": params.AdminPassword,
        "replication_user": replicationUser,
        "replication_password": params.ReplicationPassword,
    }

    if builder.Topology.HeadAddress != "" {
        bindings["head_address"] = builder.Topology.HeadAddress
    }

    switch builder.Mode {
    case ModeReplication, ModeGroupReplication:
        if err := builder.bindReplication(bindings, port); err != nil {
            return nil, err
        }
    case ModeCluster:
        if err := builder.bindEnsemble(bindings); err != nil {
            return nil, err
        }
    case ModeStatic:
        if err := builder.bindBackendServers(bindings); err != nil {
            return nil, err
        }
    case ModeDynamic:
        if err := builder.bindBackendServers(bindings); err != nil {
            return nil, err
        }
    case ModeDNS:
        if params.BackendServiceName == "" {
            Log.Errorf("Mode %s requires a backend service name for discovery", builder.Mode)

            return nil, EMissingRequiredBinding
        }

        bindings["backend_service_name"] = params.BackendServiceName
    }

    return bindings, nil
}

func (builder *Builder) bindReplication(bindings render.Bindings, port int) error {
    // The sequence id doubles as the replication server id, which must be
    // unique cluster-wide. It is assigned externally before configuration.
    if builder.Identity.SequenceID <= 0 {
        Log.Errorf("Mode %s requires a sequence id and none was assigned", builder.Mode)

        return EMissingRequiredBinding
    }

    bindings["server_id"] = strconv.Itoa(builder.Identity.SequenceID)

    if builder.Identity.Role == RoleWorker {
        headAddress, err := builder.Topology.RequireHeadAddress()

        if err != nil {
            Log.Errorf("Mode %s on a worker requires the head address", builder.Mode)

            return err
        }

        bindings["primary_address"] = headAddress
    } else {
        bindings["primary_address"] = builder.Identity.IPAddress
    }

    if builder.Params.SynchronousMode != "" {
        bindings["synchronous_mode"] = builder.Params.SynchronousMode
        bindings["synchronous_num"] = strconv.Itoa(builder.Params.SynchronousNum)
    }

    if builder.Mode == ModeGroupReplication {
        groupName := builder.Params.GroupReplicationName

        if groupName == "" {
            groupName = GroupReplicationName(builder.Params.Workspace, builder.Params.ClusterName)
        }

        groupPort := builder.Params.GroupReplicationPort

        if groupPort == 0 {
            groupPort = GroupReplicationPortDefault
        }

        bindings["group_name"] = groupName
        bindings["group_port"] = strconv.Itoa(groupPort)

        seeds, err := builder.groupSeeds(groupPort)

        if err != nil {
            return err
        }

        bindings["group_seeds"] = seeds
    }

    return nil
}

// groupSeeds lists every published node's group replication endpoint in
// sequence id order. When the node set has not been published yet the head
// address alone seeds the group.
func (builder *Builder) groupSeeds(groupPort int) (string, error) {
    if len(builder.Nodes) == 0 {
        seed, err := builder.Topology.RequireHeadAddress()

        if builder.Identity.Role == RoleHead {
            seed = builder.Identity.IPAddress
        } else if err != nil {
            return "", err
        }

        return fmt.Sprintf("%s:%d", seed, groupPort), nil
    }

    sorted, err := SortNodesBySeqID(builder.Nodes)

    if err != nil {
        return "", err
    }

    seeds := make([]string, 0, len(sorted))

    for _, nodeInfo := range sorted {
        seeds = append(seeds, fmt.Sprintf("%s:%d", nodeInfo.IPAddress, groupPort))
    }

    return strings.Join(seeds, ","), nil
}

func (builder *Builder) bindEnsemble(bindings render.Bindings) error {
    if len(builder.Nodes) == 0 {
        Log.Errorf("Mode %s requires the published node set and none is available", builder.Mode)

        return EMissingRequiredBinding
    }

    sorted, err := SortNodesBySeqID(builder.Nodes)

    if err != nil {
        return err
    }

    lines := make([]string, 0, len(sorted))

    for _, nodeInfo := range sorted {
        lines = append(lines, fmt.Sprintf("server.%d=%s:%d:%d", nodeInfo.SequenceID, nodeInfo.IPAddress, ZooKeeperQuorumPort, ZooKeeperElectionPort))
    }

    bindings["ensemble"] = strings.Join(lines, "\n")

    return nil
}

func (builder *Builder) bindBackendServers(bindings render.Bindings) error {
    if len(builder.Nodes) == 0 {
        Log.Errorf("Mode %s requires the published node set and none is available", builder.Mode)

        return EMissingRequiredBinding
    }

    sorted, err := SortNodesBySeqID(builder.Nodes)

    if err != nil {
        return err
    }

    backendPort := builder.Params.BackendPort

    if backendPort == 0 {
        backendPort = builder.ServiceKind.DefaultPort()
    }

    lines := make([]string, 0, len(sorted))

    for i, nodeInfo := range sorted {
        switch builder.ServiceKind {
        case ServiceNginx:
            lines = append(lines, fmt.Sprintf("        server %s:%d;", nodeInfo.IPAddress, backendPort))
        default:
            lines = append(lines, fmt.Sprintf("    server server%d %s:%d check", i+1, nodeInfo.IPAddress, backendPort))
        }
    }

    bindings[BackendServersMarker] = strings.Join(lines, "\n")

    return nil
}
