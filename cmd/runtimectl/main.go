package main

import (
    "context"
    "flag"
    "fmt"
    "os"
    "path/filepath"
    "strconv"

    "github.com/olekukonko/tablewriter"

    "github.com/clustertools/runtimectl/bootstrap"
    "github.com/clustertools/runtimectl/conf"
    "github.com/clustertools/runtimectl/datadir"
    "github.com/clustertools/runtimectl/health"
    "github.com/clustertools/runtimectl/process"
    "github.com/clustertools/runtimectl/registry"

    . "github.com/clustertools/runtimectl/cluster"
    . "github.com/clustertools/runtimectl/errors"
    . "github.com/clustertools/runtimectl/logging"
    . "github.com/clustertools/runtimectl/shared"
    . "github.com/clustertools/runtimectl/version"
)

var templateManifest string =
`# The service section names the managed service and how it should be
# configured on this node.
service:
    # The kind of service this node runs. One of: postgres, mysql,
    # zookeeper, haproxy, nginx
    # **REQUIRED**
    kind: postgres

    # The configuration mode for the service. Which modes are valid depends
    # on the kind: databases support standalone, replication and (mysql
    # only) group_replication; zookeeper supports standalone and cluster;
    # proxies support static, dynamic and dns. Defaults to standalone
    # behavior when omitted for a database.
    mode: replication

    # The port the service listens on. When omitted the stock default for
    # the kind is used (postgres 5432, mysql 3306, zookeeper 2181).
    port: 5432

    # Credentials for the administrative and replication accounts. The
    # defaults are clusteradmin and repl_user.
    # adminUser: clusteradmin
    # adminPassword: secret
    # replicationUser: repl_user
    # replicationPassword: secret

    # Workspace and cluster names. For mysql group replication these seed
    # the derived group name so every node agrees without coordination.
    workspace: production
    clusterName: main

# Whether this node is the head node of the cluster. Workers must also be
# given the head address below. These four identity fields can be
# overridden per node through the RUNTIME_NODE_HEAD, RUNTIME_NODE_IP,
# RUNTIME_HEAD_ADDRESS and RUNTIME_NODE_SEQ_ID environment variables.
head: false
# nodeIP: 10.0.0.12
headAddress: 10.0.0.10
sequenceID: 2

# The cluster mode describes the overall deployment shape: none,
# replication or group_replication.
clusterMode: replication

# The number of nodes expected in the cluster. Used as a sizing hint when
# rendering configuration.
nodeCount: 3

# Ordered list of data disk mount points. The first one that exists is
# used for the service's data directory; when none is usable the data
# directory falls back under $HOME/runtime/<kind>.
dataDisks:
    - /mnt/disk1
    - /mnt/disk2

# The directory holding the configuration templates, laid out as
# <templateDir>/<kind>/<mode>.conf
# **REQUIRED**
templateDir: /etc/runtimectl/templates

# Where rendered configuration files are written. Defaults to the conf
# directory of the service home when omitted.
# configDir: /etc/postgres

# Where the node-local registry database lives. The registry holds the
# node set published by the provisioning layer; when the nodes list below
# is omitted the registry is consulted instead.
# registryDir: /var/lib/runtimectl/registry

# The port the health endpoint listens on. Defaults to the service port
# plus 10000.
# healthCheckPort: 15432

# The published node set. Each entry needs an ip and a unique, positive
# sequence id.
# nodes:
#     - nodeID: node-1
#       ip: 10.0.0.10
#       sequenceID: 1
#     - nodeID: node-2
#       ip: 10.0.0.11
#       sequenceID: 2

# Lifecycle command lines for the managed service. Arguments may reference
# {%data_dir%} and, for baseCopy, {%primary_address%}; both are substituted
# before the command runs.
commands:
    initStore:
        path: /usr/bin/initdb
        args: ["-D", "{%data_dir%}"]
    startTemporary:
        path: /usr/bin/pg_ctl
        args: ["start", "-D", "{%data_dir%}", "-o", "-c listen_addresses=''"]
    provision:
        - path: /usr/local/bin/provision-users.sh
    stopTemporary:
        path: /usr/bin/pg_ctl
        args: ["stop", "-D", "{%data_dir%}"]
    baseCopy:
        path: /usr/bin/pg_basebackup
        args: ["-h", "{%primary_address%}", "-D", "{%data_dir%}", "-R"]
    start:
        path: /usr/bin/postgres
        args: ["-D", "{%data_dir%}"]
    # commandTimeoutSeconds: 600
`

var usage string =
`Usage: runtimectl <command> <arguments> | -version

Commands:
    configure  Render and install the service configuration for this node
    bootstrap  Initialize the service data store for first start
    start      Start the managed service
    stop       Stop the managed service
    status     Show the service's bootstrap and process state
    health     Serve the node health endpoint
    publish    Publish the manifest's node set into the local registry
    conf       Generate a template node manifest

Use runtimectl help <command> for more usage information about a command.
`

var commandUsage string = "Usage: runtimectl %s <arguments>\n"

func main() {
    configureCommand := flag.NewFlagSet("configure", flag.ExitOnError)
    bootstrapCommand := flag.NewFlagSet("bootstrap", flag.ExitOnError)
    startCommand := flag.NewFlagSet("start", flag.ExitOnError)
    stopCommand := flag.NewFlagSet("stop", flag.ExitOnError)
    statusCommand := flag.NewFlagSet("status", flag.ExitOnError)
    healthCommand := flag.NewFlagSet("health", flag.ExitOnError)
    publishCommand := flag.NewFlagSet("publish", flag.ExitOnError)
    confCommand := flag.NewFlagSet("conf", flag.ExitOnError)
    helpCommand := flag.NewFlagSet("help", flag.ExitOnError)

    configureConfigFile := configureCommand.String("conf", "", "The node manifest file")
    configureHead := configureCommand.Bool("head", false, "Treat this node as the head node regardless of the manifest")

    bootstrapConfigFile := bootstrapCommand.String("conf", "", "The node manifest file")
    bootstrapPromote := bootstrapCommand.Bool("promote", false, "Run the primary initialization path on this worker")

    startConfigFile := startCommand.String("conf", "", "The node manifest file")
    stopConfigFile := stopCommand.String("conf", "", "The node manifest file")
    statusConfigFile := statusCommand.String("conf", "", "The node manifest file")
    healthConfigFile := healthCommand.String("conf", "", "The node manifest file")
    publishConfigFile := publishCommand.String("conf", "", "The node manifest file")

    if len(os.Args) < 2 {
        fmt.Fprintf(os.Stderr, "Error: %s", "No command specified\n\n")
        fmt.Fprintf(os.Stderr, "%s", usage)
        os.Exit(1)
    }

    switch os.Args[1] {
    case "configure":
        configureCommand.Parse(os.Args[2:])
    case "bootstrap":
        bootstrapCommand.Parse(os.Args[2:])
    case "start":
        startCommand.Parse(os.Args[2:])
    case "stop":
        stopCommand.Parse(os.Args[2:])
    case "status":
        statusCommand.Parse(os.Args[2:])
    case "health":
        healthCommand.Parse(os.Args[2:])
    case "publish":
        publishCommand.Parse(os.Args[2:])
    case "conf":
        confCommand.Parse(os.Args[2:])
    case "help":
        helpCommand.Parse(os.Args[2:])
    case "-help":
        fmt.Fprintf(os.Stderr, "%s", usage)
        os.Exit(0)
    case "-version":
        fmt.Fprintf(os.Stdout, "%s\n", RUNTIMECTL_VERSION)
        os.Exit(0)
    default:
        fmt.Fprintf(os.Stderr, "Error: \"%s\" is not a recognized command\n\n", os.Args[1])
        fmt.Fprintf(os.Stderr, "%s", usage)
        os.Exit(1)
    }

    if configureCommand.Parsed() {
        config := loadConfig(*configureConfigFile)

        if *configureHead {
            config.Head = true
        }

        configure(config)
    }

    if bootstrapCommand.Parsed() {
        config := loadConfig(*bootstrapConfigFile)

        if *bootstrapPromote {
            config.PromotedPrimary = true
        }

        bootstrapNode(config)
    }

    if startCommand.Parsed() {
        startService(loadConfig(*startConfigFile))
    }

    if stopCommand.Parsed() {
        stopService(loadConfig(*stopConfigFile))
    }

    if statusCommand.Parsed() {
        showStatus(loadConfig(*statusConfigFile))
    }

    if healthCommand.Parsed() {
        serveHealth(loadConfig(*healthConfigFile))
    }

    if publishCommand.Parsed() {
        publishNodes(loadConfig(*publishConfigFile))
    }

    if confCommand.Parsed() {
        fmt.Fprintf(os.Stderr, "%s", templateManifest)
        os.Exit(0)
    }

    if helpCommand.Parsed() {
        if len(os.Args) < 3 {
            fmt.Fprintf(os.Stderr, "%s", usage)
            os.Exit(1)
        }

        switch os.Args[2] {
        case "configure":
            fmt.Fprintf(os.Stderr, commandUsage, "configure")
            configureCommand.PrintDefaults()
        case "bootstrap":
            fmt.Fprintf(os.Stderr, commandUsage, "bootstrap")
            bootstrapCommand.PrintDefaults()
        case "start":
            fmt.Fprintf(os.Stderr, commandUsage, "start")
            startCommand.PrintDefaults()
        case "stop":
            fmt.Fprintf(os.Stderr, commandUsage, "stop")
            stopCommand.PrintDefaults()
        case "status":
            fmt.Fprintf(os.Stderr, commandUsage, "status")
            statusCommand.PrintDefaults()
        case "health":
            fmt.Fprintf(os.Stderr, commandUsage, "health")
            healthCommand.PrintDefaults()
        case "publish":
            fmt.Fprintf(os.Stderr, commandUsage, "publish")
            publishCommand.PrintDefaults()
        case "conf":
            fmt.Fprintf(os.Stderr, "Usage: runtimectl conf\n\nGenerates a template node manifest printed to stderr\n")
        default:
            fmt.Fprintf(os.Stderr, "\"%s\" is not a recognized command\n\n", os.Args[2])
            fmt.Fprintf(os.Stderr, "%s", usage)
            os.Exit(1)
        }

        os.Exit(0)
    }
}

func loadConfig(configFile string) *YAMLNodeConfig {
    if configFile == "" {
        fmt.Fprintf(os.Stderr, "Error: No manifest file specified\n")
        os.Exit(1)
    }

    var config YAMLNodeConfig

    if err := config.LoadFromFile(configFile); err != nil {
        fmt.Fprintf(os.Stderr, "Error: Unable to load manifest %s: %v\n", configFile, err)
        os.Exit(1)
    }

    return &config
}

func resolveIdentity(config *YAMLNodeConfig) NodeIdentity {
    identity, err := Resolve(config.Environment())

    if err != nil {
        fmt.Fprintf(os.Stderr, "Error: Unable to resolve the node identity: %v\n", err)
        os.Exit(1)
    }

    return identity
}

func selectDataDir(config *YAMLNodeConfig, create bool) string {
    dataDir, err := datadir.Select(config.Service.Kind, config.DataDisks, "data", create)

    if err != nil {
        fmt.Fprintf(os.Stderr, "Error: Unable to select a data directory: %v\n", err)
        os.Exit(1)
    }

    return dataDir
}

// publishedNodes prefers the manifest's inline node set and falls back to
// the snapshot in the local registry.
func publishedNodes(config *YAMLNodeConfig) []NodeInfo {
    if len(config.Nodes) > 0 || config.RegistryDir == "" {
        return config.NodeInfos()
    }

    reg, err := registry.Open(config.RegistryDir)

    if err != nil {
        fmt.Fprintf(os.Stderr, "Error: Unable to open registry at %s: %v\n", config.RegistryDir, err)
        os.Exit(1)
    }

    defer reg.Close()

    nodes, snapshotID, err := reg.NodesInfo()

    if err != nil {
        fmt.Fprintf(os.Stderr, "Error: Unable to read the node set from the registry: %v\n", err)
        os.Exit(1)
    }

    if len(nodes) > 0 {
        Log.Infof("Using node set snapshot %d from the registry", snapshotID)
    }

    return nodes
}

func configDir(config *YAMLNodeConfig) string {
    if config.ConfigDir != "" {
        return config.ConfigDir
    }

    return datadir.ConfDir(datadir.HomeDir(config.Service.Kind))
}

func configure(config *YAMLNodeConfig) {
    identity := resolveIdentity(config)
    dataDir := selectDataDir(config, true)

    builder := &conf.Builder{
        ServiceKind: conf.ServiceKind(config.Service.Kind),
        Mode: conf.Mode(config.Service.Mode),
        Identity: identity,
        Topology: config.Topology(),
        Params: config.ServiceParams(),
        Nodes: publishedNodes(config),
        DataDir: dataDir,
        TemplateDir: config.TemplateDir,
    }

    configFileSet, err := builder.Build()

    if err != nil {
        fmt.Fprintf(os.Stderr, "Error: Unable to build the service configuration: %v\n", err)
        os.Exit(1)
    }

    outputDir := configDir(config)

    if err := os.MkdirAll(outputDir, 0755); err != nil {
        fmt.Fprintf(os.Stderr, "Error: Unable to create configuration directory %s: %v\n", outputDir, err)
        os.Exit(1)
    }

    if err := configFileSet.WriteTo(outputDir); err != nil {
        fmt.Fprintf(os.Stderr, "Error: Unable to install the service configuration: %v\n", err)
        os.Exit(1)
    }

    fmt.Fprintf(os.Stdout, "Installed %d configuration file(s) for %s into %s\n", len(configFileSet.Files), config.Service.Kind, outputDir)
}

func bootstrapNode(config *YAMLNodeConfig) {
    identity := resolveIdentity(config)
    dataDir := selectDataDir(config, true)

    sequencer := &bootstrap.Sequencer{
        Identity: identity,
        Topology: config.Topology(),
        DataDir: dataDir,
        Adapter: config.Adapter(dataDir),
        PrimaryPort: config.Service.Port,
        PromotedPrimary: config.PromotedPrimary,
    }

    health.RecordBootstrapAttempt()

    state, err := sequencer.Run(context.Background())

    if err != nil {
        fmt.Fprintf(os.Stderr, "Error: Bootstrap failed in state %s: %v\n", state, err)
        os.Exit(1)
    }

    fmt.Fprintf(os.Stdout, "Bootstrap complete. Node is %s\n", state)
}

func serviceHandlePaths(config *YAMLNodeConfig) (runDir string, logsDir string) {
    home := datadir.HomeDir(config.Service.Kind)

    return datadir.RunDir(home), datadir.LogsDir(home)
}

func startService(config *YAMLNodeConfig) {
    runDir, logsDir := serviceHandlePaths(config)

    for _, dir := range []string{ runDir, logsDir } {
        if err := os.MkdirAll(dir, 0755); err != nil {
            fmt.Fprintf(os.Stderr, "Error: Unable to create %s: %v\n", dir, err)
            os.Exit(1)
        }
    }

    dataDir := selectDataDir(config, false)

    // A service must never be launched against a data directory that was
    // never bootstrapped.
    if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
        fmt.Fprintf(os.Stderr, "Error: %v: %s\n", ENoDataDir, dataDir)
        os.Exit(1)
    }

    spec, err := config.StartSpec(runDir, logsDir, dataDir)

    if err != nil {
        fmt.Fprintf(os.Stderr, "Error: %v\n", err)
        os.Exit(1)
    }

    handle, err := process.Start(spec)

    if err != nil {
        fmt.Fprintf(os.Stderr, "Error: Unable to start %s: %v\n", config.Service.Kind, err)
        os.Exit(1)
    }

    fmt.Fprintf(os.Stdout, "Started %s with pid %d\n", config.Service.Kind, handle.Pid)
}

func stopService(config *YAMLNodeConfig) {
    runDir, logsDir := serviceHandlePaths(config)
    handle, err := process.Attach(filepath.Join(runDir, config.Service.Kind+".pid"), filepath.Join(logsDir, config.Service.Kind+".log"))

    if err != nil {
        if os.IsNotExist(err) {
            fmt.Fprintf(os.Stdout, "%s is not running\n", config.Service.Kind)
            os.Exit(0)
        }

        fmt.Fprintf(os.Stderr, "Error: Unable to read the recorded pid: %v\n", err)
        os.Exit(1)
    }

    if err := process.Stop(handle); err != nil {
        fmt.Fprintf(os.Stderr, "Error: Unable to stop %s: %v\n", config.Service.Kind, err)
        os.Exit(1)
    }

    fmt.Fprintf(os.Stdout, "Stopped %s\n", config.Service.Kind)
}

// probeDataDir is the tolerant variant used by status and health: a node
// that has never bootstrapped has no data directory yet and that is a state
// to report, not an error.
func probeDataDir(config *YAMLNodeConfig) string {
    dataDir, err := datadir.Select(config.Service.Kind, config.DataDisks, "data", false)

    if err != nil {
        return ""
    }

    if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
        return ""
    }

    return dataDir
}

func showStatus(config *YAMLNodeConfig) {
    identity := resolveIdentity(config)
    dataDir := probeDataDir(config)
    runDir, logsDir := serviceHandlePaths(config)

    bootstrapState := "uninitialized"

    if dataDir != "" {
        if _, err := os.Stat(filepath.Join(dataDir, bootstrap.CompletionMarker)); err == nil {
            bootstrapState = "initialized"
        }
    }

    processState := process.StatusStopped

    if handle, err := process.Attach(filepath.Join(runDir, config.Service.Kind+".pid"), filepath.Join(logsDir, config.Service.Kind+".log")); err == nil {
        processState = process.GetStatus(handle)
    }

    table := tablewriter.NewWriter(os.Stdout)
    table.SetHeader([]string{ "Service", "Role", "Seq ID", "Data Dir", "Bootstrap", "Process" })
    table.Append([]string{
        config.Service.Kind,
        identity.Role.String(),
        strconv.Itoa(identity.SequenceID),
        dataDir,
        bootstrapState,
        processState.String(),
    })
    table.Render()
}

func serveHealth(config *YAMLNodeConfig) {
    identity := resolveIdentity(config)
    dataDir := probeDataDir(config)
    runDir, logsDir := serviceHandlePaths(config)

    healthServer := &health.HealthServer{
        Port: config.HealthCheckPort,
        Service: config.Service.Kind,
        Identity: identity,
    }

    if dataDir != "" {
        if _, err := os.Stat(filepath.Join(dataDir, bootstrap.CompletionMarker)); err == nil {
            if identity.Role == RoleHead {
                healthServer.SetBootstrapState(bootstrap.StateInitialized)
            } else {
                healthServer.SetBootstrapState(bootstrap.StateReady)
            }
        }
    }

    if handle, err := process.Attach(filepath.Join(runDir, config.Service.Kind+".pid"), filepath.Join(logsDir, config.Service.Kind+".log")); err == nil {
        healthServer.SetProcessHandle(handle)
    }

    if err := healthServer.Start(); err != nil {
        fmt.Fprintf(os.Stderr, "Error: The health endpoint exited: %v\n", err)
        os.Exit(1)
    }
}

func publishNodes(config *YAMLNodeConfig) {
    if config.RegistryDir == "" {
        fmt.Fprintf(os.Stderr, "Error: The manifest does not specify a registry directory\n")
        os.Exit(1)
    }

    nodes := config.NodeInfos()

    if len(nodes) == 0 {
        fmt.Fprintf(os.Stderr, "Error: The manifest does not list any nodes to publish\n")
        os.Exit(1)
    }

    reg, err := registry.Open(config.RegistryDir)

    if err != nil {
        fmt.Fprintf(os.Stderr, "Error: Unable to open registry at %s: %v\n", config.RegistryDir, err)
        os.Exit(1)
    }

    defer reg.Close()

    snapshotID, err := reg.PutNodesInfo(nodes)

    if err != nil {
        fmt.Fprintf(os.Stderr, "Error: Unable to publish the node set: %v\n", err)
        os.Exit(1)
    }

    fmt.Fprintf(os.Stdout, "Published %d node(s) as snapshot %d\n", len(nodes), snapshotID)
}
