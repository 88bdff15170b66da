package shared

import (
    "errors"
    "fmt"
    "io/ioutil"
    "path/filepath"
    "time"

    "gopkg.in/yaml.v2"

    "github.com/clustertools/runtimectl/bootstrap"
    "github.com/clustertools/runtimectl/cluster"
    "github.com/clustertools/runtimectl/conf"
    . "github.com/clustertools/runtimectl/logging"
    "github.com/clustertools/runtimectl/process"
)

// YAMLNodeConfig is the per-node manifest handed to runtimectl by the
// provisioning layer. It carries everything a node needs to configure and
// bootstrap one service: the node's role and identity, the cluster
// topology, the service parameters, the data disk candidates and the
// service's lifecycle command lines.
type YAMLNodeConfig struct {
    Head bool `yaml:"head"`
    NodeIP string `yaml:"nodeIP"`
    HeadAddress string `yaml:"headAddress"`
    SequenceID int `yaml:"sequenceID"`
    ClusterMode string `yaml:"clusterMode"`
    NodeCount int `yaml:"nodeCount"`
    PromotedPrimary bool `yaml:"promotedPrimary"`
    LogLevel string `yaml:"logLevel"`
    DataDisks []string `yaml:"dataDisks"`
    TemplateDir string `yaml:"templateDir"`
    ConfigDir string `yaml:"configDir"`
    RegistryDir string `yaml:"registryDir"`
    HealthCheckPort int `yaml:"healthCheckPort"`
    Service YAMLServiceConfig `yaml:"service"`
    Nodes []YAMLNodeInfo `yaml:"nodes"`
    Commands YAMLCommandsConfig `yaml:"commands"`
}

type YAMLServiceConfig struct {
    Kind string `yaml:"kind"`
    Mode string `yaml:"mode"`
    Port int `yaml:"port"`
    AdminUser string `yaml:"adminUser"`
    AdminPassword string `yaml:"adminPassword"`
    ReplicationUser string `yaml:"replicationUser"`
    ReplicationPassword string `yaml:"replicationPassword"`
    GroupReplicationName string `yaml:"groupReplicationName"`
    GroupReplicationPort int `yaml:"groupReplicationPort"`
    SynchronousMode string `yaml:"synchronousMode"`
    SynchronousNum int `yaml:"synchronousNum"`
    Workspace string `yaml:"workspace"`
    ClusterName string `yaml:"clusterName"`
    BackendPort int `yaml:"backendPort"`
    BackendServiceName string `yaml:"backendServiceName"`
}

type YAMLNodeInfo struct {
    NodeID string `yaml:"nodeID"`
    IP string `yaml:"ip"`
    SequenceID int `yaml:"sequenceID"`
    QuorumID string `yaml:"quorumID"`
}

type YAMLCommand struct {
    Path string `yaml:"path"`
    Args []string `yaml:"args"`
    Env []string `yaml:"env"`
}

type YAMLCommandsConfig struct {
    InitStore *YAMLCommand `yaml:"initStore"`
    StartTemporary *YAMLCommand `yaml:"startTemporary"`
    Provision []YAMLCommand `yaml:"provision"`
    StopTemporary *YAMLCommand `yaml:"stopTemporary"`
    BaseCopy *YAMLCommand `yaml:"baseCopy"`
    Start *YAMLCommand `yaml:"start"`
    CommandTimeoutSeconds int `yaml:"commandTimeoutSeconds"`
}

func (ysc *YAMLNodeConfig) LoadFromFile(file string) error {
    rawConfig, err := ioutil.ReadFile(file)

    if err != nil {
        return err
    }

    err = yaml.Unmarshal(rawConfig, ysc)

    if err != nil {
        return err
    }

    serviceKind := conf.ServiceKind(ysc.Service.Kind)

    if !serviceKind.Known() {
        return errors.New(fmt.Sprintf("%s is not a known service kind", ysc.Service.Kind))
    }

    if ysc.Service.Mode != "" && !serviceKind.SupportsMode(conf.Mode(ysc.Service.Mode)) {
        return errors.New(fmt.Sprintf("Service %s does not support mode %s", ysc.Service.Kind, ysc.Service.Mode))
    }

    if _, err := cluster.ParseClusterMode(ysc.ClusterMode); err != nil {
        return errors.New(fmt.Sprintf("%s is not a valid cluster mode", ysc.ClusterMode))
    }

    if !isValidPort(ysc.Service.Port) {
        return errors.New(fmt.Sprintf("%d is an invalid port for the %s service", ysc.Service.Port, ysc.Service.Kind))
    }

    if ysc.Service.Port == 0 {
        ysc.Service.Port = serviceKind.DefaultPort()
    }

    if ysc.HealthCheckPort == 0 {
        ysc.HealthCheckPort = ysc.Service.Port + 10000
    }

    if ysc.LogLevel == "" {
        ysc.LogLevel = "info"
    }

    SetLoggingLevel(ysc.LogLevel)

    return nil
}

func isValidPort(p int) bool {
    return p >= 0 && p < (1 << 16)
}

// Environment converts the manifest's identity fields into the resolver's
// input struct. Values present in the process environment win so the
// provisioner can override the manifest per node without editing it.
func (ysc *YAMLNodeConfig) Environment() cluster.NodeEnvironment {
    env := cluster.EnvironmentFromOS()

    if !env.Head {
        env.Head = ysc.Head
    }

    if env.IPAddress == "" {
        env.IPAddress = ysc.NodeIP
    }

    if env.HeadAddress == "" {
        env.HeadAddress = ysc.HeadAddress
    }

    if env.SequenceID == 0 {
        env.SequenceID = ysc.SequenceID
    }

    return env
}

func (ysc *YAMLNodeConfig) Topology() cluster.ClusterTopology {
    clusterMode, _ := cluster.ParseClusterMode(ysc.ClusterMode)
    env := ysc.Environment()

    return cluster.ClusterTopology{
        HeadAddress: env.HeadAddress,
        ClusterMode: clusterMode,
        NodeCountHint: ysc.NodeCount,
    }
}

func (ysc *YAMLNodeConfig) ServiceParams() conf.ServiceParams {
    return conf.ServiceParams{
        Port: ysc.Service.Port,
        AdminUser: ysc.Service.AdminUser,
        AdminPassword: ysc.Service.AdminPassword,
        ReplicationUser: ysc.Service.ReplicationUser,
        ReplicationPassword: ysc.Service.ReplicationPassword,
        GroupReplicationName: ysc.Service.GroupReplicationName,
        GroupReplicationPort: ysc.Service.GroupReplicationPort,
        SynchronousMode: ysc.Service.SynchronousMode,
        SynchronousNum: ysc.Service.SynchronousNum,
        Workspace: ysc.Service.Workspace,
        ClusterName: ysc.Service.ClusterName,
        BackendPort: ysc.Service.BackendPort,
        BackendServiceName: ysc.Service.BackendServiceName,
    }
}

func (ysc *YAMLNodeConfig) NodeInfos() []cluster.NodeInfo {
    nodes := make([]cluster.NodeInfo, 0, len(ysc.Nodes))

    for _, yamlNodeInfo := range ysc.Nodes {
        nodes = append(nodes, cluster.NodeInfo{
            NodeID: yamlNodeInfo.NodeID,
            IPAddress: yamlNodeInfo.IP,
            SequenceID: yamlNodeInfo.SequenceID,
            QuorumID: yamlNodeInfo.QuorumID,
        })
    }

    return nodes
}

// Adapter assembles the bootstrap command adapter from the manifest's
// command lines.
func (ysc *YAMLNodeConfig) Adapter(dataDir string) *bootstrap.CommandAdapter {
    adapter := &bootstrap.CommandAdapter{
        InitStoreCommand: toCommand(ysc.Commands.InitStore),
        StartTemporaryCommand: toCommand(ysc.Commands.StartTemporary),
        StopTemporaryCommand: toCommand(ysc.Commands.StopTemporary),
        BaseCopyCommand: toCommand(ysc.Commands.BaseCopy),
        DataDir: dataDir,
    }

    for _, provisionCommand := range ysc.Commands.Provision {
        adapter.ProvisionCommands = append(adapter.ProvisionCommands, bootstrap.Command{
            Path: provisionCommand.Path,
            Args: provisionCommand.Args,
            Env: provisionCommand.Env,
        })
    }

    if ysc.Commands.CommandTimeoutSeconds > 0 {
        adapter.Timeout = time.Duration(ysc.Commands.CommandTimeoutSeconds) * time.Second
    }

    return adapter
}

// StartSpec builds the lifecycle controller's start specification. The PID
// file and log file live under the service home's run and logs directories.
func (ysc *YAMLNodeConfig) StartSpec(runDir string, logsDir string, dataDir string) (process.StartSpec, error) {
    if ysc.Commands.Start == nil {
        return process.StartSpec{}, errors.New(fmt.Sprintf("No start command is configured for service %s", ysc.Service.Kind))
    }

    return process.StartSpec{
        Name: ysc.Service.Kind,
        Command: ysc.Commands.Start.Path,
        Args: ysc.Commands.Start.Args,
        Env: append([]string{ "RUNTIME_DATA_DIR=" + dataDir }, ysc.Commands.Start.Env...),
        PidFilePath: filepath.Join(runDir, ysc.Service.Kind+".pid"),
        LogFilePath: filepath.Join(logsDir, ysc.Service.Kind+".log"),
    }, nil
}

func toCommand(yamlCommand *YAMLCommand) *bootstrap.Command {
    if yamlCommand == nil {
        return nil
    }

    return &bootstrap.Command{
        Path: yamlCommand.Path,
        Args: yamlCommand.Args,
        Env: yamlCommand.Env,
    }
}
