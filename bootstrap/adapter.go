package bootstrap

import (
    "context"
    "os"
    "os/exec"
    "strings"
    "time"

    . "github.com/clustertools/runtimectl/errors"
    . "github.com/clustertools/runtimectl/logging"
    "github.com/clustertools/runtimectl/render"
)

// ServiceAdapter is how the sequencer drives the managed service's own
// initialization commands. The temporary instance started for primary
// initialization must bind to a local-only endpoint; some initialization
// commands are unsafe on an instance that is already accepting network
// clients.
type ServiceAdapter interface {
    // InitStore creates a fresh, empty data store (e.g. initdb).
    InitStore(ctx context.Context) error
    // StartTemporary starts a local-only instance used solely for
    // provisioning.
    StartTemporary(ctx context.Context) error
    // Provision performs schema, user and replication-prerequisite setup
    // against the temporary instance.
    Provision(ctx context.Context) error
    // StopTemporary cleanly stops the temporary instance.
    StopTemporary(ctx context.Context) error
    // BaseCopyFromPrimary initializes a replica by streaming the primary's
    // current state.
    BaseCopyFromPrimary(ctx context.Context, primaryAddress string) error
}

const commandTimeoutDefault = 10 * time.Minute

// Command is one external command line. Argument values may carry
// {%primary_address%} and {%data_dir%} markers which are substituted at
// execution time.
type Command struct {
    Path string `yaml:"path"`
    Args []string `yaml:"args"`
    Env []string `yaml:"env"`
}

func (command *Command) render(ctx context.Context, bindings render.Bindings) *exec.Cmd {
    args := make([]string, 0, len(command.Args))

    for _, arg := range command.Args {
        args = append(args, render.Render(arg, bindings))
    }

    cmd := exec.CommandContext(ctx, command.Path, args...)
    cmd.Env = append(os.Environ(), command.Env...)

    return cmd
}

// CommandAdapter implements ServiceAdapter by running configured command
// lines with a bounded execution time. A nil command makes the matching step
// a no-op, since not every service needs every step.
type CommandAdapter struct {
    InitStoreCommand *Command
    StartTemporaryCommand *Command
    ProvisionCommands []Command
    StopTemporaryCommand *Command
    BaseCopyCommand *Command
    DataDir string
    Timeout time.Duration
}

func (adapter *CommandAdapter) InitStore(ctx context.Context) error {
    return adapter.run(ctx, adapter.InitStoreCommand, nil)
}

func (adapter *CommandAdapter) StartTemporary(ctx context.Context) error {
    return adapter.run(ctx, adapter.StartTemporaryCommand, nil)
}

func (adapter *CommandAdapter) Provision(ctx context.Context) error {
    for i := range adapter.ProvisionCommands {
        if err := adapter.run(ctx, &adapter.ProvisionCommands[i], nil); err != nil {
            return err
        }
    }

    return nil
}

func (adapter *CommandAdapter) StopTemporary(ctx context.Context) error {
    return adapter.run(ctx, adapter.StopTemporaryCommand, nil)
}

func (adapter *CommandAdapter) BaseCopyFromPrimary(ctx context.Context, primaryAddress string) error {
    extra := render.Bindings{ "primary_address": primaryAddress }

    return adapter.run(ctx, adapter.BaseCopyCommand, extra)
}

func (adapter *CommandAdapter) run(ctx context.Context, command *Command, extra render.Bindings) error {
    if command == nil {
        return nil
    }

    timeout := adapter.Timeout

    if timeout == 0 {
        timeout = commandTimeoutDefault
    }

    cmdCtx, cancel := context.WithTimeout(ctx, timeout)
    defer cancel()

    bindings := render.Bindings{ "data_dir": adapter.DataDir }

    for key, value := range extra {
        bindings[key] = value
    }

    cmd := command.render(cmdCtx, bindings)
    output, err := cmd.CombinedOutput()

    if err != nil {
        if cmdCtx.Err() == context.DeadlineExceeded {
            Log.Errorf("Command %s timed out after %v", command.Path, timeout)
        } else {
            Log.Errorf("Command %s failed: %v: %s", command.Path, err, strings.TrimSpace(string(output)))
        }

        return EInitializationFailed
    }

    Log.Debugf("Command %s completed: %s", command.Path, strings.TrimSpace(string(output)))

    return nil
}
