package bootstrap

import (
    "context"
    "io/ioutil"
    "net"
    "os"
    "path/filepath"
    "strconv"
    "time"

    . "github.com/clustertools/runtimectl/cluster"
    . "github.com/clustertools/runtimectl/errors"
    . "github.com/clustertools/runtimectl/logging"
    "github.com/clustertools/runtimectl/render"
)

// CompletionMarker is written into the data directory, atomically, only
// after initialization fully succeeds. It is the authoritative signal that
// the directory holds a completed bootstrap; a non-empty directory without
// it may be the debris of a crash mid-initialization.
const CompletionMarker = ".bootstrap-complete"

const primaryProbeTimeout = 10 * time.Second

// Sequencer is the first-start state machine for one service on one node.
// It decides between initializing a fresh store, joining an existing cluster
// as a replica, or skipping initialization because data already exists.
// Initialization happens at most once per node lifetime. Failures are fatal
// and reported immediately; re-invocation is the orchestrator's concern, and
// no precondition failure mutates the filesystem.
type Sequencer struct {
    Identity NodeIdentity
    Topology ClusterTopology
    DataDir string
    Adapter ServiceAdapter
    // PrimaryPort is the service port the primary listens on, used for the
    // reachability probe when the head address carries no port of its own.
    PrimaryPort int
    // PromotedPrimary lets a worker run the primary initialization path
    // when the topology has explicitly designated it as promoted.
    PromotedPrimary bool
    state State
}

func (sequencer *Sequencer) State() State {
    return sequencer.state
}

// Run drives the state machine to a terminal state and returns it. Network
// dependent steps honor the deadline on ctx; the sequencer itself never
// retries.
func (sequencer *Sequencer) Run(ctx context.Context) (State, error) {
    sequencer.state = StateUninitialized

    initialized, markerPresent, err := sequencer.inspectDataDir()

    if err != nil {
        Log.Errorf("Unable to inspect data directory %s: %v", sequencer.DataDir, err)

        return sequencer.state, err
    }

    if initialized {
        // The idempotent short-circuit: a node that restarted after
        // initializing must not re-initialize or touch its data.
        if !markerPresent {
            Log.Warningf("Data directory %s is non-empty but carries no completion marker. Treating it as initialized; it may hold a partial initialization from a crash", sequencer.DataDir)
        }

        sequencer.state = sequencer.terminalState()

        Log.Infof("Data directory %s already holds data. Skipping initialization, entering state %s", sequencer.DataDir, sequencer.state)

        return sequencer.state, nil
    }

    if sequencer.Adapter == nil {
        Log.Errorf("No service adapter was supplied for bootstrap")

        return sequencer.state, EMissingRequiredValue
    }

    if sequencer.runsPrimaryPath() {
        return sequencer.initializePrimary(ctx)
    }

    return sequencer.joinAsReplica(ctx)
}

func (sequencer *Sequencer) runsPrimaryPath() bool {
    return sequencer.Identity.Role == RoleHead || sequencer.PromotedPrimary
}

func (sequencer *Sequencer) terminalState() State {
    if sequencer.runsPrimaryPath() {
        return StateInitialized
    }

    return StateReady
}

// initializePrimary runs the two-stage primary start: a temporary local-only
// instance performs schema, user and replication-prerequisite setup, then
// stops cleanly before the real network-bound instance is ever started.
func (sequencer *Sequencer) initializePrimary(ctx context.Context) (State, error) {
    sequencer.state = StateInitializing

    Log.Infof("Initializing fresh data store for primary at %s", sequencer.DataDir)

    if err := sequencer.Adapter.InitStore(ctx); err != nil {
        return sequencer.state, err
    }

    if err := sequencer.Adapter.StartTemporary(ctx); err != nil {
        return sequencer.state, err
    }

    provisionErr := sequencer.Adapter.Provision(ctx)

    // The temporary instance is stopped even when provisioning fails so a
    // failed bootstrap never leaves a process behind.
    if err := sequencer.Adapter.StopTemporary(ctx); err != nil && provisionErr == nil {
        return sequencer.state, err
    }

    if provisionErr != nil {
        return sequencer.state, provisionErr
    }

    if err := sequencer.writeCompletionMarker(); err != nil {
        return sequencer.state, err
    }

    sequencer.state = StateInitialized

    Log.Infof("Primary initialization complete at %s", sequencer.DataDir)

    return sequencer.state, nil
}

// joinAsReplica performs a full-copy bootstrap from the primary's current
// state. A replica must never run independent schema creation: that would
// produce a divergent identity incompatible with streaming replication.
func (sequencer *Sequencer) joinAsReplica(ctx context.Context) (State, error) {
    // All preconditions are checked before any filesystem mutation so a
    // failure here preserves the empty-means-uninitialized invariant.
    primaryAddress, err := sequencer.Topology.RequireHeadAddress()

    if err != nil {
        Log.Errorf("Replica bootstrap requires the primary address and none was supplied")

        return sequencer.state, err
    }

    sequencer.state = StateJoiningAsReplica

    probeAddress := primaryAddress

    if _, _, splitErr := net.SplitHostPort(probeAddress); splitErr != nil && sequencer.PrimaryPort > 0 {
        probeAddress = net.JoinHostPort(primaryAddress, strconv.Itoa(sequencer.PrimaryPort))
    }

    if err := probePrimary(ctx, probeAddress); err != nil {
        Log.Errorf("Primary %s is unreachable: %v", primaryAddress, err)

        return sequencer.state, EPrimaryUnreachable
    }

    Log.Infof("Joining as replica of %s with a full base copy into %s", primaryAddress, sequencer.DataDir)

    if err := sequencer.Adapter.BaseCopyFromPrimary(ctx, primaryAddress); err != nil {
        return sequencer.state, err
    }

    if err := sequencer.writeCompletionMarker(); err != nil {
        return sequencer.state, err
    }

    sequencer.state = StateReady

    Log.Infof("Replica bootstrap from %s complete", primaryAddress)

    return sequencer.state, nil
}

// inspectDataDir reports whether the data directory already holds data and
// whether the completion marker is present. A missing directory means
// uninitialized.
func (sequencer *Sequencer) inspectDataDir() (initialized bool, markerPresent bool, err error) {
    entries, err := ioutil.ReadDir(sequencer.DataDir)

    if err != nil {
        if os.IsNotExist(err) {
            return false, false, nil
        }

        return false, false, err
    }

    for _, entry := range entries {
        if entry.Name() == CompletionMarker {
            markerPresent = true
        }
    }

    return len(entries) > 0, markerPresent, nil
}

func (sequencer *Sequencer) writeCompletionMarker() error {
    if err := os.MkdirAll(sequencer.DataDir, 0755); err != nil {
        return err
    }

    markerPath := filepath.Join(sequencer.DataDir, CompletionMarker)

    if err := render.WriteFileAtomic(markerPath, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0644); err != nil {
        Log.Errorf("Unable to write completion marker %s: %v", markerPath, err)

        return err
    }

    return nil
}

// probePrimary fails fast when the primary cannot be reached rather than
// letting the base copy block. The caller's context deadline applies when
// one is set.
func probePrimary(ctx context.Context, address string) error {
    timeout := primaryProbeTimeout

    if deadline, ok := ctx.Deadline(); ok {
        if remaining := time.Until(deadline); remaining < timeout {
            timeout = remaining
        }
    }

    conn, err := net.DialTimeout("tcp", address, timeout)

    if err != nil {
        return err
    }

    conn.Close()

    return nil
}
