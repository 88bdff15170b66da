package bootstrap

type State int

const (
    StateUninitialized State = iota
    StateInitializing
    StateInitialized
    StateJoiningAsReplica
    StateReady
)

func (state State) String() string {
    switch state {
    case StateUninitialized:
        return "uninitialized"
    case StateInitializing:
        return "initializing"
    case StateInitialized:
        return "initialized"
    case StateJoiningAsReplica:
        return "joining-as-replica"
    case StateReady:
        return "ready"
    default:
        return "unknown"
    }
}

// Terminal reports whether the state hands off to the lifecycle controller.
func (state State) Terminal() bool {
    return state == StateInitialized || state == StateReady
}
