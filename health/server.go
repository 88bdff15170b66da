package health

import (
    "encoding/json"
    "fmt"
    "net/http"
    "sync"

    "github.com/gorilla/mux"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/clustertools/runtimectl/bootstrap"
    . "github.com/clustertools/runtimectl/cluster"
    . "github.com/clustertools/runtimectl/logging"
    "github.com/clustertools/runtimectl/process"
)

// HealthCheckPortOffset is added to the service port when no explicit
// health check port is configured.
const HealthCheckPortOffset = 10000

var (
    prometheusBootstrapState = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "runtimectl",
        Name: "bootstrap_state",
        Help: "Current bootstrap state of the managed service on this node.",
    })
    prometheusProcessUp = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "runtimectl",
        Name: "process_up",
        Help: "Whether a live process matches the recorded PID.",
    })
    prometheusBootstrapAttempts = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "runtimectl",
        Name: "bootstrap_attempts_total",
        Help: "Number of bootstrap sequencer invocations on this node.",
    })
)

func init() {
    prometheus.MustRegister(prometheusBootstrapState)
    prometheus.MustRegister(prometheusProcessUp)
    prometheus.MustRegister(prometheusBootstrapAttempts)
}

func RecordBootstrapAttempt() {
    prometheusBootstrapAttempts.Inc()
}

// StatusReport is the JSON document served at /status.
type StatusReport struct {
    Service string `json:"service"`
    Role string `json:"role"`
    SequenceID int `json:"sequenceID,omitempty"`
    BootstrapState string `json:"bootstrapState"`
    ProcessState string `json:"processState"`
}

// HealthServer exposes the node's bootstrap and process state over a local
// HTTP endpoint for the orchestrator's health checks.
type HealthServer struct {
    Port int
    Service string
    Identity NodeIdentity
    lock sync.Mutex
    bootstrapState bootstrap.State
    handle *process.Handle
}

func (healthServer *HealthServer) SetBootstrapState(state bootstrap.State) {
    healthServer.lock.Lock()
    defer healthServer.lock.Unlock()

    healthServer.bootstrapState = state
    prometheusBootstrapState.Set(float64(state))
}

func (healthServer *HealthServer) SetProcessHandle(handle *process.Handle) {
    healthServer.lock.Lock()
    defer healthServer.lock.Unlock()

    healthServer.handle = handle
}

func (healthServer *HealthServer) report() StatusReport {
    healthServer.lock.Lock()
    defer healthServer.lock.Unlock()

    processState := process.StatusUnknown

    if healthServer.handle != nil {
        processState = process.GetStatus(healthServer.handle)
    }

    if processState == process.StatusRunning {
        prometheusProcessUp.Set(1)
    } else {
        prometheusProcessUp.Set(0)
    }

    return StatusReport{
        Service: healthServer.Service,
        Role: healthServer.Identity.Role.String(),
        SequenceID: healthServer.Identity.SequenceID,
        BootstrapState: healthServer.bootstrapState.String(),
        ProcessState: processState.String(),
    }
}

// Handler builds the endpoint's router.
func (healthServer *HealthServer) Handler() http.Handler {
    r := mux.NewRouter()

    r.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
        encoded, err := json.Marshal(healthServer.report())

        if err != nil {
            w.WriteHeader(http.StatusInternalServerError)

            return
        }

        w.Header().Set("Content-Type", "application/json")
        w.Write(encoded)
    }).Methods("GET")

    r.Handle("/metrics", promhttp.Handler()).Methods("GET")

    return r
}

// Start blocks serving the endpoint.
func (healthServer *HealthServer) Start() error {
    Log.Infof("Health endpoint listening on port %d", healthServer.Port)

    return http.ListenAndServe(fmt.Sprintf(":%d", healthServer.Port), healthServer.Handler())
}
