package process

import (
    "io/ioutil"
    "os"
    "os/exec"
    "strconv"
    "strings"
    "syscall"
    "time"

    . "github.com/clustertools/runtimectl/errors"
    . "github.com/clustertools/runtimectl/logging"
    "github.com/clustertools/runtimectl/render"
)

type Status int

const (
    StatusRunning Status = iota
    StatusStopped
    StatusUnknown
)

func (status Status) String() string {
    switch status {
    case StatusRunning:
        return "running"
    case StatusStopped:
        return "stopped"
    default:
        return "unknown"
    }
}

const stopTimeoutDefault = 30 * time.Second
const stopPollInterval = 100 * time.Millisecond

// Handle identifies one managed service process through the PID-file
// convention. The PID file exists while the service is supposed to be
// running and is removed only after a confirmed stop.
type Handle struct {
    Pid int
    PidFilePath string
    LogFilePath string
}

// StartSpec describes how to launch one service process.
type StartSpec struct {
    Name string
    Command string
    Args []string
    Env []string
    PidFilePath string
    LogFilePath string
}

// Start launches the service process and records its PID. The
// single-instance invariant is enforced here: when a live process already
// matches the PID on record, Start fails with EAlreadyRunning and leaves
// the running instance alone. A stale PID file from a dead process is
// discarded.
func Start(spec StartSpec) (*Handle, error) {
    if pid, err := readPidFile(spec.PidFilePath); err == nil {
        if processAlive(pid) {
            Log.Errorf("Service %s is already running with pid %d", spec.Name, pid)

            return nil, EAlreadyRunning
        }

        Log.Infof("Discarding stale pid file %s for dead pid %d", spec.PidFilePath, pid)
        os.Remove(spec.PidFilePath)
    }

    logFile, err := os.OpenFile(spec.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)

    if err != nil {
        Log.Errorf("Unable to open log file %s: %v", spec.LogFilePath, err)

        return nil, err
    }

    cmd := exec.Command(spec.Command, spec.Args...)
    cmd.Stdout = logFile
    cmd.Stderr = logFile
    cmd.Env = append(os.Environ(), spec.Env...)
    // The service gets its own process group so stopping this tool does not
    // take the service down with it.
    cmd.SysProcAttr = &syscall.SysProcAttr{ Setpgid: true }

    if err := cmd.Start(); err != nil {
        logFile.Close()
        Log.Errorf("Unable to start service %s: %v", spec.Name, err)

        return nil, err
    }

    logFile.Close()

    pid := cmd.Process.Pid

    if err := render.WriteFileAtomic(spec.PidFilePath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
        Log.Errorf("Unable to record pid %d at %s: %v", pid, spec.PidFilePath, err)
        cmd.Process.Kill()

        return nil, err
    }

    // Reap the child if it exits while this process is still around.
    go cmd.Wait()

    Log.Infof("Started service %s with pid %d", spec.Name, pid)

    return &Handle{
        Pid: pid,
        PidFilePath: spec.PidFilePath,
        LogFilePath: spec.LogFilePath,
    }, nil
}

// Attach builds a handle for an already-recorded service from its PID file.
func Attach(pidFilePath string, logFilePath string) (*Handle, error) {
    pid, err := readPidFile(pidFilePath)

    if err != nil {
        return nil, err
    }

    return &Handle{
        Pid: pid,
        PidFilePath: pidFilePath,
        LogFilePath: logFilePath,
    }, nil
}

// Stop signals the recorded process and waits a bounded time for it to
// exit, escalating to SIGKILL. The PID file is removed only after the
// process is confirmed gone. A stale handle whose process is already dead
// counts as stopped, not as an error.
func Stop(handle *Handle) error {
    pid := handle.Pid

    if recorded, err := readPidFile(handle.PidFilePath); err == nil {
        pid = recorded
    }

    if pid == 0 || !processAlive(pid) {
        Log.Infof("%s: pid %d. Treating as already stopped", EStaleProcessHandle.Error(), pid)
        os.Remove(handle.PidFilePath)

        return nil
    }

    if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
        return err
    }

    deadline := time.Now().Add(stopTimeoutDefault)

    for time.Now().Before(deadline) {
        if !processAlive(pid) {
            os.Remove(handle.PidFilePath)

            Log.Infof("Stopped pid %d", pid)

            return nil
        }

        time.Sleep(stopPollInterval)
    }

    Log.Warningf("Pid %d did not exit after %v. Sending SIGKILL", pid, stopTimeoutDefault)
    syscall.Kill(pid, syscall.SIGKILL)

    for processAlive(pid) {
        time.Sleep(stopPollInterval)
    }

    os.Remove(handle.PidFilePath)

    return nil
}

// GetStatus reports the process state for the handle.
func GetStatus(handle *Handle) Status {
    pid, err := readPidFile(handle.PidFilePath)

    if err != nil {
        if os.IsNotExist(err) {
            return StatusStopped
        }

        return StatusUnknown
    }

    if processAlive(pid) {
        return StatusRunning
    }

    return StatusStopped
}

func readPidFile(path string) (int, error) {
    contents, err := ioutil.ReadFile(path)

    if err != nil {
        return 0, err
    }

    pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))

    if err != nil {
        return 0, err
    }

    return pid, nil
}

// processAlive probes the pid with signal 0. EPERM still means something is
// alive there.
func processAlive(pid int) bool {
    if pid <= 0 {
        return false
    }

    err := syscall.Kill(pid, 0)

    return err == nil || err == syscall.EPERM
}
