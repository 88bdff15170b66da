package datadir

import (
    "os"
    "path/filepath"

    . "github.com/clustertools/runtimectl/logging"
)

// Select chooses a persistent storage path for a service from an ordered
// list of candidate disk mount points. Candidates are assumed to be
// pre-existing mount points; this manager never creates them. The first
// candidate that exists as a directory wins, which makes selection
// deterministic: re-running on an unchanged filesystem yields the same path.
//
// With create=true the subpath is created under the selected candidate.
// With create=false the joined path must already exist as a directory to be
// selected. When no candidate is usable the fixed service home directory is
// the fallback: it is created when create=true, and otherwise the path is
// returned as-is without touching the filesystem, whether or not it exists.
func Select(service string, candidates []string, subpath string, create bool) (string, error) {
    for _, candidate := range candidates {
        if !isDirectory(candidate) {
            continue
        }

        selected := filepath.Join(candidate, subpath)

        if create {
            if err := os.MkdirAll(selected, 0755); err != nil {
                return "", err
            }

            return selected, nil
        }

        if isDirectory(selected) {
            return selected, nil
        }
    }

    fallback := filepath.Join(HomeDir(service), subpath)

    if create {
        if err := os.MkdirAll(fallback, 0755); err != nil {
            return "", err
        }
    }

    Log.Debugf("No data disk candidate is usable for %s. Falling back to %s", service, fallback)

    return fallback, nil
}

// HomeDir is the fixed per-service home, $HOME/runtime/<service>.
func HomeDir(service string) string {
    return filepath.Join(os.Getenv("HOME"), "runtime", service)
}

func DataDir(home string) string {
    return filepath.Join(home, "data")
}

func LogsDir(home string) string {
    return filepath.Join(home, "logs")
}

func RunDir(home string) string {
    return filepath.Join(home, "run")
}

func ConfDir(home string) string {
    return filepath.Join(home, "conf")
}

func isDirectory(path string) bool {
    info, err := os.Stat(path)

    if err != nil {
        return false
    }

    return info.IsDir()
}
