package conf

import (
    "path/filepath"

    . "github.com/clustertools/runtimectl/logging"
    "github.com/clustertools/runtimectl/render"
)

// ConfigFile is one materialized configuration artifact. IsTemplate marks
// the deployable runtime template a proxy leaves behind for the external
// updater to re-render with a live server list.
type ConfigFile struct {
    Name string
    Contents string
    IsTemplate bool
}

type ConfigFileSet struct {
    Files []ConfigFile
}

func (configFileSet *ConfigFileSet) Add(name string, contents string, isTemplate bool) {
    configFileSet.Files = append(configFileSet.Files, ConfigFile{
        Name: name,
        Contents: contents,
        IsTemplate: isTemplate,
    })
}

// WriteTo materializes the set under dir. Each file is written to a
// temporary file and renamed into place so consumers never observe a
// half-written configuration.
func (configFileSet *ConfigFileSet) WriteTo(dir string) error {
    for _, configFile := range configFileSet.Files {
        path := filepath.Join(dir, configFile.Name)

        if err := render.WriteFileAtomic(path, []byte(configFile.Contents), 0644); err != nil {
            Log.Errorf("Unable to write configuration file %s: %v", path, err)

            return err
        }

        Log.Debugf("Wrote configuration file %s", path)
    }

    return nil
}
