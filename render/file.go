package render

import (
    "io/ioutil"
    "os"
    "path/filepath"
)

// RenderToFile is the file adapter around the pure renderer. The rendered
// output is written to a temporary file in the destination directory and
// renamed into place so a failed render never leaves a partial file behind.
// The template file itself is never modified.
func RenderToFile(templatePath string, outputPath string, bindings Bindings, strict bool) error {
    templateText, err := ioutil.ReadFile(templatePath)

    if err != nil {
        return err
    }

    var rendered string

    if strict {
        rendered, err = RenderStrict(string(templateText), bindings)

        if err != nil {
            return err
        }
    } else {
        rendered = Render(string(templateText), bindings)
    }

    return WriteFileAtomic(outputPath, []byte(rendered), 0644)
}

// WriteFileAtomic writes contents to a temporary file next to the target and
// renames it into place.
func WriteFileAtomic(path string, contents []byte, mode os.FileMode) error {
    dir := filepath.Dir(path)

    tempFile, err := ioutil.TempFile(dir, "."+filepath.Base(path)+".tmp-")

    if err != nil {
        return err
    }

    tempPath := tempFile.Name()

    if _, err := tempFile.Write(contents); err != nil {
        tempFile.Close()
        os.Remove(tempPath)

        return err
    }

    if err := tempFile.Chmod(mode); err != nil {
        tempFile.Close()
        os.Remove(tempPath)

        return err
    }

    if err := tempFile.Close(); err != nil {
        os.Remove(tempPath)

        return err
    }

    return os.Rename(tempPath, path)
}
