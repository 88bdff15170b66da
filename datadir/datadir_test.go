package datadir_test

import (
    "io/ioutil"
    "os"
    "path/filepath"

    . "github.com/clustertools/runtimectl/datadir"

    . "github.com/onsi/ginkgo"
    . "github.com/onsi/gomega"
)

var _ = Describe("DataDir", func() {
    var workDir string
    var originalHome string

    BeforeEach(func() {
        var err error
        workDir, err = ioutil.TempDir("", "datadir")

        Expect(err).Should(BeNil())

        originalHome = os.Getenv("HOME")
        os.Setenv("HOME", filepath.Join(workDir, "home"))
    })

    AfterEach(func() {
        os.Setenv("HOME", originalHome)
        os.RemoveAll(workDir)
    })

    Describe("#Select", func() {
        It("should choose the first candidate that exists", func() {
            diskA := filepath.Join(workDir, "diskA")
            diskB := filepath.Join(workDir, "diskB")

            Expect(os.MkdirAll(diskA, 0755)).Should(BeNil())
            Expect(os.MkdirAll(diskB, 0755)).Should(BeNil())

            selected, err := Select("postgres", []string{ diskA, diskB }, "data", true)

            Expect(err).Should(BeNil())
            Expect(selected).Should(Equal(filepath.Join(diskA, "data")))
        })

        It("should skip candidates that do not exist", func() {
            diskA := filepath.Join(workDir, "missing")
            diskB := filepath.Join(workDir, "diskB")

            Expect(os.MkdirAll(diskB, 0755)).Should(BeNil())

            selected, err := Select("postgres", []string{ diskA, diskB }, "data", true)

            Expect(err).Should(BeNil())
            Expect(selected).Should(Equal(filepath.Join(diskB, "data")))

            // The selection must never create the missing mount point.
            _, err = os.Stat(diskA)

            Expect(os.IsNotExist(err)).Should(BeTrue())
        })

        It("should create the subpath under the selected candidate when create is requested", func() {
            diskA := filepath.Join(workDir, "diskA")

            Expect(os.MkdirAll(diskA, 0755)).Should(BeNil())

            selected, err := Select("postgres", []string{ diskA }, "data", true)

            Expect(err).Should(BeNil())

            info, err := os.Stat(selected)

            Expect(err).Should(BeNil())
            Expect(info.IsDir()).Should(BeTrue())
        })

        It("should fall back to the service home when no candidate is usable", func() {
            selected, err := Select("postgres", []string{ filepath.Join(workDir, "missing") }, "data", true)

            Expect(err).Should(BeNil())
            Expect(selected).Should(Equal(filepath.Join(HomeDir("postgres"), "data")))

            info, err := os.Stat(selected)

            Expect(err).Should(BeNil())
            Expect(info.IsDir()).Should(BeTrue())
        })

        It("should return the fixed default without creating anything when nothing exists and create was not requested", func() {
            selected, err := Select("postgres", []string{ filepath.Join(workDir, "missing") }, "data", false)

            Expect(err).Should(BeNil())
            Expect(selected).Should(Equal(filepath.Join(HomeDir("postgres"), "data")))

            _, err = os.Stat(HomeDir("postgres"))

            Expect(os.IsNotExist(err)).Should(BeTrue())
        })

        It("should be deterministic on an unchanged filesystem", func() {
            diskA := filepath.Join(workDir, "diskA")

            Expect(os.MkdirAll(diskA, 0755)).Should(BeNil())

            first, err := Select("postgres", []string{ diskA }, "data", true)

            Expect(err).Should(BeNil())

            second, err := Select("postgres", []string{ diskA }, "data", true)

            Expect(err).Should(BeNil())
            Expect(second).Should(Equal(first))
        })
    })

    Describe("#HomeDir", func() {
        It("should place the service home under $HOME/runtime", func() {
            Expect(HomeDir("mysql")).Should(Equal(filepath.Join(os.Getenv("HOME"), "runtime", "mysql")))
        })
    })

    Describe("directory layout", func() {
        It("should derive the standard subdirectories from the home", func() {
            home := HomeDir("postgres")

            Expect(DataDir(home)).Should(Equal(filepath.Join(home, "data")))
            Expect(LogsDir(home)).Should(Equal(filepath.Join(home, "logs")))
            Expect(RunDir(home)).Should(Equal(filepath.Join(home, "run")))
            Expect(ConfDir(home)).Should(Equal(filepath.Join(home, "conf")))
        })
    })
})
