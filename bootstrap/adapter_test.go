package bootstrap_test

import (
    "context"
    "io/ioutil"
    "os"
    "path/filepath"

    . "github.com/clustertools/runtimectl/bootstrap"
    . "github.com/clustertools/runtimectl/errors"

    . "github.com/onsi/ginkgo"
    . "github.com/onsi/gomega"
)

var _ = Describe("CommandAdapter", func() {
    var dataDir string

    BeforeEach(func() {
        var err error
        dataDir, err = ioutil.TempDir("", "adapter")

        Expect(err).Should(BeNil())
    })

    AfterEach(func() {
        os.RemoveAll(dataDir)
    })

    It("should treat a missing command as a no-op step", func() {
        adapter := &CommandAdapter{ DataDir: dataDir }

        Expect(adapter.InitStore(context.Background())).Should(BeNil())
        Expect(adapter.StartTemporary(context.Background())).Should(BeNil())
        Expect(adapter.Provision(context.Background())).Should(BeNil())
        Expect(adapter.StopTemporary(context.Background())).Should(BeNil())
        Expect(adapter.BaseCopyFromPrimary(context.Background(), "10.0.0.10")).Should(BeNil())
    })

    It("should substitute the data directory into command arguments", func() {
        adapter := &CommandAdapter{
            InitStoreCommand: &Command{
                Path: "touch",
                Args: []string{ "{%data_dir%}/seed" },
            },
            DataDir: dataDir,
        }

        Expect(adapter.InitStore(context.Background())).Should(BeNil())

        _, err := os.Stat(filepath.Join(dataDir, "seed"))

        Expect(err).Should(BeNil())
    })

    It("should substitute the primary address into the base copy command", func() {
        adapter := &CommandAdapter{
            BaseCopyCommand: &Command{
                Path: "sh",
                Args: []string{ "-c", "echo {%primary_address%} > {%data_dir%}/primary" },
            },
            DataDir: dataDir,
        }

        Expect(adapter.BaseCopyFromPrimary(context.Background(), "10.0.0.10")).Should(BeNil())

        contents, err := ioutil.ReadFile(filepath.Join(dataDir, "primary"))

        Expect(err).Should(BeNil())
        Expect(string(contents)).Should(Equal("10.0.0.10\n"))
    })

    It("should run the provisioning commands in order and stop at the first failure", func() {
        adapter := &CommandAdapter{
            ProvisionCommands: []Command{
                Command{ Path: "touch", Args: []string{ "{%data_dir%}/first" } },
                Command{ Path: "false" },
                Command{ Path: "touch", Args: []string{ "{%data_dir%}/third" } },
            },
            DataDir: dataDir,
        }

        Expect(adapter.Provision(context.Background())).Should(Equal(EInitializationFailed))

        _, err := os.Stat(filepath.Join(dataDir, "first"))

        Expect(err).Should(BeNil())

        _, err = os.Stat(filepath.Join(dataDir, "third"))

        Expect(os.IsNotExist(err)).Should(BeTrue())
    })

    It("should report a failed command as an initialization failure", func() {
        adapter := &CommandAdapter{
            InitStoreCommand: &Command{ Path: "false" },
            DataDir: dataDir,
        }

        Expect(adapter.InitStore(context.Background())).Should(Equal(EInitializationFailed))
    })

    It("should pass configured environment variables through to the command", func() {
        adapter := &CommandAdapter{
            InitStoreCommand: &Command{
                Path: "sh",
                Args: []string{ "-c", "echo $SEED_VALUE > {%data_dir%}/env" },
                Env: []string{ "SEED_VALUE=42" },
            },
            DataDir: dataDir,
        }

        Expect(adapter.InitStore(context.Background())).Should(BeNil())

        contents, err := ioutil.ReadFile(filepath.Join(dataDir, "env"))

        Expect(err).Should(BeNil())
        Expect(string(contents)).Should(Equal("42\n"))
    })
})
