package bootstrap_test

import (
    "context"
    "errors"
    "io/ioutil"
    "net"
    "os"
    "path/filepath"
    "strconv"
    "time"

    . "github.com/clustertools/runtimectl/bootstrap"
    . "github.com/clustertools/runtimectl/cluster"
    . "github.com/clustertools/runtimectl/errors"

    . "github.com/onsi/ginkgo"
    . "github.com/onsi/gomega"
)

// recordingAdapter records the order of lifecycle calls and can be told to
// fail at any step.
type recordingAdapter struct {
    calls []string
    failAt string
}

func (adapter *recordingAdapter) step(name string) error {
    adapter.calls = append(adapter.calls, name)

    if adapter.failAt == name {
        return errors.New(name + " failed")
    }

    return nil
}

func (adapter *recordingAdapter) InitStore(ctx context.Context) error {
    return adapter.step("init-store")
}

func (adapter *recordingAdapter) StartTemporary(ctx context.Context) error {
    return adapter.step("start-temporary")
}

func (adapter *recordingAdapter) Provision(ctx context.Context) error {
    return adapter.step("provision")
}

func (adapter *recordingAdapter) StopTemporary(ctx context.Context) error {
    return adapter.step("stop-temporary")
}

func (adapter *recordingAdapter) BaseCopyFromPrimary(ctx context.Context, primaryAddress string) error {
    return adapter.step("base-copy")
}

var _ = Describe("Sequencer", func() {
    var dataDir string
    var adapter *recordingAdapter

    BeforeEach(func() {
        var err error
        dataDir, err = ioutil.TempDir("", "bootstrap")

        Expect(err).Should(BeNil())

        adapter = &recordingAdapter{ }
    })

    AfterEach(func() {
        os.RemoveAll(dataDir)
    })

    dirEntries := func() []os.FileInfo {
        entries, err := ioutil.ReadDir(dataDir)

        Expect(err).Should(BeNil())

        return entries
    }

    markerExists := func() bool {
        _, err := os.Stat(filepath.Join(dataDir, CompletionMarker))

        return err == nil
    }

    Describe("primary initialization", func() {
        It("should run the two-stage initialization and write the completion marker", func() {
            sequencer := &Sequencer{
                Identity: NodeIdentity{ Role: RoleHead, IPAddress: "10.0.0.10", SequenceID: 1 },
                DataDir: dataDir,
                Adapter: adapter,
            }

            state, err := sequencer.Run(context.Background())

            Expect(err).Should(BeNil())
            Expect(state).Should(Equal(StateInitialized))
            Expect(adapter.calls).Should(Equal([]string{ "init-store", "start-temporary", "provision", "stop-temporary" }))
            Expect(markerExists()).Should(BeTrue())
        })

        It("should stop the temporary instance even when provisioning fails", func() {
            adapter.failAt = "provision"

            sequencer := &Sequencer{
                Identity: NodeIdentity{ Role: RoleHead, IPAddress: "10.0.0.10", SequenceID: 1 },
                DataDir: dataDir,
                Adapter: adapter,
            }

            _, err := sequencer.Run(context.Background())

            Expect(err).ShouldNot(BeNil())
            Expect(adapter.calls).Should(Equal([]string{ "init-store", "start-temporary", "provision", "stop-temporary" }))
            Expect(markerExists()).Should(BeFalse())
        })

        It("should not write the completion marker when initialization fails", func() {
            adapter.failAt = "init-store"

            sequencer := &Sequencer{
                Identity: NodeIdentity{ Role: RoleHead, IPAddress: "10.0.0.10", SequenceID: 1 },
                DataDir: dataDir,
                Adapter: adapter,
            }

            _, err := sequencer.Run(context.Background())

            Expect(err).ShouldNot(BeNil())
            Expect(markerExists()).Should(BeFalse())
        })

        It("should run the primary path on a promoted worker", func() {
            sequencer := &Sequencer{
                Identity: NodeIdentity{ Role: RoleWorker, IPAddress: "10.0.0.11", SequenceID: 2 },
                DataDir: dataDir,
                Adapter: adapter,
                PromotedPrimary: true,
            }

            state, err := sequencer.Run(context.Background())

            Expect(err).Should(BeNil())
            Expect(state).Should(Equal(StateInitialized))
            Expect(adapter.calls).Should(ContainElement("init-store"))
            Expect(adapter.calls).ShouldNot(ContainElement("base-copy"))
        })
    })

    Describe("idempotency", func() {
        It("should skip initialization entirely when the data directory holds a completed bootstrap", func() {
            sequencer := &Sequencer{
                Identity: NodeIdentity{ Role: RoleHead, IPAddress: "10.0.0.10", SequenceID: 1 },
                DataDir: dataDir,
                Adapter: adapter,
            }

            _, err := sequencer.Run(context.Background())

            Expect(err).Should(BeNil())

            adapter.calls = nil

            state, err := sequencer.Run(context.Background())

            Expect(err).Should(BeNil())
            Expect(state).Should(Equal(StateInitialized))
            Expect(adapter.calls).Should(BeEmpty())
        })

        It("should treat a non-empty data directory without the marker as initialized", func() {
            Expect(ioutil.WriteFile(filepath.Join(dataDir, "base"), []byte("data"), 0644)).Should(BeNil())

            sequencer := &Sequencer{
                Identity: NodeIdentity{ Role: RoleHead, IPAddress: "10.0.0.10", SequenceID: 1 },
                DataDir: dataDir,
                Adapter: adapter,
            }

            state, err := sequencer.Run(context.Background())

            Expect(err).Should(BeNil())
            Expect(state).Should(Equal(StateInitialized))
            Expect(adapter.calls).Should(BeEmpty())
        })

        It("should treat a missing data directory as uninitialized", func() {
            sequencer := &Sequencer{
                Identity: NodeIdentity{ Role: RoleHead, IPAddress: "10.0.0.10", SequenceID: 1 },
                DataDir: filepath.Join(dataDir, "missing"),
                Adapter: adapter,
            }

            _, err := sequencer.Run(context.Background())

            // The adapter owns creating the store; the sequencer just
            // decides that initialization is required.
            Expect(err).Should(BeNil())
            Expect(adapter.calls).Should(ContainElement("init-store"))
        })
    })

    Describe("replica join", func() {
        It("should fail before any filesystem mutation when the head address is missing", func() {
            sequencer := &Sequencer{
                Identity: NodeIdentity{ Role: RoleWorker, IPAddress: "10.0.0.11", SequenceID: 2 },
                DataDir: dataDir,
                Adapter: adapter,
            }

            _, err := sequencer.Run(context.Background())

            Expect(err).Should(Equal(EMissingHeadAddress))
            Expect(adapter.calls).Should(BeEmpty())
            Expect(dirEntries()).Should(BeEmpty())
        })

        It("should fail with EPrimaryUnreachable when the primary cannot be reached", func() {
            ctx, cancel := context.WithTimeout(context.Background(), 100 * time.Millisecond)
            defer cancel()

            sequencer := &Sequencer{
                Identity: NodeIdentity{ Role: RoleWorker, IPAddress: "10.0.0.11", SequenceID: 2 },
                Topology: ClusterTopology{ HeadAddress: "127.0.0.1:1" },
                DataDir: dataDir,
                Adapter: adapter,
            }

            _, err := sequencer.Run(ctx)

            Expect(err).Should(Equal(EPrimaryUnreachable))
            Expect(adapter.calls).Should(BeEmpty())
            Expect(dirEntries()).Should(BeEmpty())
        })

        It("should base copy from a reachable primary and write the completion marker", func() {
            listener, err := net.Listen("tcp", "127.0.0.1:0")

            Expect(err).Should(BeNil())

            defer listener.Close()

            sequencer := &Sequencer{
                Identity: NodeIdentity{ Role: RoleWorker, IPAddress: "10.0.0.11", SequenceID: 2 },
                Topology: ClusterTopology{ HeadAddress: listener.Addr().String() },
                DataDir: dataDir,
                Adapter: adapter,
            }

            state, err := sequencer.Run(context.Background())

            Expect(err).Should(BeNil())
            Expect(state).Should(Equal(StateReady))
            Expect(adapter.calls).Should(Equal([]string{ "base-copy" }))
            Expect(markerExists()).Should(BeTrue())
        })

        It("should append the configured primary port when the head address has none", func() {
            listener, err := net.Listen("tcp", "127.0.0.1:0")

            Expect(err).Should(BeNil())

            defer listener.Close()

            _, port, err := net.SplitHostPort(listener.Addr().String())

            Expect(err).Should(BeNil())

            primaryPort, err := strconv.Atoi(port)

            Expect(err).Should(BeNil())

            sequencer := &Sequencer{
                Identity: NodeIdentity{ Role: RoleWorker, IPAddress: "10.0.0.11", SequenceID: 2 },
                Topology: ClusterTopology{ HeadAddress: "127.0.0.1" },
                DataDir: dataDir,
                Adapter: adapter,
                PrimaryPort: primaryPort,
            }

            state, err := sequencer.Run(context.Background())

            Expect(err).Should(BeNil())
            Expect(state).Should(Equal(StateReady))
        })

        It("should not write the completion marker when the base copy fails", func() {
            listener, err := net.Listen("tcp", "127.0.0.1:0")

            Expect(err).Should(BeNil())

            defer listener.Close()

            adapter.failAt = "base-copy"

            sequencer := &Sequencer{
                Identity: NodeIdentity{ Role: RoleWorker, IPAddress: "10.0.0.11", SequenceID: 2 },
                Topology: ClusterTopology{ HeadAddress: listener.Addr().String() },
                DataDir: dataDir,
                Adapter: adapter,
            }

            _, err = sequencer.Run(context.Background())

            Expect(err).ShouldNot(BeNil())
            Expect(markerExists()).Should(BeFalse())
        })
    })

    Describe("missing adapter", func() {
        It("should fail when no service adapter was supplied", func() {
            sequencer := &Sequencer{
                Identity: NodeIdentity{ Role: RoleHead, IPAddress: "10.0.0.10", SequenceID: 1 },
                DataDir: dataDir,
            }

            _, err := sequencer.Run(context.Background())

            Expect(err).Should(Equal(EMissingRequiredValue))
        })
    })
})
