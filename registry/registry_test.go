package registry_test

import (
    "io/ioutil"
    "os"
    "path/filepath"

    . "github.com/clustertools/runtimectl/cluster"
    . "github.com/clustertools/runtimectl/registry"

    . "github.com/onsi/ginkgo"
    . "github.com/onsi/gomega"
)

var _ = Describe("Registry", func() {
    var workDir string
    var registry *Registry

    BeforeEach(func() {
        var err error
        workDir, err = ioutil.TempDir("", "registry")

        Expect(err).Should(BeNil())

        registry, err = Open(filepath.Join(workDir, "db"))

        Expect(err).Should(BeNil())
    })

    AfterEach(func() {
        registry.Close()
        os.RemoveAll(workDir)
    })

    Describe("node set snapshots", func() {
        It("should return an empty set before any snapshot was published", func() {
            nodes, snapshotID, err := registry.NodesInfo()

            Expect(err).Should(BeNil())
            Expect(nodes).Should(BeEmpty())
            Expect(snapshotID).Should(Equal(uint64(0)))
        })

        It("should round trip a published node set", func() {
            published := []NodeInfo{
                NodeInfo{ NodeID: "node-1", IPAddress: "10.0.0.10", SequenceID: 1 },
                NodeInfo{ NodeID: "node-2", IPAddress: "10.0.0.11", SequenceID: 2, QuorumID: "q1" },
            }

            snapshotID, err := registry.PutNodesInfo(published)

            Expect(err).Should(BeNil())
            Expect(snapshotID).ShouldNot(Equal(uint64(0)))

            nodes, storedID, err := registry.NodesInfo()

            Expect(err).Should(BeNil())
            Expect(storedID).Should(Equal(snapshotID))
            Expect(nodes).Should(Equal(published))
        })

        It("should replace the previous snapshot on publish", func() {
            _, err := registry.PutNodesInfo([]NodeInfo{
                NodeInfo{ NodeID: "node-1", IPAddress: "10.0.0.10", SequenceID: 1 },
            })

            Expect(err).Should(BeNil())

            secondID, err := registry.PutNodesInfo([]NodeInfo{
                NodeInfo{ NodeID: "node-2", IPAddress: "10.0.0.11", SequenceID: 2 },
            })

            Expect(err).Should(BeNil())

            nodes, storedID, err := registry.NodesInfo()

            Expect(err).Should(BeNil())
            Expect(storedID).Should(Equal(secondID))
            Expect(nodes).Should(HaveLen(1))
            Expect(nodes[0].NodeID).Should(Equal("node-2"))
        })
    })

    Describe("runtime configuration documents", func() {
        It("should return nothing for a service with no stored document", func() {
            contents, err := registry.RuntimeConfig("postgres")

            Expect(err).Should(BeNil())
            Expect(contents).Should(BeNil())
        })

        It("should round trip a stored document per service", func() {
            Expect(registry.PutRuntimeConfig("postgres", []byte("a: 1"))).Should(BeNil())
            Expect(registry.PutRuntimeConfig("mysql", []byte("b: 2"))).Should(BeNil())

            contents, err := registry.RuntimeConfig("postgres")

            Expect(err).Should(BeNil())
            Expect(contents).Should(Equal([]byte("a: 1")))

            contents, err = registry.RuntimeConfig("mysql")

            Expect(err).Should(BeNil())
            Expect(contents).Should(Equal([]byte("b: 2")))
        })
    })
})
