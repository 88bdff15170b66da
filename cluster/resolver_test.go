package cluster_test

import (
    "os"

    . "github.com/clustertools/runtimectl/cluster"
    . "github.com/clustertools/runtimectl/errors"

    . "github.com/onsi/ginkgo"
    . "github.com/onsi/gomega"
)

var _ = Describe("Resolver", func() {
    Describe("#Resolve", func() {
        It("should prefer the explicit ip address override", func() {
            identity, err := Resolve(NodeEnvironment{
                Head: true,
                IPAddress: "10.0.0.10",
                SequenceID: 1,
            })

            Expect(err).Should(BeNil())
            Expect(identity.Role).Should(Equal(RoleHead))
            Expect(identity.IPAddress).Should(Equal("10.0.0.10"))
            Expect(identity.SequenceID).Should(Equal(1))
        })

        It("should assign the worker role when the node is not the head", func() {
            identity, err := Resolve(NodeEnvironment{
                IPAddress: "10.0.0.11",
                HeadAddress: "10.0.0.10",
                SequenceID: 2,
            })

            Expect(err).Should(BeNil())
            Expect(identity.Role).Should(Equal(RoleWorker))
        })

        It("should not require a head address at resolution time", func() {
            identity, err := Resolve(NodeEnvironment{ IPAddress: "10.0.0.11" })

            Expect(err).Should(BeNil())
            Expect(identity.Role).Should(Equal(RoleWorker))
        })

        It("should leave the sequence id unassigned when none was supplied", func() {
            identity, err := Resolve(NodeEnvironment{ IPAddress: "10.0.0.11" })

            Expect(err).Should(BeNil())
            Expect(identity.SequenceID).Should(Equal(0))
        })
    })

    Describe("#EnvironmentFromOS", func() {
        AfterEach(func() {
            os.Unsetenv(EnvNodeHead)
            os.Unsetenv(EnvNodeIP)
            os.Unsetenv(EnvHeadAddress)
            os.Unsetenv(EnvNodeSeqID)
        })

        It("should read the provisioner-supplied variables", func() {
            os.Setenv(EnvNodeHead, "true")
            os.Setenv(EnvNodeIP, "10.0.0.10")
            os.Setenv(EnvHeadAddress, "10.0.0.10")
            os.Setenv(EnvNodeSeqID, "3")

            env := EnvironmentFromOS()

            Expect(env.Head).Should(BeTrue())
            Expect(env.IPAddress).Should(Equal("10.0.0.10"))
            Expect(env.HeadAddress).Should(Equal("10.0.0.10"))
            Expect(env.SequenceID).Should(Equal(3))
        })

        It("should ignore a malformed sequence id", func() {
            os.Setenv(EnvNodeSeqID, "not-a-number")

            Expect(EnvironmentFromOS().SequenceID).Should(Equal(0))
        })
    })

    Describe("ClusterTopology", func() {
        Describe("#RequireHeadAddress", func() {
            It("should fail when no head address was supplied", func() {
                _, err := ClusterTopology{ }.RequireHeadAddress()

                Expect(err).Should(Equal(EMissingHeadAddress))
            })

            It("should return the supplied head address", func() {
                address, err := ClusterTopology{ HeadAddress: "10.0.0.10" }.RequireHeadAddress()

                Expect(err).Should(BeNil())
                Expect(address).Should(Equal("10.0.0.10"))
            })
        })
    })

    Describe("#ParseClusterMode", func() {
        It("should treat the empty string as no clustering", func() {
            clusterMode, err := ParseClusterMode("")

            Expect(err).Should(BeNil())
            Expect(clusterMode).Should(Equal(ClusterModeNone))
        })

        It("should reject unknown modes", func() {
            _, err := ParseClusterMode("sharded")

            Expect(err).Should(Equal(EMissingRequiredValue))
        })
    })
})
