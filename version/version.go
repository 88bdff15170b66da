package version

const RUNTIMECTL_VERSION = "1.1.0"
