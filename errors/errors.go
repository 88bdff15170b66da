package errors

import (
    "encoding/json"
)

type BootstrapError struct {
    Msg string `json:"message"`
    ErrorCode int `json:"code"`
}

func (bootstrapError BootstrapError) Error() string {
    return bootstrapError.Msg
}

func (bootstrapError BootstrapError) Code() int {
    return bootstrapError.ErrorCode
}

func (bootstrapError BootstrapError) JSON() []byte {
    json, _ := json.Marshal(bootstrapError)

    return json
}

const (
    eMISSING_REQUIRED_VALUE = iota
    eMISSING_HEAD_ADDRESS = iota
    eMISSING_BINDING_VALUE = iota
    eMISSING_REQUIRED_BINDING = iota
    eUNSUPPORTED_MODE = iota
    eUNSUPPORTED_SERVICE = iota
    eALREADY_RUNNING = iota
    ePRIMARY_UNREACHABLE = iota
    eINITIALIZATION_FAILED = iota
    eSTALE_PROCESS_HANDLE = iota
    eNO_DATA_DIR = iota
    eSTORAGE = iota
)

var (
    EMissingRequiredValue   = BootstrapError{ "A required environment or topology value is absent", eMISSING_REQUIRED_VALUE }
    EMissingHeadAddress     = BootstrapError{ "The head node address was not supplied", eMISSING_HEAD_ADDRESS }
    EMissingBindingValue    = BootstrapError{ "A template marker has no binding value", eMISSING_BINDING_VALUE }
    EMissingRequiredBinding = BootstrapError{ "A value required by the selected mode is absent", eMISSING_REQUIRED_BINDING }
    EUnsupportedMode        = BootstrapError{ "The requested configuration mode has no template", eUNSUPPORTED_MODE }
    EUnsupportedService     = BootstrapError{ "The requested service kind is not known", eUNSUPPORTED_SERVICE }
    EAlreadyRunning         = BootstrapError{ "A live process already matches the recorded PID", eALREADY_RUNNING }
    EPrimaryUnreachable     = BootstrapError{ "The primary node cannot be reached", ePRIMARY_UNREACHABLE }
    EInitializationFailed   = BootstrapError{ "An initialization command failed", eINITIALIZATION_FAILED }
    EStaleProcessHandle     = BootstrapError{ "No live process matches the recorded PID", eSTALE_PROCESS_HANDLE }
    ENoDataDir              = BootstrapError{ "No usable data directory candidate exists", eNO_DATA_DIR }
    EStorage                = BootstrapError{ "The registry storage experienced an error", eSTORAGE }
)
