package types

// Version is the canonical project version.
// The CLI, the completion event contract and the recording format share it.
const Version = "0.3.0"

// ContractVersion is the version stamped on completion events and recordings.
const ContractVersion = Version
