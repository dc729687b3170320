package ir

// Version constants for the plan schema and the bridge.
const (
	// PlanVersion is the execution plan schema version.
	PlanVersion = "1"

	// BridgeVersion is the dagbridge release.
	BridgeVersion = "0.1.0"
)
