package tracing

// Span names.
const (
	SpanRun       = "run"
	SpanHighlight = "highlight"
)

// Attribute keys.
const (
	AttrRunID        = "run.id"
	AttrRunStatus    = "run.status"
	AttrSourceBytes  = "run.source_bytes"
	AttrOutputBytes  = "run.output_bytes"
	AttrDeliveries   = "pump.deliveries"
	AttrPumpInterval = "pump.interval_ms"
	AttrErrorType    = "error.type"
)

// Event names.
const (
	EventStopRequested   = "stop.requested"
	EventProgramReturned = "program.returned"
	EventPumpDrained     = "pump.drained"
)
