package common

type contextKey string

const (
	TraceIdKey              contextKey = "trace_id"
	DeviceIdContextKey      contextKey = "device_id"
	SessionIdContextKey     contextKey = "session_id"
	BalanceIdContextKey     contextKey = "balance_id"
	FingerprintIdContextKey contextKey = "fingerprint_id"
	AssessmentContextKey    contextKey = "risk_assessment"
	LatencyContextKey       contextKey = "__execution_time"
)
