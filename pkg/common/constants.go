package common

import "time"

const (
	FingerprintCacheTTL = 5 * time.Minute
	ProfileCacheTTL     = 30 * time.Minute
	PatternCacheTTL     = 1 * time.Hour

	SessionHeader     = "X-Session-Id"
	DeviceHeader      = "X-Device-Id"
	SignalBagHeader   = "X-Device-Signals"
	ChallengeHeader   = "X-Challenge-Token"
	InteractionHeader = "X-Interaction-Id"
)
