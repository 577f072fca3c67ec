package fingerprint

import (
	"time"
)

// Fingerprint is one observed device/browser instance. The hash is derived
// from the canonicalized client signal bag, so semantically identical devices
// always map to the same DeviceID. Records are never deleted, only superseded
// by a record with a new hash.
type Fingerprint struct {
	Hash        string    `json:"hash"`
	DeviceID    string    `json:"device_id"`
	IP          string    `json:"ip"`
	UserAgent   string    `json:"user_agent"`
	Confidence  float64   `json:"confidence"`
	AnomalyTags []string  `json:"anomaly_tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (f Fingerprint) ID() string {
	return f.DeviceID
}

func (f Fingerprint) HasAnomaly(tag string) bool {
	for _, t := range f.AnomalyTags {
		if t == tag {
			return true
		}
	}
	return false
}
