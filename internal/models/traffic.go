package models

import "time"

// TimeWindow is the closed audit lookback interval [Start, End]
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the window
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// RawAuditRecord is one audit trail entry as returned by an audit source.
// Payload holds the embedded CloudTrail event JSON.
type RawAuditRecord struct {
	EventID string
	Payload string
}

// TrafficEvent is a classified call from the subject instance to a tracked service
type TrafficEvent struct {
	Timestamp       time.Time
	Service         Service
	EventName       string
	UsedPrivatePath bool
	EndpointID      string // VPC endpoint the call went through, empty for public path
	ActorID         string
	Region          string
}

// CandidateGap is a (service, region) pair whose public path usage crossed the threshold
type CandidateGap struct {
	Service   Service `json:"service"`
	Region    string  `json:"region"`
	MissCount int     `json:"count"`
}
