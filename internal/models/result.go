package models

import "time"

// Provenance tags where a Result came from.
type Provenance string

const (
	ProvenanceAPI      Provenance = "api"
	ProvenanceCache    Provenance = "cache"
	ProvenanceFallback Provenance = "fallback"
)

// Reason is a stable label for why a Result is not fresh from the provider.
type Reason string

const (
	ReasonRateLimited Reason = "rate_limited"
	ReasonCredential  Reason = "credential"
	ReasonUpstream    Reason = "upstream"
	ReasonMalformed   Reason = "malformed_response"
	ReasonCooldown    Reason = "cooldown"
)

// Snapshot is the payload of one successful provider call.
type Snapshot struct {
	Matches []Match           `json:"matches"`
	Sources []GroundingSource `json:"sources"`
}

// CacheRecord is the persisted {data, timestamp} envelope. Timestamp is the
// capture time in epoch milliseconds.
type CacheRecord struct {
	Data      Snapshot `json:"data"`
	Timestamp int64    `json:"timestamp"`
}

// NewCacheRecord captures snap at the given instant.
func NewCacheRecord(snap Snapshot, capturedAt time.Time) CacheRecord {
	return CacheRecord{Data: snap, Timestamp: capturedAt.UnixMilli()}
}

// CapturedAt returns the capture time.
func (r CacheRecord) CapturedAt() time.Time {
	return time.UnixMilli(r.Timestamp).UTC()
}

// IsFresh reports whether the record is younger than window. A record
// captured in the future (clock skew between writers) is never fresh.
func (r CacheRecord) IsFresh(now time.Time, window time.Duration) bool {
	age := r.Age(now)
	return age >= 0 && age < window
}

// Age returns how old the record is relative to now.
func (r CacheRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.CapturedAt())
}

// Result is what the coordinator hands to the view layer. Warning and Reason
// are set for every non-api provenance except a fresh cache hit.
type Result struct {
	Matches    []Match           `json:"matches"`
	Sources    []GroundingSource `json:"sources"`
	Provenance Provenance        `json:"provenance"`
	Warning    string            `json:"warning,omitempty"`
	Reason     Reason            `json:"reason,omitempty"`
	FetchedAt  time.Time         `json:"fetchedAt"`
}

// Failed reports whether the result was produced because a live fetch failed.
// A cooldown rejection is not a failure.
func (r Result) Failed() bool {
	return r.Reason != "" && r.Reason != ReasonCooldown
}
