// Package ratelimit shares an upstream's advertised request budget across
// processes through Redis and gates fetches when it runs low.
//
// The budget is learned from the X-RateLimit-Remaining and X-RateLimit-Reset
// response headers by Transport, and enforced before dispatch by the Gate
// plugin.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyRemaining      = "fetch:rate_limit:remaining"
	RedisKeyResetTimestamp = "fetch:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "fetch:rate_limit:last_update"
)

// Response headers the tracker learns from.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Thresholds for rate limit decisions.
const (
	// ThresholdCritical blocks all requests when remaining falls below this value.
	ThresholdCritical = 5

	// ThresholdWarning throttles requests when remaining falls below this value.
	ThresholdWarning = 20

	// ThresholdHealthy marks the state healthy at or above this value.
	ThresholdHealthy = 50
)

// DefaultRemaining is assumed until the upstream has told us otherwise.
const DefaultRemaining = 100

// State is the upstream's current rate limit window.
type State struct {
	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last learned from a response.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked. A window
// that has already reset never blocks.
func (s *State) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && s.TimeUntilReset() > 0 && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets, or 0.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates IsHealthy from Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}
