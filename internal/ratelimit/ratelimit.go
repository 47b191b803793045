// Package ratelimit gates Outbox producer admission with per-device,
// per-message-type buckets (spec.md §4.E). Two backends satisfy the
// same Limiter interface so call sites never change when the operator
// switches from in-memory to a shared Redis-backed bucket.
package ratelimit

import "time"

// Defaults are the canonical per-minute limits of spec.md §4.E.
var Defaults = map[string]int{
	"text":     60,
	"media":    30,
	"location": 40,
	"contact":  40,
	"reaction": 100,
	"poll":     40,
}

// defaultLimit is used for any message type not in Defaults (delete has
// no listed ceiling in spec.md; it rides on the text bucket weight).
const defaultLimit = 60

// LimitFor returns the configured per-minute ceiling for a message type.
func LimitFor(messageType string) int {
	if n, ok := Defaults[messageType]; ok {
		return n
	}
	return defaultLimit
}

// Decision reports the outcome of an admission check, carrying the
// headers spec.md §4.E requires on rejection.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter gates a (device, message type) pair. Implementations are
// process-local (Memory) or shared across instances (Redis).
type Limiter interface {
	Allow(deviceID, messageType string) (Decision, error)
}
