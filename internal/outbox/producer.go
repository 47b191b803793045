// Package outbox implements component E: the durable send queue. The
// producer half validates and admits a send request; the sender half
// (sender.go) is the worker that drains pending rows through (D).
package outbox

import (
	"regexp"
	"strings"

	"github.com/rijan-wa/gateway/internal/apierr"
	"github.com/rijan-wa/gateway/internal/crypto"
	"github.com/rijan-wa/gateway/internal/ratelimit"
	"github.com/rijan-wa/gateway/internal/store"
)

var supportedMessageTypes = map[string]bool{
	"text":     true,
	"media":    true,
	"location": true,
	"contact":  true,
	"reaction": true,
	"poll":     true,
}

const userDomain = "s.whatsapp.net"

var recognizedJIDDomains = map[string]bool{
	userDomain:  true,
	"g.us":      true,
	"broadcast": true,
}

var bareDigitsRE = regexp.MustCompile(`^[1-9][0-9]*$`)
var jidLocalRE = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// normalizeJID implements spec.md's recipient identifier normalization:
// a bare digit string (international, no +, no leading 0) expands to a
// user-domain JID; a full <local>@<domain> JID is accepted only if its
// domain is one of the recognized ones. Anything else is rejected.
func normalizeJID(jid string) (string, error) {
	if bareDigitsRE.MatchString(jid) {
		return jid + "@" + userDomain, nil
	}

	local, domain, ok := strings.Cut(jid, "@")
	if !ok || local == "" || domain == "" || !jidLocalRE.MatchString(local) || !recognizedJIDDomains[domain] {
		return "", apierr.Validation("recipient jid %q is not a bare digit string or a recognized <local>@<domain> jid", jid)
	}
	return jid, nil
}

// Producer implements the HTTP-side half of spec.md §4.E: recipient
// validation, idempotency resolution, and rate-limit admission.
type Producer struct {
	store   *store.Store
	limiter ratelimit.Limiter
}

// NewProducer constructs a Producer over the given rate limiter
// backend (memory or Redis, selected at wiring time).
func NewProducer(st *store.Store, limiter ratelimit.Limiter) *Producer {
	return &Producer{store: st, limiter: limiter}
}

// Enqueue validates messageType and jid, resolves idempotency (a
// resubmission with the same (device_id, idempotencyKey) returns the
// prior row and created=false without touching the rate limiter), and
// admits the send against the per-device-per-type bucket. The returned
// Decision carries the limiter's figures whenever the limiter was
// consulted; it is zero on a validation failure, and an idempotent
// replay returns a Decision with only Allowed set.
func (p *Producer) Enqueue(tenantID, deviceID, jid, messageType string, payload []byte, idempotencyKey *string) (row *store.OutboxRow, created bool, decision ratelimit.Decision, err error) {
	messageType = strings.ToLower(strings.TrimSpace(messageType))
	if !supportedMessageTypes[messageType] {
		return nil, false, ratelimit.Decision{}, apierr.Validation("unsupported message type %q", messageType)
	}
	jid = strings.TrimSpace(jid)
	if jid == "" {
		return nil, false, ratelimit.Decision{}, apierr.Validation("recipient jid is required")
	}
	jid, nerr := normalizeJID(jid)
	if nerr != nil {
		return nil, false, ratelimit.Decision{}, nerr
	}

	if idempotencyKey != nil && *idempotencyKey != "" {
		existing, ferr := p.store.FindOutboxByIdempotencyKey(deviceID, *idempotencyKey)
		if ferr == nil {
			return existing, false, ratelimit.Decision{Allowed: true}, nil
		}
		if ferr != store.ErrNotFound {
			return nil, false, ratelimit.Decision{}, apierr.Internal(ferr, "look up idempotency key")
		}
	}

	decision, err = p.limiter.Allow(deviceID, messageType)
	if err != nil {
		return nil, false, ratelimit.Decision{}, apierr.Internal(err, "rate limit check")
	}
	if !decision.Allowed {
		return nil, false, decision, apierr.Resource("rate limit exceeded for message type %s", messageType).
			WithSubKind("rate_limited").
			WithRetryable(true)
	}

	id := crypto.MustMintID("out")
	newRow, cerr := p.store.CreateOutboxRow(id, tenantID, deviceID, jid, messageType, payload, idempotencyKey)
	if cerr != nil {
		// a concurrent request may have raced us on the same idempotency
		// key between the lookup above and this insert; re-query once
		// rather than surface the unique-constraint violation.
		if idempotencyKey != nil && *idempotencyKey != "" {
			if existing, ferr := p.store.FindOutboxByIdempotencyKey(deviceID, *idempotencyKey); ferr == nil {
				return existing, false, decision, nil
			}
		}
		return nil, false, decision, apierr.Internal(cerr, "create outbox row")
	}
	return newRow, true, decision, nil
}
