// Package crypto implements the gateway's cryptographic primitives
// (component A of spec.md): constant-time master-password checks, HMAC
// tenant tokens, AEAD sealing of optional session blobs, webhook
// signatures, and random id minting. Grounded in the teacher's
// internal/federation/crypto.go (HMAC challenge/proof, constant-time
// compare) and internal/security/token_broker.go (HMAC-signed, claim
// bearing tokens with an issuer and TTL).
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"io"
)

// Primitives bundles the master-key reference used for every keyed
// operation below. The reference is the configured 64-hex-char SHA-256
// digest (spec.md §4.A/§6); the plaintext master key is never stored.
type Primitives struct {
	masterRefHex string
	masterRef    []byte // decoded reference bytes, for constant-time compare
}

// New validates and wraps the configured master-key reference.
func New(masterKeyHashHex string) (*Primitives, error) {
	ref, err := hex.DecodeString(masterKeyHashHex)
	if err != nil || len(ref) != sha256.Size {
		return nil, errors.New("crypto: master key reference must be a 64-hex-character sha256 digest")
	}
	return &Primitives{masterRefHex: strings.ToLower(masterKeyHashHex), masterRef: ref}, nil
}

// VerifyMaster reports whether plain hashes to the configured reference,
// in constant time regardless of where the first differing byte falls.
func (p *Primitives) VerifyMaster(plain string) bool {
	sum := sha256.Sum256([]byte(plain))
	return hmac.Equal(sum[:], p.masterRef)
}

// hmacKey derives the signing key for tenant tokens from the master
// reference bytes themselves — the reference is already a uniformly
// random-looking 32-byte digest, so it is used directly as the HMAC key.
func (p *Primitives) hmacKey() []byte {
	return p.masterRef
}

// TokenVerification is the result of verifying a tenant token.
type TokenVerification struct {
	Valid    bool
	TenantID string
	Expired  bool
}

// IssueTenantToken mints a dotted five-part token:
//
//	tenant_id.issued_at_ms.expires_at_ms.salt_hex.signature_hex
//
// signature = hex(HMAC-SHA256(masterRef, "tenant_id.issued_at_ms.expires_at_ms.salt_hex"))
func (p *Primitives) IssueTenantToken(tenantID string, ttl time.Duration) (string, error) {
	if tenantID == "" {
		return "", errors.New("crypto: tenantID must not be empty")
	}
	if ttl == 0 {
		ttl = 365 * 24 * time.Hour
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("crypto: salt generation: %w", err)
	}
	saltHex := hex.EncodeToString(salt)

	now := time.Now()
	issuedMs := now.UnixMilli()
	expiresMs := now.Add(ttl).UnixMilli()

	body := fmt.Sprintf("%s.%d.%d.%s", tenantID, issuedMs, expiresMs, saltHex)
	sig := p.sign(body)

	return body + "." + sig, nil
}

func (p *Primitives) sign(body string) string {
	mac := hmac.New(sha256.New, p.hmacKey())
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyTenantToken parses and verifies a dotted five-part token.
func (p *Primitives) VerifyTenantToken(token string) TokenVerification {
	parts := strings.Split(token, ".")
	if len(parts) != 5 {
		return TokenVerification{Valid: false}
	}
	tenantID, issuedStr, expiresStr, saltHex, sigHex := parts[0], parts[1], parts[2], parts[3], parts[4]

	expiresMs, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return TokenVerification{Valid: false}
	}
	if _, err := strconv.ParseInt(issuedStr, 10, 64); err != nil {
		return TokenVerification{Valid: false}
	}

	body := fmt.Sprintf("%s.%s.%s.%s", tenantID, issuedStr, expiresStr, saltHex)
	expectedSig := p.sign(body)

	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return TokenVerification{Valid: false}
	}
	expectedBytes, _ := hex.DecodeString(expectedSig)
	if !hmac.Equal(sigBytes, expectedBytes) {
		return TokenVerification{Valid: false}
	}

	if expiresMs < time.Now().UnixMilli() {
		return TokenVerification{Valid: false, TenantID: tenantID, Expired: true}
	}

	return TokenVerification{Valid: true, TenantID: tenantID}
}

// TokenFingerprint is the stable digest used as the persisted
// api_key_hash lookup key: the token itself is never stored, only this.
func TokenFingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Sealed is an authenticated-encryption envelope for optional at-rest
// protection of session blobs (not the primary storage path — see
// internal/authstore, which is the source of truth for credentials).
type Sealed struct {
	CT      []byte
	IV      []byte
	Version int
}

// deriveKey derives a 32-byte AEAD key from the master reference and a
// caller-supplied salt via HKDF-SHA256.
func (p *Primitives) deriveKey(salt []byte) ([]byte, error) {
	kdf := hkdf.New(sha256.New, p.masterRef, salt, []byte("rijan-wa-seal"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Seal encrypts plaintext with a random nonce under a key derived from
// the master reference and salt.
func (p *Primitives) Seal(plaintext, salt []byte) (*Sealed, error) {
	key, err := p.deriveKey(salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: key derivation: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: aead init: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce generation: %w", err)
	}
	ct := aead.Seal(nil, nonce, plaintext, nil)
	return &Sealed{CT: ct, IV: nonce, Version: 1}, nil
}

// Open decrypts a Sealed envelope produced by Seal, returning an error
// if the tag does not verify.
func (p *Primitives) Open(s *Sealed, salt []byte) ([]byte, error) {
	key, err := p.deriveKey(salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: key derivation: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: aead init: %w", err)
	}
	pt, err := aead.Open(nil, s.IV, s.CT, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: authentication failed: %w", err)
	}
	return pt, nil
}

// SignWebhookPayload computes hex(HMAC-SHA256(secret, rawBody)) for the
// X-Rijan-Signature header. An empty secret is allowed (discouraged) and
// yields a signature over an empty key, per spec.md §4.F.
func SignWebhookPayload(secret string, rawBody []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// MintID returns a 128-bit random lower-hex id, optionally prefixed
// "prefix_", following the tenant_/device_ convention of spec.md §3.
func MintID(prefix string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("crypto: id generation: %w", err)
	}
	id := hex.EncodeToString(buf)
	if prefix != "" {
		return prefix + "_" + id, nil
	}
	return id, nil
}

// MustMintID panics on entropy-source failure; used only where the
// caller has no sensible error path (e.g. package-level test fixtures).
func MustMintID(prefix string) string {
	id, err := MintID(prefix)
	if err != nil {
		panic(err)
	}
	return id
}
