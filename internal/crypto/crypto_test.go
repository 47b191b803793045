package crypto_test

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rijan-wa/gateway/internal/crypto"
)

func refFor(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

func TestVerifyMaster(t *testing.T) {
	p, err := crypto.New(refFor("admin"))
	require.NoError(t, err)

	assert.True(t, p.VerifyMaster("admin"))
	assert.False(t, p.VerifyMaster("wrong"))
	assert.False(t, p.VerifyMaster(""))
}

func TestNewRejectsBadReference(t *testing.T) {
	_, err := crypto.New("not-hex-and-wrong-length")
	assert.Error(t, err)

	_, err = crypto.New(strings.Repeat("zz", 32)) // right length, not hex
	assert.Error(t, err)
}

func TestTenantTokenRoundTrip(t *testing.T) {
	p, err := crypto.New(refFor("admin"))
	require.NoError(t, err)

	token, err := p.IssueTenantToken("tenant_abc", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 5, len(strings.Split(token, ".")))

	v := p.VerifyTenantToken(token)
	assert.True(t, v.Valid)
	assert.Equal(t, "tenant_abc", v.TenantID)
	assert.False(t, v.Expired)
}

func TestTenantTokenExpired(t *testing.T) {
	p, err := crypto.New(refFor("admin"))
	require.NoError(t, err)

	token, err := p.IssueTenantToken("tenant_abc", -time.Hour)
	require.NoError(t, err)

	v := p.VerifyTenantToken(token)
	assert.False(t, v.Valid)
	assert.True(t, v.Expired)
	assert.Equal(t, "tenant_abc", v.TenantID)
}

func TestTenantTokenTamperedSignatureFails(t *testing.T) {
	p, err := crypto.New(refFor("admin"))
	require.NoError(t, err)

	token, err := p.IssueTenantToken("tenant_abc", time.Hour)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	// flip the last hex character of the signature
	sig := []byte(parts[4])
	if sig[len(sig)-1] == '0' {
		sig[len(sig)-1] = '1'
	} else {
		sig[len(sig)-1] = '0'
	}
	parts[4] = string(sig)
	tampered := strings.Join(parts, ".")

	v := p.VerifyTenantToken(tampered)
	assert.False(t, v.Valid)
}

func TestTenantTokenWrongPartCount(t *testing.T) {
	p, err := crypto.New(refFor("admin"))
	require.NoError(t, err)

	assert.False(t, p.VerifyTenantToken("a.b.c").Valid)
	assert.False(t, p.VerifyTenantToken("a.b.c.d.e.f").Valid)
}

func TestTokenFingerprintStable(t *testing.T) {
	a := crypto.TokenFingerprint("token-123")
	b := crypto.TokenFingerprint("token-123")
	c := crypto.TokenFingerprint("token-456")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSealOpenRoundTrip(t *testing.T) {
	p, err := crypto.New(refFor("admin"))
	require.NoError(t, err)

	salt := []byte("device_abc123")
	plaintext := []byte(`{"creds":"opaque"}`)

	sealed, err := p.Seal(plaintext, salt)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed.CT)

	opened, err := p.Open(sealed, salt)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenFailsWithWrongSalt(t *testing.T) {
	p, err := crypto.New(refFor("admin"))
	require.NoError(t, err)

	sealed, err := p.Seal([]byte("secret"), []byte("salt-a"))
	require.NoError(t, err)

	_, err = p.Open(sealed, []byte("salt-b"))
	assert.Error(t, err)
}

func TestSignWebhookPayloadDeterministic(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	a := crypto.SignWebhookPayload("secret", body)
	b := crypto.SignWebhookPayload("secret", body)
	c := crypto.SignWebhookPayload("other", body)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestMintIDFormat(t *testing.T) {
	id, err := crypto.MintID("tenant")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "tenant_"))

	bare, err := crypto.MintID("")
	require.NoError(t, err)
	assert.NotContains(t, bare, "_")
}
