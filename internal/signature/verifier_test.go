package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testSecret = "super-secret"

func TestVerifier_ValidSignaturePasses(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)
	v := NewVerifier(testSecret)

	res := v.Verify(body, Sign(testSecret, body))
	assert.True(t, res.Valid)
	assert.Empty(t, res.Code)
}

func TestVerifier_TamperedBodyFails(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)
	header := Sign(testSecret, body)
	v := NewVerifier(testSecret)

	tampered := append([]byte(nil), body...)
	tampered[0] ^= 0x01

	res := v.Verify(tampered, header)
	assert.False(t, res.Valid)
	assert.Equal(t, CodeInvalidSignature, res.Code)
}

func TestVerifier_WrongSecretFails(t *testing.T) {
	body := []byte(`{"x":1}`)
	v := NewVerifier(testSecret)

	res := v.Verify(body, Sign("other-secret", body))
	assert.False(t, res.Valid)
	assert.Equal(t, CodeInvalidSignature, res.Code)
}

func TestVerifier_MalformedHeaderFails(t *testing.T) {
	body := []byte(`{"x":1}`)
	v := NewVerifier(testSecret)

	for _, header := range []string{
		"sha1=deadbeef",
		"deadbeef",
		"sha256=not-hex!",
	} {
		res := v.Verify(body, header)
		assert.False(t, res.Valid, "header %q", header)
		assert.Equal(t, CodeInvalidSignature, res.Code)
	}
}

func TestVerifier_MissingHeader(t *testing.T) {
	v := NewVerifier(testSecret)
	res := v.Verify([]byte(`{}`), "")
	assert.False(t, res.Valid)
	assert.Equal(t, CodeMissingSignature, res.Code)
}

func TestVerifier_NilRawBodyIsWiringFault(t *testing.T) {
	v := NewVerifier(testSecret)
	res := v.Verify(nil, Sign(testSecret, nil))
	assert.False(t, res.Valid)
	assert.Equal(t, CodeMissingRawBody, res.Code)
}

func TestVerifier_EmptyBodyIsSignable(t *testing.T) {
	v := NewVerifier(testSecret)
	res := v.Verify([]byte{}, Sign(testSecret, []byte{}))
	assert.True(t, res.Valid)
}

func TestVerifier_DisabledAcceptsAnything(t *testing.T) {
	v := NewVerifier("")
	assert.False(t, v.Enabled())

	res := v.Verify([]byte(`{}`), "")
	assert.True(t, res.Valid)
}
