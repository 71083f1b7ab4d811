package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	secretKey := "callback-signing-secret"
	payload := `{"external_id":"topup-1","status":"COMPLETED","amount":500000}`

	signature := svc.Sign(secretKey, payload)

	assert.Regexp(t, `^[0-9a-f]{64}$`, signature, "signature should be 64-char lowercase hex (SHA-256)")
	assert.True(t, svc.Verify(secretKey, payload, signature))
}

func TestHMACSignatureService_AcceptsPrefixAndCase(t *testing.T) {
	svc := NewHMACSignatureService()
	signature := svc.Sign("key", "body")

	assert.True(t, svc.Verify("key", "body", "sha256="+signature))
	assert.True(t, svc.Verify("key", "body", strings.ToUpper(signature)))
}

func TestHMACSignatureService_VerifyFails(t *testing.T) {
	svc := NewHMACSignatureService()
	signature := svc.Sign("correct-key", "original payload")

	assert.False(t, svc.Verify("wrong-key", "original payload", signature))
	assert.False(t, svc.Verify("correct-key", "tampered payload", signature))
	assert.False(t, svc.Verify("correct-key", "original payload", "invalidsignature"))
	assert.False(t, svc.Verify("correct-key", "original payload", ""))
}

func TestHMACSignatureService_DeterministicSign(t *testing.T) {
	svc := NewHMACSignatureService()
	assert.Equal(t, svc.Sign("key", "data"), svc.Sign("key", "data"))
}
