package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyCallbackSignature(t *testing.T) {
	secret := "test_secret"
	signature := sign("plink_Abc123|pay_Xyz789", secret)

	assert.True(t, VerifyCallbackSignature("plink_Abc123", "pay_Xyz789", signature, secret))
	assert.False(t, VerifyCallbackSignature("plink_Abc123", "pay_Xyz789", signature, "other_secret"))
	assert.False(t, VerifyCallbackSignature("plink_Other", "pay_Xyz789", signature, secret))
	assert.False(t, VerifyCallbackSignature("plink_Abc123", "pay_Xyz789", "forged", secret))
	assert.False(t, VerifyCallbackSignature("plink_Abc123", "pay_Xyz789", "", secret))
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "webhook_secret"
	body := []byte(`{"event":"payment_link.paid"}`)
	signature := sign(string(body), secret)

	assert.True(t, VerifyWebhookSignature(body, signature, secret))
	assert.False(t, VerifyWebhookSignature([]byte(`{"event":"tampered"}`), signature, secret))
	assert.False(t, VerifyWebhookSignature(body, signature, "other_secret"))
}
