package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyCallback(t *testing.T) {
	v := NewVerifier("shh", "")
	sig := v.Sign("order_1", "pay_1")

	assert.True(t, v.VerifyCallback("order_1", "pay_1", sig))
	assert.False(t, v.VerifyCallback("order_1", "pay_2", sig))
	assert.False(t, v.VerifyCallback("order_1", "pay_1", "zz-not-hex"))
	assert.False(t, v.VerifyCallback("order_1", "pay_1", ""))
	assert.False(t, NewVerifier("other", "").VerifyCallback("order_1", "pay_1", sig))
	assert.False(t, NewVerifier("", "").VerifyCallback("order_1", "pay_1", sig))
}

func TestVerifyWebhookBody(t *testing.T) {
	open := NewVerifier("shh", "")
	assert.True(t, open.VerifyWebhookBody([]byte(`{}`), ""))

	v := NewVerifier("shh", "hook")
	body := []byte(`{"event":"payment.captured"}`)
	assert.True(t, v.VerifyWebhookBody(body, sign([]byte("hook"), string(body))))
	assert.False(t, v.VerifyWebhookBody(body, sign([]byte("hook"), "tampered")))
}
