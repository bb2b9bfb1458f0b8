package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/bazario-dev/bazario-backend/pkg/errors"
)

// ComputeSignature returns the hex HMAC-SHA256 of the raw callback body.
func (c *Client) ComputeSignature(body []byte) string {
	mac := hmac.New(sha256.New, c.signingSecret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallback checks the gateway's signature over the raw request body.
// Comparison is constant time.
func (c *Client) VerifyCallback(body []byte, signature string) error {
	if signature == "" {
		return errors.New(errors.CodeUnauthorized, "missing callback signature")
	}
	expected := c.ComputeSignature(body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errors.New(errors.CodeUnauthorized, "invalid callback signature")
	}
	return nil
}
