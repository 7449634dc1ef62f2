package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
)

// SignatureHeader carries the HMAC over the raw request body.
const SignatureHeader = "X-Webhook-Signature"

const signaturePrefix = "sha256="

// VerifySignature checks header against an HMAC-SHA256 of body keyed with
// secret. Verification happens before any parsing and fails closed: a missing
// or malformed header is as fatal as a wrong digest.
func VerifySignature(body []byte, header, secret string) error {
	if header == "" {
		return &models.SignatureVerificationError{Reason: "missing signature header"}
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return &models.SignatureVerificationError{Reason: "malformed signature header"}
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return &models.SignatureVerificationError{Reason: "signature is not valid hex"}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	if !hmac.Equal(provided, expected) {
		return &models.SignatureVerificationError{Reason: "signature mismatch"}
	}
	return nil
}

// Sign computes the header value for a body; used by tests and by local
// tooling that replays deliveries.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
