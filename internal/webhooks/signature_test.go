package webhooks

import (
	"errors"
	"testing"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
)

func TestVerifySignatureAcceptsValid(t *testing.T) {
	body := []byte(`{"id":"pred-1","status":"succeeded"}`)
	secret := "shared-secret"
	if err := VerifySignature(body, Sign(body, secret), secret); err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
}

func TestVerifySignatureFailsClosed(t *testing.T) {
	body := []byte(`{"id":"pred-1","status":"succeeded"}`)
	secret := "shared-secret"

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no prefix", "abcdef0123456789"},
		{"not hex", "sha256=not-hex-at-all!"},
		{"wrong secret", Sign(body, "other-secret")},
		{"wrong body", Sign([]byte(`{"id":"pred-2"}`), secret)},
		{"truncated digest", "sha256=abcd"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifySignature(body, tc.header, secret)
			if err == nil {
				t.Fatal("expected rejection")
			}
			var sigErr *models.SignatureVerificationError
			if !errors.As(err, &sigErr) {
				t.Errorf("expected SignatureVerificationError, got %T", err)
			}
		})
	}
}
