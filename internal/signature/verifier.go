// Package signature verifies Meta webhook signatures: HMAC-SHA256 over the
// raw request body, carried in the x-hub-signature-256 header as
// "sha256=<hex>".
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Header is the request header carrying the signature.
const Header = "x-hub-signature-256"

const hexPrefix = "sha256="

// Verification failure codes.
const (
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodeMissingSignature = "MISSING_SIGNATURE"
	CodeMissingRawBody   = "MISSING_RAW_BODY"
)

// Result reports a verification outcome. Code is set only when Valid is
// false.
type Result struct {
	Valid bool
	Code  string
}

// Verifier checks webhook signatures against a shared secret. A verifier
// built with an empty secret is disabled and accepts everything; callers
// must only allow that in development.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool { return len(v.secret) > 0 }

// Verify checks header against the HMAC of rawBody. rawBody must be the
// exact bytes received on the wire; a nil body signals a wiring fault
// upstream (the adapter failed to capture the body) and is reported as
// MISSING_RAW_BODY rather than a signature mismatch. An empty non-nil body
// is legitimate and verifies against the MAC of zero bytes.
func (v *Verifier) Verify(rawBody []byte, header string) Result {
	if !v.Enabled() {
		return Result{Valid: true}
	}
	if rawBody == nil {
		return Result{Code: CodeMissingRawBody}
	}
	if header == "" {
		return Result{Code: CodeMissingSignature}
	}
	hexMAC, found := strings.CutPrefix(header, hexPrefix)
	if !found {
		return Result{Code: CodeInvalidSignature}
	}
	claimed, err := hex.DecodeString(hexMAC)
	if err != nil {
		return Result{Code: CodeInvalidSignature}
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawBody)
	if !hmac.Equal(mac.Sum(nil), claimed) {
		return Result{Code: CodeInvalidSignature}
	}
	return Result{Valid: true}
}

// Sign computes the header value for body, the counterpart of Verify.
// Tests and staging tools use it to produce valid deliveries.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hexPrefix + hex.EncodeToString(mac.Sum(nil))
}
