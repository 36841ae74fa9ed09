// Package signature verifies webhook payload authenticity.
//
// GitHub signs each delivery with an HMAC over the raw request body, keyed by
// the webhook secret configured on the App. Two headers may carry the result:
//
//	X-Hub-Signature-256: sha256=<hex>   (current)
//	X-Hub-Signature:     sha1=<hex>     (legacy)
//
// We prefer the SHA-256 header and fall back to SHA-1 only when it is absent.
// The comparison must run over the RAW body bytes — re-serializing parsed JSON
// would produce different bytes and a spurious mismatch.
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"strings"
)

var (
	// ErrMissingSignature is returned when a secret is configured but the
	// delivery carries neither signature header.
	ErrMissingSignature = errors.New("signature: no signature header present")

	// ErrMismatch is returned when the provided signature does not match
	// the HMAC of the body.
	ErrMismatch = errors.New("signature: signature mismatch")
)

// Verify checks the delivery signature against the shared secret.
//
// An empty secret means verification is explicitly disabled and Verify
// always succeeds — this mirrors running an App with no webhook secret
// configured, which is common in local development.
//
// sha256Header and sha1Header are the raw header values including their
// "sha256="/"sha1=" prefixes; empty string means the header was absent.
func Verify(body []byte, secret []byte, sha256Header, sha1Header string) error {
	if len(secret) == 0 {
		return nil
	}

	if sha256Header != "" {
		return compare(body, secret, sha256Header, "sha256=", sha256.New)
	}
	if sha1Header != "" {
		return compare(body, secret, sha1Header, "sha1=", sha1.New)
	}

	return ErrMissingSignature
}

// compare computes the HMAC of body and checks it against the header value.
//
// hmac.Equal is a constant-time comparison. A plain == on the hex strings
// would leak how many leading characters matched through response timing,
// which lets an attacker forge a signature byte by byte.
func compare(body, secret []byte, header, prefix string, algo func() hash.Hash) error {
	provided := strings.TrimPrefix(header, prefix)

	mac := hmac.New(algo, secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return ErrMismatch
	}
	return nil
}
