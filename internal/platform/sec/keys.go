// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"
)

// Key purposes. Each one yields an independent key from the same secret.
const (
	PurposeHandoffTicket = "avelar-gateway/handoff-ticket/v1"
	PurposeCookieHash    = "avelar-gateway/cookie-hash/v1"
	PurposeCookieBlock   = "avelar-gateway/cookie-block/v1"
)

// fingerprintSize is the number of BLAKE3 output bytes kept in a fingerprint.
const fingerprintSize = 12

// DeriveKey expands the shared secret into a purpose-bound key of the given size.
func DeriveKey(secret []byte, purpose string, size int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, nil, []byte(purpose))

	key := make([]byte, size)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("sec: failed to derive %s key: %w", purpose, err)
	}

	return key, nil
}

// Fingerprint returns a short, stable, non-reversible identifier for a bearer token.
// Logs and audit rows carry the fingerprint, never the token.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:fingerprintSize])
}
