// Package signer implements the pure signature predicate that authorizes
// quest completions. A completion is attested off-system: the holder of the
// designated signing key signs a message binding (authority, account, quest
// id), and the engine accepts the completion only if that signature
// verifies against the authority's public key.
package signer

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// VerifyFunc is the predicate shape the engine consumes.
type VerifyFunc func(authority, account string, questID int64, sig []byte) bool

// Message builds the signed payload. It includes the authority so a
// signature minted under one signing key cannot be replayed after the key
// rotates, and binds account and quest id so it cannot be reused for a
// different account or quest.
func Message(authority, account string, questID int64) []byte {
	return []byte(fmt.Sprintf("questledger/v1|%s|%s|%d", authority, account, questID))
}

// Verify reports whether sig is a valid ed25519 signature over
// Message(authority, account, questID) by the authority's key. The
// authority is a hex-encoded ed25519 public key; malformed authorities or
// signatures verify as false rather than erroring.
func Verify(authority, account string, questID int64, sig []byte) bool {
	pub, err := hex.DecodeString(authority)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), Message(authority, account, questID), sig)
}

// Sign produces a completion attestation with the given private key.
// Used by signing tooling and tests; the server itself only verifies.
func Sign(priv ed25519.PrivateKey, authority, account string, questID int64) []byte {
	return ed25519.Sign(priv, Message(authority, account, questID))
}

// Identity returns the hex-encoded authority string for a public key.
func Identity(pub ed25519.PublicKey) string {
	return hex.EncodeToString(pub)
}
