package signer

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/libp2p/go-libp2p/core/crypto"
)

// AddressSize is the length of a signer address.
const AddressSize = 20

// Signer is an interface for signing and verifying messages.
type Signer interface {
	// Sign takes a message as bytes and returns its signature.
	Sign(message []byte) ([]byte, error)

	// GetPublic returns the public key paired with this private key.
	GetPublic() (crypto.PubKey, error)

	// GetAddress returns the address of the signer.
	GetAddress() ([]byte, error)
}

// Address returns the truncated SHA256 of the raw public key.
func Address(pubKey crypto.PubKey) ([]byte, error) {
	bz, err := pubKey.Raw()
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(bz)
	return sum[:AddressSize], nil
}

// ID returns the hex encoded address of s, or an empty string if it has no public key.
func ID(s Signer) string {
	addr, err := s.GetAddress()
	if err != nil {
		return ""
	}
	return hex.EncodeToString(addr)
}

// Verify checks sig against message with the signer's public key.
func Verify(s Signer, message, sig []byte) (bool, error) {
	pub, err := s.GetPublic()
	if err != nil {
		return false, err
	}
	return pub.Verify(message, sig)
}
