package noop

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"

	"github.com/rollkit/rollnode/pkg/signer"
)

// NoopSigner keeps an Ed25519 key pair in memory and never persists it.
type NoopSigner struct {
	privKey crypto.PrivKey
	pubKey  crypto.PubKey
	address []byte
}

// NewNoopSigner creates a new signer for privKey.
func NewNoopSigner(privKey crypto.PrivKey) (signer.Signer, error) {
	sig := &NoopSigner{
		privKey: privKey,
		pubKey:  privKey.GetPublic(),
	}

	address, err := signer.Address(sig.pubKey)
	if err != nil {
		return nil, err
	}
	sig.address = address

	return sig, nil
}

// NewEphemeral creates a signer with a fresh Ed25519 key pair.
func NewEphemeral() (signer.Signer, error) {
	privKey, _, err := crypto.GenerateEd25519Key(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return NewNoopSigner(privKey)
}

// NewNoopSignerFromPubKey creates a new signer from a public key.
// The returned signer can't be used to sign messages.
func NewNoopSignerFromPubKey(pubKey crypto.PubKey) (signer.Signer, error) {
	address, err := signer.Address(pubKey)
	if err != nil {
		return nil, err
	}
	return &NoopSigner{pubKey: pubKey, address: address}, nil
}

// Sign implements the Signer interface by signing the message with the Ed25519 private key.
func (n *NoopSigner) Sign(message []byte) ([]byte, error) {
	if n.privKey == nil {
		return nil, fmt.Errorf("private key not loaded")
	}
	return n.privKey.Sign(message)
}

// GetPublic implements the Signer interface by returning the Ed25519 public key.
func (n *NoopSigner) GetPublic() (crypto.PubKey, error) {
	return n.pubKey, nil
}

// GetAddress implements the Signer interface by returning the Ed25519 address.
func (n *NoopSigner) GetAddress() ([]byte, error) {
	return n.address, nil
}
