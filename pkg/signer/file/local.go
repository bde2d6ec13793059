package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/libp2p/go-libp2p/core/crypto"

	rollos "github.com/rollkit/rollnode/pkg/os"
	"github.com/rollkit/rollnode/pkg/signer"
)

// FileSystemSigner implements a signer whose key pair is persisted on disk.
type FileSystemSigner struct {
	mu         sync.RWMutex
	privateKey crypto.PrivKey
	publicKey  crypto.PubKey
	keyFile    string
}

var _ signer.Signer = (*FileSystemSigner)(nil)

// keyData represents the key data stored on disk
type keyData struct {
	PrivKeyBytes []byte `json:"priv_key"`
	PubKeyBytes  []byte `json:"pub_key"`
}

// LoadOrGenSigner loads the key stored at filePath, generating and saving a
// new Ed25519 key pair if the file does not exist.
func LoadOrGenSigner(filePath string) (*FileSystemSigner, error) {
	if rollos.FileExists(filePath) {
		return LoadFileSystemSigner(filePath)
	}
	return CreateFileSystemSigner(filePath)
}

// CreateFileSystemSigner creates a new key pair and saves it to filePath.
// It fails if the file already exists.
func CreateFileSystemSigner(filePath string) (*FileSystemSigner, error) {
	if rollos.FileExists(filePath) {
		return nil, fmt.Errorf("key file already exists at %s", filePath)
	}

	privKey, pubKey, err := crypto.GenerateKeyPair(crypto.Ed25519, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	s := &FileSystemSigner{
		privateKey: privKey,
		publicKey:  pubKey,
		keyFile:    filePath,
	}
	if err := s.saveKeys(); err != nil {
		// Attempt to clean up the file if saving failed partially
		_ = os.Remove(filePath)
		return nil, fmt.Errorf("failed to save keys: %w", err)
	}
	return s, nil
}

// LoadFileSystemSigner loads an existing key pair from filePath.
func LoadFileSystemSigner(filePath string) (*FileSystemSigner, error) {
	jsonBytes, err := os.ReadFile(filePath) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	var data keyData
	if err := json.Unmarshal(jsonBytes, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key data: %w", err)
	}

	privKey, err := crypto.UnmarshalEd25519PrivateKey(data.PrivKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal private key: %w", err)
	}
	pubKey, err := crypto.UnmarshalEd25519PublicKey(data.PubKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal public key: %w", err)
	}
	if !privKey.GetPublic().Equals(pubKey) {
		return nil, fmt.Errorf("public key in %s does not match private key", filePath)
	}

	return &FileSystemSigner{
		privateKey: privKey,
		publicKey:  pubKey,
		keyFile:    filePath,
	}, nil
}

func (s *FileSystemSigner) saveKeys() error {
	privBytes, err := s.privateKey.Raw()
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	pubBytes, err := s.publicKey.Raw()
	if err != nil {
		return fmt.Errorf("failed to marshal public key: %w", err)
	}

	jsonBytes, err := json.Marshal(keyData{PrivKeyBytes: privBytes, PubKeyBytes: pubBytes})
	if err != nil {
		return err
	}
	if err := rollos.EnsureDir(filepath.Dir(s.keyFile), 0700); err != nil {
		return err
	}
	return rollos.WriteFile(s.keyFile, jsonBytes, 0600)
}

// Sign signs a message using the private key.
func (s *FileSystemSigner) Sign(message []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.privateKey == nil {
		return nil, fmt.Errorf("private key not loaded")
	}
	return s.privateKey.Sign(message)
}

// GetPublic returns the public key.
func (s *FileSystemSigner) GetPublic() (crypto.PubKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.publicKey == nil {
		return nil, fmt.Errorf("public key not loaded")
	}
	return s.publicKey, nil
}

// GetAddress returns the address of the signer.
func (s *FileSystemSigner) GetAddress() ([]byte, error) {
	pub, err := s.GetPublic()
	if err != nil {
		return nil, err
	}
	return signer.Address(pub)
}

// KeyFile returns the path the key pair is stored at.
func (s *FileSystemSigner) KeyFile() string {
	return s.keyFile
}
