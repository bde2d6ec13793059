package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	ds "github.com/ipfs/go-datastore"
)

var (
	// ErrClosed is returned by every operation on a closed Store.
	ErrClosed = errors.New("store is closed")
	// ErrHeightNotIncreasing is returned by SaveBlock for a height at or below the stored height.
	ErrHeightNotIncreasing = errors.New("block height must increase")
	// ErrNotProduced is returned by SetFinalized for a height above the stored height.
	ErrNotProduced = errors.New("height has not been produced")
)

// DefaultStore is a default store implementation.
type DefaultStore struct {
	db ds.Batching

	// serializes read-modify-write of the height keys
	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

var _ Store = &DefaultStore{}

// New returns new, default store.
func New(db ds.Batching) *DefaultStore {
	return &DefaultStore{
		db:     db,
		closed: make(chan struct{}),
	}
}

func (s *DefaultStore) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Close safely closes underlying data storage, to ensure that data is actually saved.
// Only the first call closes the datastore.
func (s *DefaultStore) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		close(s.closed)
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// Height returns height of the highest block saved in the Store.
func (s *DefaultStore) Height(ctx context.Context) (uint64, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	return s.getUint64(ctx, getHeightKey())
}

// SetHeight sets the height saved in the Store if it is higher than the existing height
func (s *DefaultStore) SetHeight(ctx context.Context, height uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed() {
		return ErrClosed
	}

	currentHeight, err := s.getUint64(ctx, getHeightKey())
	if err != nil {
		return err
	}
	if height <= currentHeight {
		return nil
	}
	return s.db.Put(ctx, ds.NewKey(getHeightKey()), encodeHeight(height))
}

// SaveBlock saves the state root and transaction count of the block at height
// and the new height in one batch.
func (s *DefaultStore) SaveBlock(ctx context.Context, height uint64, stateRoot []byte, txCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed() {
		return ErrClosed
	}

	currentHeight, err := s.getUint64(ctx, getHeightKey())
	if err != nil {
		return err
	}
	if height <= currentHeight {
		return fmt.Errorf("%w: saving %d at stored height %d", ErrHeightNotIncreasing, height, currentHeight)
	}

	batch, err := s.db.Batch(ctx)
	if err != nil {
		return fmt.Errorf("failed to create a new batch: %w", err)
	}
	if err := batch.Put(ctx, ds.NewKey(getStateRootKey(height)), stateRoot); err != nil {
		return fmt.Errorf("failed to put state root in batch: %w", err)
	}
	if err := batch.Put(ctx, ds.NewKey(getTxCountKey(height)), []byte(strconv.Itoa(txCount))); err != nil {
		return fmt.Errorf("failed to put tx count in batch: %w", err)
	}
	if err := batch.Put(ctx, ds.NewKey(getHeightKey()), encodeHeight(height)); err != nil {
		return fmt.Errorf("failed to put height in batch: %w", err)
	}
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// GetStateRoot returns the state root saved for height.
func (s *DefaultStore) GetStateRoot(ctx context.Context, height uint64) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	root, err := s.db.Get(ctx, ds.NewKey(getStateRootKey(height)))
	if err != nil {
		return nil, fmt.Errorf("failed to load state root at height %d: %w", height, err)
	}
	return root, nil
}

// GetTxCount returns the transaction count saved for height.
func (s *DefaultStore) GetTxCount(ctx context.Context, height uint64) (int, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	raw, err := s.db.Get(ctx, ds.NewKey(getTxCountKey(height)))
	if err != nil {
		return 0, fmt.Errorf("failed to load tx count at height %d: %w", height, err)
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("failed to decode tx count at height %d: %w", height, err)
	}
	return n, nil
}

// SetFinalized saves the finality signature of height and advances the
// finalized height.
func (s *DefaultStore) SetFinalized(ctx context.Context, height uint64, signature []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed() {
		return ErrClosed
	}

	finalized, err := s.getUint64(ctx, getFinalizedKey())
	if err != nil {
		return err
	}
	if height <= finalized {
		return nil
	}
	produced, err := s.getUint64(ctx, getHeightKey())
	if err != nil {
		return err
	}
	if height > produced {
		return fmt.Errorf("%w: finalizing %d at stored height %d", ErrNotProduced, height, produced)
	}

	batch, err := s.db.Batch(ctx)
	if err != nil {
		return fmt.Errorf("failed to create a new batch: %w", err)
	}
	if err := batch.Put(ctx, ds.NewKey(getSignatureKey(height)), signature); err != nil {
		return fmt.Errorf("failed to put signature in batch: %w", err)
	}
	if err := batch.Put(ctx, ds.NewKey(getFinalizedKey()), encodeHeight(height)); err != nil {
		return fmt.Errorf("failed to put finalized height in batch: %w", err)
	}
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// FinalizedHeight returns the highest finalized height.
func (s *DefaultStore) FinalizedHeight(ctx context.Context) (uint64, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	return s.getUint64(ctx, getFinalizedKey())
}

// GetFinalitySignature returns the signature saved with SetFinalized.
func (s *DefaultStore) GetFinalitySignature(ctx context.Context, height uint64) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	sig, err := s.db.Get(ctx, ds.NewKey(getSignatureKey(height)))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve signature from height %v: %w", height, err)
	}
	return sig, nil
}

// SetMetadata saves arbitrary value in the store.
//
// Metadata is separated from other data by using prefix in KV.
func (s *DefaultStore) SetMetadata(ctx context.Context, key string, value []byte) error {
	if s.isClosed() {
		return ErrClosed
	}
	err := s.db.Put(ctx, ds.NewKey(getMetaKey(key)), value)
	if err != nil {
		return fmt.Errorf("failed to set metadata for key '%s': %w", key, err)
	}
	return nil
}

// GetMetadata returns values stored for given key with SetMetadata.
func (s *DefaultStore) GetMetadata(ctx context.Context, key string) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	data, err := s.db.Get(ctx, ds.NewKey(getMetaKey(key)))
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata for key '%s': %w", key, err)
	}
	return data, nil
}

// Health writes the current time to a reserved key and reads it back.
func (s *DefaultStore) Health(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	key := ds.NewKey(getHealthKey())
	probe := encodeHeight(uint64(time.Now().UnixNano()))
	if err := s.db.Put(ctx, key, probe); err != nil {
		return fmt.Errorf("health probe write: %w", err)
	}
	got, err := s.db.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("health probe read: %w", err)
	}
	if string(got) != string(probe) {
		return errors.New("health probe read back a different value")
	}
	return nil
}

func (s *DefaultStore) getUint64(ctx context.Context, key string) (uint64, error) {
	raw, err := s.db.Get(ctx, ds.NewKey(key))
	if errors.Is(err, ds.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return decodeHeight(raw)
}

const heightLength = 8

func encodeHeight(height uint64) []byte {
	heightBytes := make([]byte, heightLength)
	binary.BigEndian.PutUint64(heightBytes, height)
	return heightBytes
}

func decodeHeight(heightBytes []byte) (uint64, error) {
	if len(heightBytes) != heightLength {
		return 0, fmt.Errorf("invalid height length: %d (expected %d)", len(heightBytes), heightLength)
	}
	return binary.BigEndian.Uint64(heightBytes), nil
}
