package store

import (
	"context"
)

// Store is the storage handle shared by every subsystem of a node.
//
// Store MUST be thread safe.
type Store interface {
	// Height returns the height of the highest block saved in the Store.
	Height(ctx context.Context) (uint64, error)

	// SetHeight sets the height saved in the Store if it is higher than the existing height.
	SetHeight(ctx context.Context, height uint64) error

	// SaveBlock atomically saves the result of executing the block at height
	// and advances the stored height. Heights must strictly increase.
	SaveBlock(ctx context.Context, height uint64, stateRoot []byte, txCount int) error

	// GetStateRoot returns the state root produced at height.
	GetStateRoot(ctx context.Context, height uint64) ([]byte, error)

	// GetTxCount returns the number of transactions executed at height.
	GetTxCount(ctx context.Context, height uint64) (int, error)

	// SetFinalized records signature as the finality attestation of height
	// and advances the finalized height. Lower heights are ignored.
	SetFinalized(ctx context.Context, height uint64, signature []byte) error

	// FinalizedHeight returns the highest finalized height, 0 if none.
	FinalizedHeight(ctx context.Context) (uint64, error)

	// GetFinalitySignature returns the attestation recorded for height.
	GetFinalitySignature(ctx context.Context, height uint64) ([]byte, error)

	// SetMetadata saves arbitrary value in the store.
	//
	// This method enables collaborators to safely persist any information.
	SetMetadata(ctx context.Context, key string, value []byte) error

	// GetMetadata returns values stored for given key with SetMetadata.
	GetMetadata(ctx context.Context, key string) ([]byte, error)

	// Health performs a write-read round trip against the underlying datastore.
	Health(ctx context.Context) error

	// Close safely closes underlying data storage, to ensure that data is actually saved.
	Close() error
}
