package execution

import (
	"context"
	"time"
)

// Executor defines the interface that execution clients must implement to be driven by a rollnode
// block producer. It separates block production from state transition, so execution environments
// stay pluggable.
type Executor interface {
	// InitChain initializes a new blockchain instance with genesis parameters.
	// Requirements:
	// - Must generate initial state root representing empty/genesis state
	// - Must ensure idempotency (repeated calls with identical parameters should return same results)
	// - Must return error if genesis parameters are invalid
	// - Must return maxBytes indicating maximum allowed bytes for a set of transactions in a block
	InitChain(ctx context.Context, genesisTime time.Time, initialHeight uint64, chainID string) (stateRoot []byte, maxBytes uint64, err error)

	// GetTxs fetches available transactions from the execution layer's mempool.
	// Requirements:
	// - Must return currently valid transactions only
	// - Must handle empty mempool case gracefully
	// - Must respect context cancellation/timeout
	// - Should not remove transactions from mempool
	GetTxs(ctx context.Context) ([][]byte, error)

	// ExecuteTxs processes transactions to produce a new block state.
	// Requirements:
	// - Must handle empty transaction list
	// - Must maintain deterministic execution
	// - Must respect context cancellation/timeout
	//
	// Returns the new state root and the maximum allowed transaction bytes for the next block.
	ExecuteTxs(ctx context.Context, txs [][]byte, blockHeight uint64, timestamp time.Time, prevStateRoot []byte) (updatedStateRoot []byte, maxBytes uint64, err error)

	// SetFinal marks a block as finalized at the specified height.
	// Requirements:
	// - Must be idempotent
	// - Must maintain finality guarantees (no reverting finalized blocks)
	// - Must respect context cancellation/timeout
	SetFinal(ctx context.Context, blockHeight uint64) error
}

// WriteStats counts the deduplicated state writes of one executed block.
type WriteStats struct {
	// Initial writes create a key.
	Initial int
	// Repeated writes overwrite a key that existed before the block.
	Repeated int
	// UpdatedBytes is the size of the values written.
	UpdatedBytes int
}

// WriteReporter is implemented by executors that report the writes of their
// last successful ExecuteTxs call.
type WriteReporter interface {
	LastWriteStats() WriteStats
}
