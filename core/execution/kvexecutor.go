package execution

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultMaxBytes is the transaction byte budget KVExecutor reports per block.
const DefaultMaxBytes = 1024

var (
	// ErrMalformedTx is returned for a transaction that is not of the form key=value.
	ErrMalformedTx = errors.New("malformed transaction; expected format key=value")
	// ErrFinalizedRegression is returned by SetFinal for a height below the finalized height.
	ErrFinalizedRegression = errors.New("finalized height cannot decrease")
)

// KVExecutor is a simple in-memory key-value store that implements the Executor interface.
// It maintains an in-memory store and a mempool for transactions.
type KVExecutor struct {
	mu      sync.Mutex
	store   map[string]string
	mempool [][]byte

	// genesisStateRoot is set by the first InitChain
	genesisStateRoot []byte
	finalHeight      uint64
	maxBytes         uint64
	lastWrites       WriteStats
}

var (
	_ Executor      = (*KVExecutor)(nil)
	_ WriteReporter = (*KVExecutor)(nil)
)

// NewKVExecutor creates a new instance of KVExecutor with initialized store and mempool.
func NewKVExecutor() *KVExecutor {
	return &KVExecutor{
		store:    make(map[string]string),
		mempool:  make([][]byte, 0),
		maxBytes: DefaultMaxBytes,
	}
}

// InjectTx validates tx and appends it to the mempool.
func (k *KVExecutor) InjectTx(tx []byte) error {
	if _, _, err := parseTx(tx); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.mempool = append(k.mempool, append([]byte(nil), tx...))
	return nil
}

// GetStoreValue returns the value for a key.
func (k *KVExecutor) GetStoreValue(key string) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	value, exists := k.store[key]
	return value, exists
}

// FinalizedHeight returns the last height passed to SetFinal.
func (k *KVExecutor) FinalizedHeight() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.finalHeight
}

// computeStateRoot hashes the sorted key-value pairs.
func (k *KVExecutor) computeStateRoot() []byte {
	keys := make([]string, 0, len(k.store))
	for key := range k.store {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, key := range keys {
		fmt.Fprintf(h, "%s:%s;", key, k.store[key])
	}
	return h.Sum(nil)
}

// InitChain initializes the chain state with genesis parameters.
// If genesis has already been set, it returns the previously computed genesis state root.
func (k *KVExecutor) InitChain(ctx context.Context, genesisTime time.Time, initialHeight uint64, chainID string) ([]byte, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if initialHeight == 0 {
		return nil, 0, errors.New("initial height must be greater than 0")
	}
	if chainID == "" {
		return nil, 0, errors.New("chain id is required")
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.genesisStateRoot != nil {
		return k.genesisStateRoot, k.maxBytes, nil
	}
	k.store = make(map[string]string)
	k.genesisStateRoot = k.computeStateRoot()
	return k.genesisStateRoot, k.maxBytes, nil
}

// GetTxs retrieves transactions from the mempool without removing them.
func (k *KVExecutor) GetTxs(ctx context.Context) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	txs := make([][]byte, len(k.mempool))
	copy(txs, k.mempool)
	return txs, nil
}

// ExecuteTxs applies each key=value transaction to the store and removes the
// executed transactions from the mempool.
func (k *KVExecutor) ExecuteTxs(ctx context.Context, txs [][]byte, blockHeight uint64, timestamp time.Time, prevStateRoot []byte) ([]byte, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if blockHeight == 0 {
		return nil, 0, errors.New("blockHeight must be greater than 0")
	}

	type kv struct{ key, value string }
	parsed := make([]kv, 0, len(txs))
	for _, tx := range txs {
		key, value, err := parseTx(tx)
		if err != nil {
			return nil, 0, fmt.Errorf("block %d: %w", blockHeight, err)
		}
		parsed = append(parsed, kv{key, value})
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	// a key written several times in one block counts once, with its final value
	final := make(map[string]string, len(parsed))
	for _, p := range parsed {
		final[p.key] = p.value
	}
	var stats WriteStats
	for key, value := range final {
		if _, exists := k.store[key]; exists {
			stats.Repeated++
		} else {
			stats.Initial++
		}
		stats.UpdatedBytes += len(value)
		k.store[key] = value
	}
	k.lastWrites = stats
	k.removeFromMempool(txs)
	return k.computeStateRoot(), k.maxBytes, nil
}

// LastWriteStats returns the writes of the last executed block.
func (k *KVExecutor) LastWriteStats() WriteStats {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lastWrites
}

func (k *KVExecutor) removeFromMempool(txs [][]byte) {
	for _, tx := range txs {
		for i, m := range k.mempool {
			if bytes.Equal(m, tx) {
				k.mempool = append(k.mempool[:i], k.mempool[i+1:]...)
				break
			}
		}
	}
}

// SetFinal marks a block as finalized. Repeating a height is a no-op.
func (k *KVExecutor) SetFinal(ctx context.Context, blockHeight uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if blockHeight == 0 {
		return errors.New("blockHeight must be greater than 0")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if blockHeight < k.finalHeight {
		return fmt.Errorf("%w: %d < %d", ErrFinalizedRegression, blockHeight, k.finalHeight)
	}
	k.finalHeight = blockHeight
	return nil
}

func parseTx(tx []byte) (string, string, error) {
	parts := strings.SplitN(string(tx), "=", 2)
	if len(parts) != 2 {
		return "", "", ErrMalformedTx
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return "", "", fmt.Errorf("%w: empty key", ErrMalformedTx)
	}
	return key, strings.TrimSpace(parts[1]), nil
}
