package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVExecutor_InitChain(t *testing.T) {
	exec := NewKVExecutor()
	ctx := context.Background()
	genesisTime := time.Now()

	stateRoot, maxBytes, err := exec.InitChain(ctx, genesisTime, 1, "test-chain")
	require.NoError(t, err)
	assert.Equal(t, uint64(DefaultMaxBytes), maxBytes)
	assert.Len(t, stateRoot, 32)

	// idempotent
	again, _, err := exec.InitChain(ctx, genesisTime, 1, "test-chain")
	require.NoError(t, err)
	assert.Equal(t, stateRoot, again)

	_, _, err = NewKVExecutor().InitChain(ctx, genesisTime, 0, "test-chain")
	assert.Error(t, err)
	_, _, err = NewKVExecutor().InitChain(ctx, genesisTime, 1, "")
	assert.Error(t, err)
}

func TestKVExecutor_ExecuteTxs(t *testing.T) {
	exec := NewKVExecutor()
	ctx := context.Background()
	genesisRoot, _, err := exec.InitChain(ctx, time.Now(), 1, "test-chain")
	require.NoError(t, err)

	require.NoError(t, exec.InjectTx([]byte("key1=value1")))
	require.NoError(t, exec.InjectTx([]byte("key2 = value2")))

	txs, err := exec.GetTxs(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	root, _, err := exec.ExecuteTxs(ctx, txs, 1, time.Now(), genesisRoot)
	require.NoError(t, err)
	assert.NotEqual(t, genesisRoot, root)

	v, ok := exec.GetStoreValue("key2")
	require.True(t, ok)
	assert.Equal(t, "value2", v)

	remaining, err := exec.GetTxs(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining, "executed txs leave the mempool")

	// deterministic: same state gives same root
	other := NewKVExecutor()
	_, _, err = other.InitChain(ctx, time.Now(), 1, "test-chain")
	require.NoError(t, err)
	otherRoot, _, err := other.ExecuteTxs(ctx, [][]byte{[]byte("key2=value2"), []byte("key1=value1")}, 1, time.Now(), genesisRoot)
	require.NoError(t, err)
	assert.Equal(t, root, otherRoot)
}

func TestKVExecutor_MalformedTx(t *testing.T) {
	exec := NewKVExecutor()
	ctx := context.Background()

	assert.ErrorIs(t, exec.InjectTx([]byte("novalue")), ErrMalformedTx)
	assert.ErrorIs(t, exec.InjectTx([]byte("=value")), ErrMalformedTx)

	_, _, err := exec.ExecuteTxs(ctx, [][]byte{[]byte("a=1"), []byte("bad")}, 1, time.Now(), nil)
	assert.ErrorIs(t, err, ErrMalformedTx)
	_, ok := exec.GetStoreValue("a")
	assert.False(t, ok, "a failed block applies nothing")
}

func TestKVExecutor_SetFinal(t *testing.T) {
	exec := NewKVExecutor()
	ctx := context.Background()

	require.NoError(t, exec.SetFinal(ctx, 3))
	require.NoError(t, exec.SetFinal(ctx, 3))
	assert.Equal(t, uint64(3), exec.FinalizedHeight())

	assert.ErrorIs(t, exec.SetFinal(ctx, 2), ErrFinalizedRegression)
	assert.Error(t, exec.SetFinal(ctx, 0))
}

func TestKVExecutor_ContextCancelled(t *testing.T) {
	exec := NewKVExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := exec.InitChain(ctx, time.Now(), 1, "c")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = exec.GetTxs(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, _, err = exec.ExecuteTxs(ctx, nil, 1, time.Now(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, exec.SetFinal(ctx, 1), context.Canceled)
}

func TestKVExecutor_LastWriteStats(t *testing.T) {
	exec := NewKVExecutor()
	ctx := context.Background()
	root, _, err := exec.InitChain(ctx, time.Now(), 1, "test-chain")
	require.NoError(t, err)
	assert.Equal(t, WriteStats{}, exec.LastWriteStats())

	root, _, err = exec.ExecuteTxs(ctx, [][]byte{[]byte("a=1"), []byte("b=22")}, 1, time.Now(), root)
	require.NoError(t, err)
	assert.Equal(t, WriteStats{Initial: 2, UpdatedBytes: 3}, exec.LastWriteStats())

	// a key written twice in one block counts once with its final value
	block2 := [][]byte{[]byte("a=333"), []byte("c=4"), []byte("c=55")}
	root, _, err = exec.ExecuteTxs(ctx, block2, 2, time.Now(), root)
	require.NoError(t, err)
	assert.Equal(t, WriteStats{Initial: 1, Repeated: 1, UpdatedBytes: 5}, exec.LastWriteStats())

	_, _, err = exec.ExecuteTxs(ctx, [][]byte{[]byte("broken")}, 3, time.Now(), root)
	require.ErrorIs(t, err, ErrMalformedTx)
	assert.Equal(t, WriteStats{Initial: 1, Repeated: 1, UpdatedBytes: 5}, exec.LastWriteStats(), "failed block leaves the stats untouched")
}
