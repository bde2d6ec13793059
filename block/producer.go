package block

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	ds "github.com/ipfs/go-datastore"

	"github.com/rollkit/rollnode/core/execution"
	"github.com/rollkit/rollnode/pkg/config"
	"github.com/rollkit/rollnode/pkg/log"
	"github.com/rollkit/rollnode/pkg/store"
)

// GenesisTimeKey is the metadata key holding the chain's genesis time.
const GenesisTimeKey = "genesis_time"

// initialHeight is the height of the first produced block.
const initialHeight = 1

// Producer drives the executor: on every block time tick it pulls
// transactions, executes them on top of the previous state root, saves the
// result and forwards the finalized height back to the executor.
type Producer struct {
	chainID     string
	blockTime   time.Duration
	maxTxsBytes uint64

	exec    execution.Executor
	store   store.Store
	logger  log.Logger
	metrics *Metrics

	started  atomic.Bool
	quit     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// loop state, owned by Run
	height        uint64
	stateRoot     []byte
	maxBytes      uint64
	lastFinalized uint64
}

// NewProducer creates a block producer bound to exec and st.
func NewProducer(cfg config.Config, exec execution.Executor, st store.Store, logger log.Logger, metrics *Metrics) *Producer {
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Producer{
		chainID:     cfg.ChainID,
		blockTime:   cfg.Node.BlockTime.Duration,
		maxTxsBytes: cfg.Node.MaxTxsBytes,
		exec:        exec,
		store:       st,
		logger:      logger.With("module", "producer"),
		metrics:     metrics,
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Run produces blocks until ctx is cancelled, Stop is called, or the executor
// or the store fails. Run must be called at most once.
func (p *Producer) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return errors.New("producer already started")
	}
	defer close(p.done)

	if err := p.resume(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	// blockTimer is used to signal when to build a block based on the
	// chain block time. A timer is used so that the time to build a block
	// can be taken into account.
	blockTimer := time.NewTimer(p.blockTime)
	defer blockTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.quit:
			p.logger.Info("block production stopped", "height", p.height)
			return nil
		case <-blockTimer.C:
			start := time.Now()
			if err := p.produceBlock(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("error while producing block %d: %w", p.height+1, err)
			}
			blockTimer.Reset(getRemainingSleep(start, p.blockTime))
		}
	}
}

// Stop ends the production loop after the current block and waits for Run to
// return or for ctx to expire. Stop is idempotent.
func (p *Producer) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.quit) })
	if !p.started.Load() {
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for block production to stop: %w", ctx.Err())
	}
}

// resume picks up from the stored height or initializes the chain.
func (p *Producer) resume(ctx context.Context) error {
	genesisTime, err := p.genesisTime(ctx)
	if err != nil {
		return err
	}

	root, maxBytes, err := p.exec.InitChain(ctx, genesisTime, initialHeight, p.chainID)
	if err != nil {
		return fmt.Errorf("failed to initialize chain: %w", err)
	}
	p.maxBytes = maxBytes

	height, err := p.store.Height(ctx)
	if err != nil {
		return fmt.Errorf("failed to read store height: %w", err)
	}
	if height == 0 {
		p.stateRoot = root
		p.logger.Info("initialized chain", "chainID", p.chainID, "genesisTime", genesisTime)
		return nil
	}

	p.height = height
	p.stateRoot, err = p.store.GetStateRoot(ctx, height)
	if err != nil {
		return fmt.Errorf("failed to load state root at height %d: %w", height, err)
	}
	p.lastFinalized, err = p.store.FinalizedHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to read finalized height: %w", err)
	}
	p.metrics.Height.Set(float64(height))
	p.logger.Info("resuming block production", "height", height, "finalized", p.lastFinalized)
	return nil
}

func (p *Producer) genesisTime(ctx context.Context) (time.Time, error) {
	raw, err := p.store.GetMetadata(ctx, GenesisTimeKey)
	if err == nil {
		var t time.Time
		if err := t.UnmarshalText(raw); err != nil {
			return time.Time{}, fmt.Errorf("failed to decode genesis time: %w", err)
		}
		return t, nil
	}
	if !errors.Is(err, ds.ErrNotFound) {
		return time.Time{}, err
	}

	t := time.Now().UTC()
	raw, err = t.MarshalText()
	if err != nil {
		return time.Time{}, err
	}
	if err := p.store.SetMetadata(ctx, GenesisTimeKey, raw); err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func (p *Producer) produceBlock(ctx context.Context) error {
	newHeight := p.height + 1

	txs, err := p.exec.GetTxs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get transactions: %w", err)
	}
	txs, size := capTxs(txs, p.txsLimit())

	execStart := time.Now()
	newRoot, maxBytes, err := p.exec.ExecuteTxs(ctx, txs, newHeight, execStart.UTC(), p.stateRoot)
	if err != nil {
		return fmt.Errorf("failed to execute transactions: %w", err)
	}
	p.metrics.ExecutionTime.Observe(time.Since(execStart).Seconds())
	if reporter, ok := p.exec.(execution.WriteReporter); ok {
		w := reporter.LastWriteStats()
		p.metrics.InitialWrites.Add(float64(w.Initial))
		p.metrics.RepeatedWrites.Add(float64(w.Repeated))
		p.metrics.UpdatedBytes.Add(float64(w.UpdatedBytes))
	}

	saveStart := time.Now()
	if err := p.store.SaveBlock(ctx, newHeight, newRoot, len(txs)); err != nil {
		return fmt.Errorf("failed to save block: %w", err)
	}
	p.metrics.SaveTime.Observe(time.Since(saveStart).Seconds())

	p.height = newHeight
	p.stateRoot = newRoot
	if maxBytes > 0 {
		p.maxBytes = maxBytes
	}

	p.metrics.Height.Set(float64(newHeight))
	p.metrics.NumTxs.Set(float64(len(txs)))
	p.metrics.TotalTxs.Add(float64(len(txs)))
	p.metrics.BlockSizeBytes.Set(float64(size))
	p.logger.Debug("produced block", "height", newHeight, "txs", len(txs))

	return p.forwardFinality(ctx)
}

// forwardFinality passes the finalized height recorded by the consensus
// participant to the executor.
func (p *Producer) forwardFinality(ctx context.Context) error {
	finalized, err := p.store.FinalizedHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to read finalized height: %w", err)
	}
	if finalized <= p.lastFinalized {
		return nil
	}
	if err := p.exec.SetFinal(ctx, finalized); err != nil {
		return fmt.Errorf("failed to set final height %d: %w", finalized, err)
	}
	p.lastFinalized = finalized
	p.metrics.FinalizedHeight.Set(float64(finalized))
	return nil
}

func (p *Producer) txsLimit() uint64 {
	if p.maxTxsBytes > 0 && (p.maxBytes == 0 || p.maxTxsBytes < p.maxBytes) {
		return p.maxTxsBytes
	}
	return p.maxBytes
}

// capTxs returns the longest prefix of txs whose total size fits in limit.
// A zero limit means no limit.
func capTxs(txs [][]byte, limit uint64) ([][]byte, uint64) {
	var size uint64
	for i, tx := range txs {
		txSize := uint64(len(tx))
		if limit > 0 && size+txSize > limit {
			return txs[:i], size
		}
		size += txSize
	}
	return txs, size
}

func getRemainingSleep(start time.Time, interval time.Duration) time.Duration {
	elapsed := time.Since(start)
	if elapsed < interval {
		return interval - elapsed
	}

	return time.Millisecond
}
