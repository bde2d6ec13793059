package consensus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rollkit/rollnode/pkg/config"
	"github.com/rollkit/rollnode/pkg/log"
	"github.com/rollkit/rollnode/pkg/signer"
	"github.com/rollkit/rollnode/pkg/store"
)

// Role is a consensus duty of a node.
type Role string

const (
	// Attester signs finality attestations for produced blocks.
	Attester Role = config.RoleAttester
	// Observer tracks finality without signing.
	Observer Role = config.RoleObserver
)

// ErrNoRoles is returned by NewParticipant for an empty role set.
var ErrNoRoles = errors.New("consensus participant needs at least one role")

// Participant finalizes produced blocks. It only interacts with the block
// producer through the store: it reads produced heights and state roots and
// writes finalized heights.
type Participant struct {
	chainID  string
	interval time.Duration
	roles    map[Role]struct{}

	signer  signer.Signer
	store   store.Store
	logger  log.Logger
	metrics *Metrics

	started  atomic.Bool
	quit     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewParticipant creates a participant for the configured roles. The
// attester role requires a signer.
func NewParticipant(cfg config.Config, sgn signer.Signer, st store.Store, logger log.Logger, metrics *Metrics) (*Participant, error) {
	if len(cfg.Consensus.Roles) == 0 {
		return nil, ErrNoRoles
	}
	roles := make(map[Role]struct{}, len(cfg.Consensus.Roles))
	for _, r := range cfg.Consensus.Roles {
		role := Role(r)
		if role != Attester && role != Observer {
			return nil, fmt.Errorf("unknown consensus role %q", r)
		}
		roles[role] = struct{}{}
	}
	if _, ok := roles[Attester]; ok && sgn == nil {
		return nil, errors.New("attester role requires a signer")
	}
	if metrics == nil {
		metrics = NopMetrics()
	}

	l := logger.With("module", "consensus")
	if sgn != nil {
		l = l.With("signer", signer.ID(sgn))
	}
	return &Participant{
		chainID:  cfg.ChainID,
		interval: cfg.Consensus.FinalityInterval.Duration,
		roles:    roles,
		signer:   sgn,
		store:    st,
		logger:   l,
		metrics:  metrics,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// HasRole reports whether the participant was configured with role.
func (p *Participant) HasRole(role Role) bool {
	_, ok := p.roles[role]
	return ok
}

// Run executes a finality round every interval until ctx is cancelled, Stop
// is called, or a round fails.
func (p *Participant) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return errors.New("participant already started")
	}
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.quit:
			p.logger.Info("consensus participant stopped")
			return nil
		case <-ticker.C:
			if err := p.round(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
		}
	}
}

// Stop ends the round loop and waits for Run to return or for ctx to expire.
// Stop is idempotent.
func (p *Participant) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.quit) })
	if !p.started.Load() {
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for consensus participant to stop: %w", ctx.Err())
	}
}

func (p *Participant) round(ctx context.Context) error {
	produced, err := p.store.Height(ctx)
	if err != nil {
		return fmt.Errorf("failed to read produced height: %w", err)
	}
	finalized, err := p.store.FinalizedHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to read finalized height: %w", err)
	}

	if p.HasRole(Attester) {
		for h := finalized + 1; h <= produced; h++ {
			if err := p.attest(ctx, h); err != nil {
				return err
			}
			finalized = h
		}
	}

	p.metrics.FinalizedHeight.Set(float64(finalized))
	p.metrics.FinalityLag.Set(float64(produced - finalized))
	if p.HasRole(Observer) && produced > finalized {
		p.logger.Debug("finality lag", "produced", produced, "finalized", finalized)
	}
	return nil
}

func (p *Participant) attest(ctx context.Context, height uint64) error {
	root, err := p.store.GetStateRoot(ctx, height)
	if err != nil {
		return fmt.Errorf("failed to load state root at height %d: %w", height, err)
	}
	sig, err := p.signer.Sign(AttestationBytes(p.chainID, height, root))
	if err != nil {
		return fmt.Errorf("failed to sign attestation for height %d: %w", height, err)
	}
	if err := p.store.SetFinalized(ctx, height, sig); err != nil {
		return fmt.Errorf("failed to finalize height %d: %w", height, err)
	}
	p.metrics.Attestations.Add(1)
	p.logger.Debug("finalized block", "height", height)
	return nil
}

// AttestationBytes returns the message an attester signs for height:
// chainID|height|stateRoot.
func AttestationBytes(chainID string, height uint64, stateRoot []byte) []byte {
	msg := make([]byte, 0, len(chainID)+len(stateRoot)+22)
	msg = append(msg, chainID...)
	msg = append(msg, '|')
	msg = strconv.AppendUint(msg, height, 10)
	msg = append(msg, '|')
	return append(msg, stateRoot...)
}
