package node

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/rollkit/rollnode/block"
	"github.com/rollkit/rollnode/consensus"
	"github.com/rollkit/rollnode/core/execution"
	"github.com/rollkit/rollnode/pkg/config"
	"github.com/rollkit/rollnode/pkg/log"
	rpcserver "github.com/rollkit/rollnode/pkg/rpc/server"
	"github.com/rollkit/rollnode/pkg/service"
	"github.com/rollkit/rollnode/pkg/signer"
	"github.com/rollkit/rollnode/pkg/store"
	"github.com/rollkit/rollnode/pkg/supervisor"
)

// Node wires the rollup collaborators to a supervisor. It owns the store
// and releases it in Close.
type Node struct {
	Store store.Store

	config      config.Config
	producer    *block.Producer
	participant *consensus.Participant
	rpcServer   *rpcserver.Server
	sup         *supervisor.Supervisor
	logger      log.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewNode builds the block producer, the consensus participant and the
// optional RPC server, and registers them with a new supervisor together with
// the storage health monitor. Subsystems are registered in the order store,
// execution, consensus, rpc.
func NewNode(
	nodeConfig config.Config,
	exec execution.Executor,
	st store.Store,
	sgn signer.Signer,
	logger log.Logger,
	metricsProvider MetricsProvider,
) (*Node, error) {
	if metricsProvider == nil {
		metricsProvider = DefaultMetricsProvider(config.InstrumentationConfig{})
	}
	supMetrics, blockMetrics, consensusMetrics := metricsProvider(nodeConfig.ChainID)

	sup, err := supervisor.New(supervisor.Config{GracePeriod: nodeConfig.Shutdown.GracePeriod.Duration}, logger, supMetrics)
	if err != nil {
		return nil, err
	}

	participant, err := consensus.NewParticipant(nodeConfig, sgn, st, logger, consensusMetrics)
	if err != nil {
		return nil, fmt.Errorf("error while initializing consensus participant: %w", err)
	}

	n := &Node{
		Store:       st,
		config:      nodeConfig,
		producer:    block.NewProducer(nodeConfig, exec, st, logger, blockMetrics),
		participant: participant,
		sup:         sup,
		logger:      logger,
	}

	subsystems := []service.Service{
		newStoreMonitor(st, nodeConfig.Store.HealthInterval.Duration, logger),
		n.producer,
		n.participant,
	}
	names := []string{config.SubsystemStore, config.SubsystemExecution, config.SubsystemConsensus}

	if nodeConfig.RPC.Enable {
		n.rpcServer = rpcserver.NewServer(nodeConfig, st, logger,
			rpcserver.WithStateFunc(func() string { return sup.State().String() }))
		subsystems = append(subsystems, n.rpcServer)
		names = append(names, config.SubsystemRPC)
	}

	for i, impl := range subsystems {
		name := names[i]
		bs := service.NewBaseService(logger.With("subsystem", name), name, impl)
		if err := sup.Register(bs, supervisor.WithGracePeriod(nodeConfig.Shutdown.GracePeriodFor(name))); err != nil {
			return nil, fmt.Errorf("error while registering %s: %w", name, err)
		}
	}

	return n, nil
}

// Run runs every subsystem until ctx is cancelled or a subsystem fails and
// returns the supervisor's verdict. It does not close the store.
func (n *Node) Run(ctx context.Context) (*supervisor.Result, error) {
	n.logger.Info("starting node", "chain_id", n.config.ChainID, "roles", n.config.Consensus.Roles, "rpc", n.config.RPC.Enable)
	return n.sup.Run(ctx)
}

// Supervisor returns the supervisor running the node's subsystems.
func (n *Node) Supervisor() *supervisor.Supervisor {
	return n.sup
}

// RPCServer returns the RPC server, or nil when RPC is disabled.
func (n *Node) RPCServer() *rpcserver.Server {
	return n.rpcServer
}

// Close releases the store. It is safe to call more than once.
func (n *Node) Close() error {
	n.closeOnce.Do(func() {
		var err error
		if n.Store != nil {
			err = multierr.Append(err, n.Store.Close())
		}
		if err != nil {
			n.closeErr = fmt.Errorf("error while closing node: %w", err)
		}
	})
	return n.closeErr
}
