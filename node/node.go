// Package node assembles the gateway's services from CLI options, manages
// their lifecycle, and shuts them down on termination signals.
package node

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/preconf-labs/gateway/cmd/gateway/flags"
	"github.com/preconf-labs/gateway/config/params"
	"github.com/preconf-labs/gateway/constraints"
	"github.com/preconf-labs/gateway/encoding/bytesutil"
	"github.com/preconf-labs/gateway/gateway"
	"github.com/preconf-labs/gateway/monitoring/prometheus"
	"github.com/preconf-labs/gateway/runtime"
)

var log = logrus.WithField("prefix", "node")

// GatewayNode holds the service registry and the shared constraint registry
// behind the running binary.
type GatewayNode struct {
	ctx      context.Context
	cancel   context.CancelFunc
	services *runtime.ServiceRegistry
	registry *constraints.Registry
	lock     sync.RWMutex
	stop     chan struct{}
}

// New builds a node from CLI options and registers every service.
func New(cliCtx *cli.Context) (*GatewayNode, error) {
	if err := configureNetwork(cliCtx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(cliCtx.Context)
	n := &GatewayNode{
		ctx:      ctx,
		cancel:   cancel,
		services: runtime.NewServiceRegistry(),
		registry: constraints.NewRegistry(),
		stop:     make(chan struct{}),
	}
	if err := n.registerGatewayService(cliCtx); err != nil {
		cancel()
		return nil, err
	}
	n.registerMonitoringService(cliCtx)
	return n, nil
}

// configureNetwork applies network scoped overrides before any service reads
// the active configuration.
func configureNetwork(cliCtx *cli.Context) error {
	if !cliCtx.IsSet(flags.GenesisValidatorsRootFlag.Name) {
		return nil
	}
	gvr, err := hexutil.Decode(cliCtx.String(flags.GenesisValidatorsRootFlag.Name))
	if err != nil {
		return errors.Wrap(err, "invalid genesis validators root")
	}
	cfg := params.GatewayConfiguration().Copy()
	cfg.GenesisValidatorsRoot = bytesutil.ToBytes32(gvr)
	params.OverrideGatewayConfig(cfg)
	return nil
}

func (n *GatewayNode) registerGatewayService(cliCtx *cli.Context) error {
	raw := cliCtx.StringSlice(flags.RelayFlag.Name)
	entries := make([]gateway.RelayEntry, 0, len(raw))
	for _, r := range raw {
		entry, err := gateway.NewRelayEntry(r)
		if err != nil {
			return errors.Wrapf(err, "relay %q", r)
		}
		entries = append(entries, entry)
	}
	minBid := new(uint256.Int)
	if err := minBid.SetFromDecimal(cliCtx.String(flags.MinBidFlag.Name)); err != nil {
		return errors.Wrap(err, "invalid minimum bid")
	}
	svc, err := gateway.New(n.ctx, &gateway.Config{
		RelayEntries:    entries,
		Registry:        n.registry,
		HeaderDeadline:  cliCtx.Duration(flags.HeaderDeadlineFlag.Name),
		PayloadDeadline: cliCtx.Duration(flags.PayloadDeadlineFlag.Name),
		MinBidValue:     minBid,
	})
	if err != nil {
		return err
	}
	return n.services.RegisterService(svc)
}

func (n *GatewayNode) registerMonitoringService(cliCtx *cli.Context) {
	addr := cliCtx.String(flags.MonitoringAddrFlag.Name)
	if err := n.services.RegisterService(prometheus.NewService(addr, n.services)); err != nil {
		log.WithError(err).Error("Could not register monitoring service")
	}
}

// Start launches every registered service and blocks until the process is
// told to stop.
func (n *GatewayNode) Start() {
	n.lock.Lock()
	n.services.StartAll()
	stop := n.stop
	n.lock.Unlock()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		log.Info("Got interrupt, shutting down...")
		go n.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.WithField("times", i-1).Info("Already shutting down, interrupt more to panic")
			}
		}
		panic("Panic closing the gateway node")
	}()

	<-stop
}

// Close stops every service in reverse registration order.
func (n *GatewayNode) Close() {
	n.lock.Lock()
	defer n.lock.Unlock()
	log.Info("Stopping gateway node")
	n.services.StopAll()
	n.cancel()
	close(n.stop)
}
