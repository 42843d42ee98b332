// Package flags defines the command line flags of the gateway binary.
package flags

import (
	"time"

	"github.com/urfave/cli/v2"
)

var (
	// RelayFlag configures one relay endpoint, repeatable. The relay's BLS
	// public key is carried in the URL user info.
	RelayFlag = &cli.StringSliceFlag{
		Name:  "relay",
		Usage: "Relay endpoint as scheme://0xPUBKEY@host:port, may be given multiple times",
	}
	// MinBidFlag sets the bid value floor in wei.
	MinBidFlag = &cli.StringFlag{
		Name:  "min-bid",
		Usage: "Minimum acceptable bid value in wei, as a decimal string",
		Value: "0",
	}
	// HeaderDeadlineFlag bounds the header round per relay.
	HeaderDeadlineFlag = &cli.DurationFlag{
		Name:  "header-deadline",
		Usage: "Time budget for collecting header bids each slot",
		Value: time.Second,
	}
	// PayloadDeadlineFlag bounds the payload exchange with the winning relay.
	PayloadDeadlineFlag = &cli.DurationFlag{
		Name:  "payload-deadline",
		Usage: "Time budget for retrieving the payload from the winning relay",
		Value: 4 * time.Second,
	}
	// GenesisValidatorsRootFlag scopes constraint signatures to a network.
	GenesisValidatorsRootFlag = &cli.StringFlag{
		Name:  "genesis-validators-root",
		Usage: "Genesis validators root of the target network, as 0x-prefixed hex",
	}
	// MonitoringAddrFlag is where /metrics and /healthz are served.
	MonitoringAddrFlag = &cli.StringFlag{
		Name:  "monitoring-address",
		Usage: "host:port for the metrics and health endpoint",
		Value: "127.0.0.1:8080",
	}
	// VerbosityFlag sets the logging level.
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (trace, debug, info, warn, error)",
		Value: "info",
	}
)
