// The gateway binary connects a proposer to preconfirmation relays: it
// broadcasts constraint commitments, collects header bids carrying inclusion
// proofs, and releases payloads only after verifying them against the
// accepted header.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/preconf-labs/gateway/cmd/gateway/flags"
	"github.com/preconf-labs/gateway/monitoring/prometheus"
	"github.com/preconf-labs/gateway/node"
)

var log = logrus.WithField("prefix", "main")

func startNode(cliCtx *cli.Context) error {
	n, err := node.New(cliCtx)
	if err != nil {
		return err
	}
	n.Start()
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "gateway"
	app.Usage = "preconfirmation gateway between a proposer and builder relays"
	app.Action = startNode
	app.Flags = []cli.Flag{
		flags.RelayFlag,
		flags.MinBidFlag,
		flags.HeaderDeadlineFlag,
		flags.PayloadDeadlineFlag,
		flags.GenesisValidatorsRootFlag,
		flags.MonitoringAddrFlag,
		flags.VerbosityFlag,
	}
	app.Before = func(cliCtx *cli.Context) error {
		level, err := logrus.ParseLevel(cliCtx.String(flags.VerbosityFlag.Name))
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		logrus.AddHook(prometheus.NewLogrusCollector())
		return nil
	}
	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
