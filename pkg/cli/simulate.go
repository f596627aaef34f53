package cli

import (
	"github.com/pkg/errors"
	"github.com/scanserver/scanner-client/pkg/simulator"
	"github.com/scanserver/scanner-client/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"net/http"
	"strings"
	"time"
)

type SimulateArgs struct {
	Addr            string
	StepInterval    time.Duration
	FailingScanners []string
}

func setupSimulateCommand() *cobra.Command {
	args := &SimulateArgs{}
	command := &cobra.Command{
		Use:   "simulate",
		Short: "run an in-memory scanning service, for trying out the other commands",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, as []string) {
			utils.DoOrDie(RunSimulate(args))
		},
	}

	command.Flags().StringVar(&args.Addr, "addr", ":8080", "address to listen on")
	command.Flags().DurationVar(&args.StepInterval, "step-interval", 500*time.Millisecond, "time between job progress updates")
	command.Flags().StringSliceVar(&args.FailingScanners, "fail", []string{}, "scanners whose jobs fail, as SCANNER_ID=MESSAGE")

	return command
}

func (a *SimulateArgs) Options() (*simulator.Options, error) {
	options := simulator.DefaultOptions()
	options.StepInterval = a.StepInterval
	for _, failing := range a.FailingScanners {
		pieces := strings.SplitN(failing, "=", 2)
		if len(pieces) != 2 || pieces[0] == "" {
			return nil, errors.Errorf("invalid --fail value '%s'; expected SCANNER_ID=MESSAGE", failing)
		}
		options.FailingScanners[pieces[0]] = pieces[1]
	}
	return options, nil
}

func RunSimulate(args *SimulateArgs) error {
	options, err := args.Options()
	if err != nil {
		return err
	}
	server := simulator.NewServer(options)
	logrus.Infof("simulating %d scanners on %s", len(options.Scanners), args.Addr)
	return errors.Wrapf(http.ListenAndServe(args.Addr, server.Handler()), "unable to run simulator")
}
