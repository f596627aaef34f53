package cli

import (
	"context"
	"github.com/pkg/errors"
	"github.com/scanserver/scanner-client/pkg/push"
	"github.com/scanserver/scanner-client/pkg/scanclient"
	"github.com/scanserver/scanner-client/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"time"
)

func RunRootCommand() {
	command := SetupRootCommand()
	utils.DoOrDie(errors.Wrapf(command.Execute(), "run root command"))
}

type RootFlags struct {
	Verbosity         string
	Server            string
	ConfigPath        string
	Timeout           time.Duration
	AutoReconnect     bool
	ReconnectInterval time.Duration
	MetricsAddr       string
	JaegerURL         string
	Output            string

	tracerProvider *tracesdk.TracerProvider
}

func (r *RootFlags) NewClient() *scanclient.Client {
	options := scanclient.DefaultOptions()
	options.Timeout = r.Timeout
	options.AutoReconnect = r.AutoReconnect
	options.ReconnectInterval = r.ReconnectInterval
	return scanclient.NewClient(r.Server, options)
}

func SetupRootCommand() *cobra.Command {
	flags := &RootFlags{}
	command := &cobra.Command{
		Use:   "scanctl",
		Short: "client for a network scanning service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := utils.SetUpLogger(flags.Verbosity); err != nil {
				return err
			}
			if err := LoadConfig(cmd, flags); err != nil {
				return err
			}
			// the config file may have changed the level
			if err := utils.SetUpLogger(flags.Verbosity); err != nil {
				return err
			}
			return flags.setUpTelemetry()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return flags.shutDownTelemetry()
		},
	}

	command.PersistentFlags().StringVarP(&flags.Verbosity, "verbosity", "v", "info", "log level; one of [info, debug, trace, warn, error, fatal, panic]")
	command.PersistentFlags().StringVar(&flags.Server, "server", "http://localhost:8080", "base url of the scanning service")
	command.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to a yaml config file; flags given on the command line take precedence")
	command.PersistentFlags().DurationVar(&flags.Timeout, "timeout", 30*time.Second, "timeout for each api request; 0 for none")
	command.PersistentFlags().BoolVar(&flags.AutoReconnect, "auto-reconnect", true, "reconnect the push subscription after unexpected closes")
	command.PersistentFlags().DurationVar(&flags.ReconnectInterval, "reconnect-interval", push.DefaultReconnectInterval, "delay before each reconnect attempt")
	command.PersistentFlags().StringVar(&flags.MetricsAddr, "metrics-addr", "", "if set, serve prometheus metrics on this address")
	command.PersistentFlags().StringVar(&flags.JaegerURL, "jaeger-url", "", "if set, send traces to this jaeger collector url")
	command.PersistentFlags().StringVarP(&flags.Output, "output", "o", OutputTable, "output format; one of [table, json, yaml]")

	command.AddCommand(SetupVersionCommand())
	command.AddCommand(setupHealthCommand(flags))
	command.AddCommand(setupScannersCommand(flags))
	command.AddCommand(setupScanCommand(flags))
	command.AddCommand(setupBatchCommand(flags))
	command.AddCommand(setupJobsCommand(flags))
	command.AddCommand(setupFileURLCommand(flags))
	command.AddCommand(setupDownloadCommand(flags))
	command.AddCommand(setupWatchCommand(flags))
	command.AddCommand(setupSimulateCommand())

	return command
}

func (r *RootFlags) setUpTelemetry() error {
	if r.MetricsAddr != "" {
		if err := setupPrometheus(r.MetricsAddr); err != nil {
			return err
		}
	}
	if r.JaegerURL != "" {
		tp, err := setupTracing("scanctl", r.JaegerURL)
		if err != nil {
			return err
		}
		r.tracerProvider = tp
	}
	return nil
}

func (r *RootFlags) shutDownTelemetry() error {
	if r.tracerProvider == nil {
		return nil
	}
	// Do not make the application hang when it is shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logrus.Debugf("flushing traces")
	return errors.Wrapf(r.tracerProvider.Shutdown(ctx), "unable to shut down tracer provider")
}
