package cli

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"github.com/scanserver/scanner-client/pkg/scanclient"
	"github.com/scanserver/scanner-client/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"io"
)

func setupHealthCommand(flags *RootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "check that the scanning service is up",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, as []string) {
			utils.DoOrDie(RunHealth(cmd.Context(), flags.NewClient(), cmd.OutOrStdout(), flags.Output))
		},
	}
}

func RunHealth(ctx context.Context, client *scanclient.Client, out io.Writer, format string) error {
	health, err := client.HealthCheck(ctx)
	if err != nil {
		return err
	}
	return printOutput(out, format, health, func() string {
		return fmt.Sprintf("%s: %s\n", client.BaseURL, health.Status)
	})
}

func setupScannersCommand(flags *RootFlags) *cobra.Command {
	command := &cobra.Command{
		Use:   "scanners",
		Short: "list and inspect scanners",
	}

	command.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list the scanners known to the service",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, as []string) {
			utils.DoOrDie(RunListScanners(cmd.Context(), flags.NewClient(), cmd.OutOrStdout(), flags.Output))
		},
	})
	command.AddCommand(&cobra.Command{
		Use:   "get SCANNER_ID",
		Short: "show one scanner",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, as []string) {
			utils.DoOrDie(RunGetScanner(cmd.Context(), flags.NewClient(), cmd.OutOrStdout(), flags.Output, as[0]))
		},
	})

	return command
}

func RunListScanners(ctx context.Context, client *scanclient.Client, out io.Writer, format string) error {
	scanners, err := client.ListScanners(ctx)
	if err != nil {
		return err
	}
	logrus.Debugf("found %d scanners", len(scanners))
	return printOutput(out, format, scanners, func() string { return ScannersTable(scanners) })
}

func RunGetScanner(ctx context.Context, client *scanclient.Client, out io.Writer, format string, scannerID string) error {
	scanner, err := client.GetScanner(ctx, scannerID)
	if err != nil {
		return err
	}
	return printOutput(out, format, scanner, func() string { return ScannersTable([]*scanclient.Scanner{scanner}) })
}

func setupJobsCommand(flags *RootFlags) *cobra.Command {
	command := &cobra.Command{
		Use:   "jobs",
		Short: "list, inspect, cancel and wait for scan jobs",
	}

	command.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list jobs",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, as []string) {
			utils.DoOrDie(RunListJobs(cmd.Context(), flags.NewClient(), cmd.OutOrStdout(), flags.Output))
		},
	})
	command.AddCommand(&cobra.Command{
		Use:   "get JOB_ID",
		Short: "show one job and its results",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, as []string) {
			utils.DoOrDie(RunGetJob(cmd.Context(), flags.NewClient(), cmd.OutOrStdout(), flags.Output, as[0]))
		},
	})
	command.AddCommand(&cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "cancel a running job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, as []string) {
			utils.DoOrDie(RunCancelJob(cmd.Context(), flags.NewClient(), cmd.OutOrStdout(), as[0]))
		},
	})

	waitArgs := &WaitArgs{}
	waitCommand := &cobra.Command{
		Use:   "wait JOB_ID",
		Short: "poll a job until it finishes",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, as []string) {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			job, err := RunWait(ctx, flags.NewClient(), cmd.ErrOrStderr(), as[0], waitArgs)
			utils.DoOrDie(err)
			utils.DoOrDie(printOutput(cmd.OutOrStdout(), flags.Output, job, func() string { return JobTable(job) }))
		},
	}
	waitArgs.AddFlags(waitCommand)
	command.AddCommand(waitCommand)

	return command
}

func RunListJobs(ctx context.Context, client *scanclient.Client, out io.Writer, format string) error {
	jobs, err := client.ListJobs(ctx)
	if err != nil {
		return err
	}
	return printOutput(out, format, jobs, func() string { return JobsTable(jobs) })
}

func RunGetJob(ctx context.Context, client *scanclient.Client, out io.Writer, format string, jobID string) error {
	job, err := client.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	return printOutput(out, format, job, func() string { return JobTable(job) })
}

func RunCancelJob(ctx context.Context, client *scanclient.Client, out io.Writer, jobID string) error {
	response, err := client.CancelJob(ctx, jobID)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s: %s\n", jobID, response.Message)
	return errors.WithStack(err)
}

func setupFileURLCommand(flags *RootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "file-url FILE_PATH",
		Short: "print the download url of a result file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, as []string) {
			fmt.Fprintln(cmd.OutOrStdout(), flags.NewClient().FileURL(as[0]))
		},
	}
}

type DownloadArgs struct {
	OutputPath string
}

func setupDownloadCommand(flags *RootFlags) *cobra.Command {
	args := &DownloadArgs{}
	command := &cobra.Command{
		Use:   "download FILE_PATH",
		Short: "download a result file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, as []string) {
			utils.DoOrDie(RunDownload(cmd.Context(), flags.NewClient(), as[0], args))
		},
	}

	command.Flags().StringVar(&args.OutputPath, "out", "", "where to write the file")
	utils.DoOrDie(command.MarkFlagRequired("out"))

	return command
}

func RunDownload(ctx context.Context, client *scanclient.Client, filePath string, args *DownloadArgs) error {
	content, err := client.DownloadFile(ctx, filePath)
	if err != nil {
		return err
	}
	logrus.Infof("downloaded %d bytes from %s", len(content), client.FileURL(filePath))
	return utils.WriteFileBytes(args.OutputPath, content, 0644)
}
