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
	"os"
	"os/signal"
	"time"
)

// ScanArgs holds the scan parameter flags.  Only flags given on the command
// line end up in the request; the rest come from the client's defaults.
type ScanArgs struct {
	PDF         bool
	Resolution  int
	ColorMode   string
	Format      string
	PageSize    string
	JpegQuality int
	Brightness  int
	Contrast    int
	Duplex      bool
	Feeder      bool
	PageCount   int
}

func (a *ScanArgs) AddFlags(command *cobra.Command) {
	command.Flags().BoolVar(&a.PDF, "pdf", false, "start from the PDF defaults instead of the JPEG ones")
	command.Flags().IntVar(&a.Resolution, "resolution", 300, "dpi")
	command.Flags().StringVar(&a.ColorMode, "color-mode", scanclient.ColorModeColor, "one of [Color, Grayscale, BlackAndWhite]")
	command.Flags().StringVar(&a.Format, "format", scanclient.FormatJPEG, "one of [PDF, JPEG, PNG, TIFF]")
	command.Flags().StringVar(&a.PageSize, "page-size", "", fmt.Sprintf("named page size, sets width and height; one of %+v", scanclient.PaperSizeNames()))
	command.Flags().IntVar(&a.JpegQuality, "jpeg-quality", 75, "jpeg quality, 0-100")
	command.Flags().IntVar(&a.Brightness, "brightness", 0, "brightness adjustment")
	command.Flags().IntVar(&a.Contrast, "contrast", 0, "contrast adjustment")
	command.Flags().BoolVar(&a.Duplex, "duplex", false, "scan both sides")
	command.Flags().BoolVar(&a.Feeder, "feeder", false, "use the document feeder")
	command.Flags().IntVar(&a.PageCount, "page-count", 1, "number of pages")
}

func (a *ScanArgs) Parameters(changed func(name string) bool) (*scanclient.ScanParameters, error) {
	params := &scanclient.ScanParameters{}
	if a.PDF {
		params = scanclient.PDFScanParameters()
	}
	if changed("resolution") {
		params.Resolution = utils.Pointer(a.Resolution)
	}
	if changed("color-mode") {
		params.ColorMode = utils.Pointer(a.ColorMode)
	}
	if changed("format") {
		params.Format = utils.Pointer(a.Format)
	}
	if changed("jpeg-quality") {
		params.JpegQuality = utils.Pointer(a.JpegQuality)
	}
	if changed("brightness") {
		params.Brightness = utils.Pointer(a.Brightness)
	}
	if changed("contrast") {
		params.Contrast = utils.Pointer(a.Contrast)
	}
	if changed("duplex") {
		params.UseDuplex = utils.Pointer(a.Duplex)
	}
	if changed("feeder") {
		params.UseFeeder = utils.Pointer(a.Feeder)
	}
	if changed("page-count") {
		params.PageCount = utils.Pointer(a.PageCount)
	}
	if a.PageSize != "" {
		return params.WithPageSize(a.PageSize)
	}
	return params, nil
}

type WaitArgs struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

func (a *WaitArgs) AddFlags(command *cobra.Command) {
	command.Flags().DurationVar(&a.PollInterval, "poll-interval", scanclient.DefaultPollInterval, "time between job status checks")
	command.Flags().DurationVar(&a.Timeout, "wait-timeout", scanclient.DefaultWaitTimeout, "give up waiting after this long")
}

func RunWait(ctx context.Context, client *scanclient.Client, progressOut io.Writer, jobID string, args *WaitArgs) (*scanclient.Job, error) {
	logrus.Infof("waiting for job %s", jobID)
	return client.WaitForJobCompletion(ctx, jobID, &scanclient.WaitOptions{
		PollInterval: args.PollInterval,
		Timeout:      args.Timeout,
		OnProgress: func(progress int) {
			fmt.Fprintf(progressOut, "job %s: %d%%\n", jobID, progress)
		},
	})
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}

func setupScanCommand(flags *RootFlags) *cobra.Command {
	scanArgs := &ScanArgs{}
	waitArgs := &WaitArgs{}
	var wait bool

	command := &cobra.Command{
		Use:   "scan SCANNER_ID",
		Short: "start a scan job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, as []string) {
			params, err := scanArgs.Parameters(cmd.Flags().Changed)
			utils.DoOrDie(err)
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			job, err := RunScan(ctx, flags.NewClient(), cmd.ErrOrStderr(), as[0], params, wait, waitArgs)
			utils.DoOrDie(err)
			utils.DoOrDie(printOutput(cmd.OutOrStdout(), flags.Output, job, func() string { return JobTable(job) }))
		},
	}

	scanArgs.AddFlags(command)
	waitArgs.AddFlags(command)
	command.Flags().BoolVar(&wait, "wait", false, "poll the job until it finishes")

	return command
}

func RunScan(ctx context.Context, client *scanclient.Client, progressOut io.Writer, scannerID string, params *scanclient.ScanParameters, wait bool, waitArgs *WaitArgs) (*scanclient.Job, error) {
	job, err := client.CreateScan(ctx, scannerID, params)
	if err != nil {
		return nil, err
	}
	logrus.Infof("created job %s on scanner %s", job.ID, scannerID)
	if !wait {
		return job, nil
	}
	return RunWait(ctx, client, progressOut, job.ID, waitArgs)
}

type BatchArgs struct {
	Count        int
	ScanType     string
	ScanInterval time.Duration
	Profile      string
	SavePath     string
}

func setupBatchCommand(flags *RootFlags) *cobra.Command {
	scanArgs := &ScanArgs{}
	batchArgs := &BatchArgs{}

	command := &cobra.Command{
		Use:   "batch SCANNER_ID",
		Short: "start a batch of scans",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, as []string) {
			params, err := scanArgs.Parameters(cmd.Flags().Changed)
			utils.DoOrDie(err)
			result, err := RunBatch(cmd.Context(), flags.NewClient(), as[0], params, batchArgs)
			utils.DoOrDie(err)
			utils.DoOrDie(printOutput(cmd.OutOrStdout(), flags.Output, result, func() string { return BatchTable(result) }))
		},
	}

	scanArgs.AddFlags(command)
	command.Flags().IntVar(&batchArgs.Count, "count", 1, "number of scans in the batch")
	command.Flags().StringVar(&batchArgs.ScanType, "scan-type", "", "if set, send full batch settings; one of [single, multiple_with_prompt, multiple_with_delay]")
	command.Flags().DurationVar(&batchArgs.ScanInterval, "scan-interval", 0, "delay between scans, for multiple_with_delay")
	command.Flags().StringVar(&batchArgs.Profile, "profile", "", "profile display name, with --scan-type")
	command.Flags().StringVar(&batchArgs.SavePath, "save-path", "", "server side output directory, with --scan-type")

	return command
}

func (a *BatchArgs) Request() (*scanclient.BatchRequest, error) {
	if a.Count < 1 {
		return nil, errors.Errorf("invalid batch count %d; must be at least 1", a.Count)
	}
	request := &scanclient.BatchRequest{Count: a.Count}
	if a.ScanType == "" {
		return request, nil
	}
	scanType := scanclient.BatchScanType(a.ScanType)
	switch scanType {
	case scanclient.BatchScanSingle, scanclient.BatchScanMultipleWithPrompt, scanclient.BatchScanMultipleWithDelay:
	default:
		return nil, errors.Errorf("invalid scan type '%s'", a.ScanType)
	}
	request.Settings = &scanclient.BatchSettings{
		ProfileDisplayName:  a.Profile,
		ScanType:            scanType,
		ScanCount:           a.Count,
		ScanIntervalSeconds: a.ScanInterval.Seconds(),
		SavePath:            a.SavePath,
	}
	return request, nil
}

func RunBatch(ctx context.Context, client *scanclient.Client, scannerID string, params *scanclient.ScanParameters, args *BatchArgs) (*scanclient.BatchScanResult, error) {
	request, err := args.Request()
	if err != nil {
		return nil, err
	}
	return client.CreateBatchScan(ctx, scannerID, params, request)
}
