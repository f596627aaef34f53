package scanclient_test

import (
	"context"
	"github.com/pkg/errors"
	"github.com/scanserver/scanner-client/pkg/push"
	"github.com/scanserver/scanner-client/pkg/scanclient"
	"github.com/scanserver/scanner-client/pkg/simulator"
	"github.com/scanserver/scanner-client/pkg/utils"
	"github.com/stretchr/testify/require"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func setupSimulator(t *testing.T, configure func(options *simulator.Options)) (*simulator.Server, *scanclient.Client) {
	options := simulator.DefaultOptions()
	options.StepInterval = 10 * time.Millisecond
	if configure != nil {
		configure(options)
	}
	server := simulator.NewServer(options)
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)

	clientOptions := scanclient.DefaultOptions()
	clientOptions.ReconnectInterval = 50 * time.Millisecond
	client := scanclient.NewClient(httpServer.URL, clientOptions)
	t.Cleanup(func() { _ = client.Disconnect() })
	return server, client
}

func connect(t *testing.T, server *simulator.Server, client *scanclient.Client) {
	require.NoError(t, client.Connect(context.Background()))
	require.Eventually(t, func() bool { return server.Hub.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
}

type jobLog struct {
	mu   sync.Mutex
	jobs []*scanclient.Job
}

func (l *jobLog) add(job *scanclient.Job) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jobs = append(l.jobs, job)
}

func (l *jobLog) Statuses(jobID string) []scanclient.JobStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	var statuses []scanclient.JobStatus
	for _, job := range l.jobs {
		if job.ID == jobID {
			statuses = append(statuses, job.Status)
		}
	}
	return statuses
}

func TestSimulator_HealthAndScanners(t *testing.T) {
	_, client := setupSimulator(t, nil)
	ctx := context.Background()

	health, err := client.HealthCheck(ctx)
	require.NoError(t, err)
	require.Equal(t, "healthy", health.Status)

	scanners, err := client.ListScanners(ctx)
	require.NoError(t, err)
	require.Len(t, scanners, 2)
	require.Equal(t, "sim-flatbed", scanners[0].ID)

	scanner, err := client.GetScanner(ctx, "sim-feeder")
	require.NoError(t, err)
	require.True(t, scanner.Capabilities.FeederEnabled)

	_, err = client.GetScanner(ctx, "nope")
	var apiErr *scanclient.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, 404, apiErr.StatusCode)
	require.EqualError(t, err, "scanner nope not found")
}

func TestSimulator_ScanLifecycle(t *testing.T) {
	server, client := setupSimulator(t, nil)
	ctx := context.Background()
	events := &jobLog{}
	client.OnJobStatus(events.add)
	connect(t, server, client)

	job, err := client.CreateScan(ctx, "sim-flatbed", &scanclient.ScanParameters{PageCount: utils.Pointer(2)})
	require.NoError(t, err)
	require.Equal(t, scanclient.JobStatusPending, job.Status)
	require.Equal(t, 300, *job.Parameters.Resolution)

	var progress []int
	done, err := client.WaitForJobCompletion(ctx, job.ID, &scanclient.WaitOptions{
		PollInterval: 5 * time.Millisecond,
		Timeout:      10 * time.Second,
		OnProgress:   func(p int) { progress = append(progress, p) },
	})
	require.NoError(t, err)
	require.Equal(t, scanclient.JobStatusCompleted, done.Status)
	require.Len(t, done.Results, 2)
	require.NotEmpty(t, progress)

	content, err := client.DownloadFile(ctx, done.Results[1].FilePath)
	require.NoError(t, err)
	require.Equal(t, done.Results[1].FileSize, int64(len(content)))
	require.Contains(t, string(content), "page 2")

	require.Eventually(t, func() bool {
		statuses := events.Statuses(job.ID)
		return len(statuses) > 0 && statuses[len(statuses)-1] == scanclient.JobStatusCompleted
	}, 2*time.Second, 5*time.Millisecond)
	require.Contains(t, events.Statuses(job.ID), scanclient.JobStatusProcessing)

	jobs, err := client.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}

func TestSimulator_CancelAndFailure(t *testing.T) {
	server, client := setupSimulator(t, func(options *simulator.Options) {
		options.StepInterval = 50 * time.Millisecond
		options.FailingScanners = map[string]string{"sim-feeder": "paper jam"}
	})
	ctx := context.Background()
	connect(t, server, client)

	job, err := client.CreateScan(ctx, "sim-flatbed", nil)
	require.NoError(t, err)
	cancelled, err := client.CancelJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, "job cancelled", cancelled.Message)

	_, err = client.WaitForJobCompletion(ctx, job.ID, &scanclient.WaitOptions{PollInterval: 5 * time.Millisecond})
	var cancelledErr *scanclient.JobCancelledError
	require.True(t, errors.As(err, &cancelledErr))

	_, err = client.CancelJob(ctx, job.ID)
	require.EqualError(t, err, "job is not running")

	_, err = client.CancelJob(ctx, "missing")
	require.EqualError(t, err, "job not found")

	failing, err := client.CreateScan(ctx, "sim-feeder", nil)
	require.NoError(t, err)
	_, err = client.WaitForJobCompletion(ctx, failing.ID, &scanclient.WaitOptions{PollInterval: 5 * time.Millisecond})
	var failedErr *scanclient.JobFailedError
	require.True(t, errors.As(err, &failedErr))
	require.Equal(t, "paper jam", failedErr.Job.Error)
}

func TestSimulator_BatchAndScannerEvents(t *testing.T) {
	server, client := setupSimulator(t, nil)
	ctx := context.Background()
	progress := make(chan *scanclient.BatchScanProgress, 8)
	scanners := make(chan *scanclient.Scanner, 8)
	client.OnBatchScanProgress(func(p *scanclient.BatchScanProgress) { progress <- p })
	client.OnScannerStatus(func(s *scanclient.Scanner) { scanners <- s })
	connect(t, server, client)

	result, err := client.CreateBatchScan(ctx, "sim-feeder", nil, &scanclient.BatchRequest{Count: 3})
	require.NoError(t, err)
	require.Len(t, result.JobIDs, 3)
	require.Equal(t, 3, result.TotalScans)
	for i := 1; i <= 3; i++ {
		p := <-progress
		require.Equal(t, i, p.CurrentScan)
		require.Equal(t, 3, p.TotalScans)
	}

	require.NoError(t, server.SetScannerStatus("sim-flatbed", "scanning"))
	scanner := <-scanners
	require.Equal(t, "sim-flatbed", scanner.ID)
	require.Equal(t, "scanning", scanner.Status)
}

func TestSimulator_ReconnectAndMalformedFrames(t *testing.T) {
	server, client := setupSimulator(t, nil)
	var mu sync.Mutex
	connects, disconnects := 0, 0
	client.OnConnected(func() {
		mu.Lock()
		defer mu.Unlock()
		connects++
	})
	client.OnDisconnected(func() {
		mu.Lock()
		defer mu.Unlock()
		disconnects++
	})
	scanners := make(chan *scanclient.Scanner, 8)
	client.OnScannerStatus(func(s *scanclient.Scanner) { scanners <- s })
	connect(t, server, client)

	server.Hub.BroadcastRaw([]byte(`{"payload": {}}`))
	server.Hub.BroadcastRaw([]byte(`definitely not json`))
	require.NoError(t, server.SetScannerStatus("sim-feeder", "error"))
	require.Equal(t, "error", (<-scanners).Status)
	require.Equal(t, push.StateConnected, client.PushState())

	server.Hub.DropAll()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return connects == 2 && disconnects == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, push.StateConnected, client.PushState())

	// the new subscription may register on the server slightly after the client sees it open
	require.Eventually(t, func() bool {
		if err := server.SetScannerStatus("sim-feeder", "idle"); err != nil {
			return false
		}
		select {
		case scanner := <-scanners:
			return scanner.Status == "idle"
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
}
