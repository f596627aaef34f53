package scanclient

import (
	"context"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"time"
)

const (
	DefaultPollInterval = 1 * time.Second
	DefaultWaitTimeout  = 300 * time.Second
)

type JobGetter interface {
	GetJob(ctx context.Context, jobID string) (*Job, error)
}

type WaitOptions struct {
	PollInterval time.Duration
	Timeout      time.Duration
	// OnProgress is called with the job's progress on every poll which sees
	// the job processing.
	OnProgress func(progress int)
}

func (o *WaitOptions) withDefaults() *WaitOptions {
	out := &WaitOptions{PollInterval: DefaultPollInterval, Timeout: DefaultWaitTimeout}
	if o == nil {
		return out
	}
	if o.PollInterval > 0 {
		out.PollInterval = o.PollInterval
	}
	if o.Timeout > 0 {
		out.Timeout = o.Timeout
	}
	out.OnProgress = o.OnProgress
	return out
}

func (c *Client) WaitForJobCompletion(ctx context.Context, jobID string, options *WaitOptions) (*Job, error) {
	return WaitForJobCompletion(ctx, c, jobID, options)
}

// WaitForJobCompletion polls a job until it reaches a terminal status.  The
// timeout is measured from this call and checked before each poll; cancelling
// ctx stops the loop early.
func WaitForJobCompletion(ctx context.Context, getter JobGetter, jobID string, options *WaitOptions) (*Job, error) {
	opts := options.withDefaults()
	start := time.Now()
	for {
		if time.Since(start) > opts.Timeout {
			return nil, errors.WithStack(&TimeoutError{JobID: jobID, Timeout: opts.Timeout})
		}

		job, err := getter.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		logrus.Debugf("job %s: status %s, progress %d", jobID, job.Status, job.Progress)

		switch job.Status {
		case JobStatusProcessing:
			if opts.OnProgress != nil {
				opts.OnProgress(job.Progress)
			}
		case JobStatusCompleted:
			return job, nil
		case JobStatusFailed:
			return nil, errors.WithStack(&JobFailedError{Job: job})
		case JobStatusCancelled:
			return nil, errors.WithStack(&JobCancelledError{Job: job})
		}

		timer := time.NewTimer(opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrapf(ctx.Err(), "stopped waiting for job %s", jobID)
		case <-timer.C:
		}
	}
}
