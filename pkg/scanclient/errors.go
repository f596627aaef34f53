package scanclient

import (
	"fmt"
	"time"
)

// NetworkError means the request never produced a response, or the push
// connection could not be opened.
type NetworkError struct {
	Verb string
	Path string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("unable to issue %s to %s: %s", e.Verb, e.Path, e.Err.Error())
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx response.  Message is the server's `error` field, or
// the status line when that is missing.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return e.Message
}

// ParseError is a response body which is not the expected JSON.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse %s: %s", e.What, e.Err.Error())
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type TimeoutError struct {
	JobID   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job completion timeout: job %s not finished after %s", e.JobID, e.Timeout)
}

type JobFailedError struct {
	Job *Job
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("scan failed: %s", e.Job.Error)
}

type JobCancelledError struct {
	Job *Job
}

func (e *JobCancelledError) Error() string {
	return "scan was cancelled"
}
