package scanclient

import (
	"context"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/scanserver/scanner-client/pkg/push"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const APIPath = "/api/v1"

type Options struct {
	// Timeout bounds each HTTP call; 0 means no client-side limit.
	Timeout    time.Duration
	HTTPClient *http.Client

	AutoReconnect     bool
	ReconnectInterval time.Duration
	// ReconnectPolicy overrides ReconnectInterval when set.
	ReconnectPolicy push.ReconnectPolicy
	Dialer          push.Dialer

	// Defaults are merged under the parameters of every scan request.
	Defaults *ScanParameters
}

func DefaultOptions() *Options {
	return &Options{
		AutoReconnect:     true,
		ReconnectInterval: push.DefaultReconnectInterval,
		Defaults:          DefaultScanParameters(),
	}
}

// Client talks to one scanning service: one method per API endpoint, plus the
// push subscription for job and scanner events.
type Client struct {
	BaseURL     string
	APIURL      string
	RestyClient *resty.Client
	Push        *push.Client
	Defaults    *ScanParameters
}

func NewClient(baseURL string, options *Options) *Client {
	if options == nil {
		options = DefaultOptions()
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	apiURL := baseURL + APIPath

	var restyClient *resty.Client
	if options.HTTPClient != nil {
		restyClient = resty.NewWithClient(options.HTTPClient)
	} else {
		restyClient = resty.New()
	}
	restyClient.SetBaseURL(apiURL)
	restyClient.SetHeader("Accept", "application/json")
	if options.Timeout > 0 {
		restyClient.SetTimeout(options.Timeout)
	}

	policy := options.ReconnectPolicy
	if policy == nil {
		policy = &push.ConstantDelay{Interval: options.ReconnectInterval}
	}
	dialer := options.Dialer
	if dialer == nil {
		dialer = &push.WebsocketDialer{HTTPClient: options.HTTPClient}
	}

	defaults := options.Defaults
	if defaults == nil {
		defaults = DefaultScanParameters()
	}

	return &Client{
		BaseURL:     baseURL,
		APIURL:      apiURL,
		RestyClient: restyClient,
		Push: push.NewClient(push.WebsocketURL(baseURL), &push.Options{
			Dialer:          dialer,
			ReconnectPolicy: policy,
			AutoReconnect:   options.AutoReconnect,
		}),
		Defaults: defaults,
	}
}

func (c *Client) ListScanners(ctx context.Context) ([]*Scanner, error) {
	out := &scannersResponse{}
	if _, err := IssueRequest(ctx, c.RestyClient, http.MethodGet, "/scanners", nil, out); err != nil {
		return nil, err
	}
	if out.Scanners == nil {
		return []*Scanner{}, nil
	}
	return out.Scanners, nil
}

func (c *Client) GetScanner(ctx context.Context, scannerID string) (*Scanner, error) {
	scanner := &Scanner{}
	_, err := IssueRequest(ctx, c.RestyClient, http.MethodGet, "/scanners/"+url.PathEscape(scannerID), nil, scanner)
	if err != nil {
		return nil, err
	}
	return scanner, nil
}

// CreateScan starts a scan job.  Nil fields of params are filled from the
// client's defaults; the server validates the values.
func (c *Client) CreateScan(ctx context.Context, scannerID string, params *ScanParameters) (*Job, error) {
	body := &scanBody{
		ScannerID:  scannerID,
		Parameters: params.WithDefaults(c.Defaults),
	}
	job := &Job{}
	if _, err := IssueRequest(ctx, c.RestyClient, http.MethodPost, "/scan", body, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (c *Client) CreateBatchScan(ctx context.Context, scannerID string, params *ScanParameters, batch *BatchRequest) (*BatchScanResult, error) {
	body := &batchScanBody{
		ScannerID:  scannerID,
		Parameters: params.WithDefaults(c.Defaults),
	}
	if batch != nil {
		if batch.Settings != nil {
			body.BatchSettings = batch.Settings
		} else {
			body.BatchCount = ptr(batch.Count)
		}
	}
	result := &BatchScanResult{}
	if _, err := IssueRequest(ctx, c.RestyClient, http.MethodPost, "/scan/batch", body, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) ListJobs(ctx context.Context) ([]*Job, error) {
	out := &jobsResponse{}
	if _, err := IssueRequest(ctx, c.RestyClient, http.MethodGet, "/jobs", nil, out); err != nil {
		return nil, err
	}
	if out.Jobs == nil {
		return []*Job{}, nil
	}
	return out.Jobs, nil
}

func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	job := &Job{}
	if _, err := IssueRequest(ctx, c.RestyClient, http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (c *Client) CancelJob(ctx context.Context, jobID string) (*CancelResponse, error) {
	out := &CancelResponse{}
	if _, err := IssueRequest(ctx, c.RestyClient, http.MethodDelete, "/jobs/"+url.PathEscape(jobID), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) HealthCheck(ctx context.Context) (*Health, error) {
	health := &Health{}
	if _, err := IssueRequest(ctx, c.RestyClient, http.MethodGet, "/health", nil, health); err != nil {
		return nil, err
	}
	return health, nil
}

// FileURL resolves a result's file path (as reported by the server) to its
// download url.  Nothing is fetched.
func (c *Client) FileURL(filePath string) string {
	return c.APIURL + filesPath(filePath)
}

// DownloadFile fetches a result file's raw bytes.
func (c *Client) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	request := c.RestyClient.R().SetHeader("Accept", "*/*")
	return issue(ctx, c.RestyClient, request, http.MethodGet, filesPath(filePath), nil, nil)
}

func filesPath(filePath string) string {
	return "/files/" + strings.TrimPrefix(filePath, "/")
}

// Connect opens the push subscription; see push.Client.Connect.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.Push.Connect(ctx); err != nil {
		return errors.WithStack(&NetworkError{Verb: "CONNECT", Path: c.Push.URL, Err: err})
	}
	return nil
}

func (c *Client) Disconnect() error {
	return c.Push.Disconnect()
}

func (c *Client) PushState() push.State {
	return c.Push.State()
}

func (c *Client) On(kind push.EventKind, listener push.Listener) push.Subscription {
	return c.Push.On(kind, listener)
}

func (c *Client) Off(sub push.Subscription) bool {
	return c.Push.Off(sub)
}

func (c *Client) RemoveAllListeners(kinds ...push.EventKind) {
	c.Push.RemoveAllListeners(kinds...)
}
