package simulator

import (
	"encoding/json"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/scanserver/scanner-client/pkg/push"
	"github.com/scanserver/scanner-client/pkg/scanclient"
	"github.com/sirupsen/logrus"
	"io/ioutil"
	"k8s.io/apimachinery/pkg/util/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

type Options struct {
	Scanners []*scanclient.Scanner
	// StepInterval is the time between progress updates of a running job.
	StepInterval  time.Duration
	ProgressSteps []int
	// FailingScanners maps scanner ids to the error their jobs fail with.
	FailingScanners map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Scanners:        DefaultScanners(),
		StepInterval:    500 * time.Millisecond,
		ProgressSteps:   []int{10, 50, 90},
		FailingScanners: map[string]string{},
	}
}

// Server is an in-memory scanning service: jobs advance through their
// progress steps on a timer, and every change is broadcast on the hub.
type Server struct {
	Hub *Hub

	options  *Options
	mu       sync.Mutex
	scanners map[string]*scanclient.Scanner
	jobs     map[string]*scanclient.Job
	jobOrder []string
	cancels  map[string]chan struct{}
	files    map[string][]byte
}

func NewServer(options *Options) *Server {
	if options == nil {
		options = DefaultOptions()
	}
	server := &Server{
		Hub:      NewHub(),
		options:  options,
		scanners: map[string]*scanclient.Scanner{},
		jobs:     map[string]*scanclient.Job{},
		cancels:  map[string]chan struct{}{},
		files:    map[string][]byte{},
	}
	for _, scanner := range options.Scanners {
		server.scanners[scanner.ID] = scanner
	}
	return server
}

// Handler returns the full http surface: the api under /api/v1 and the push channel at /ws.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	SetupHTTPServer(router, s)
	router.Get("/ws", s.Hub.ServeHTTP)
	return router
}

func (s *Server) ListScanners() []*scanclient.Scanner {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*scanclient.Scanner
	for _, scanner := range s.options.Scanners {
		copied := *s.scanners[scanner.ID]
		out = append(out, &copied)
	}
	return out
}

func (s *Server) GetScanner(scannerID string) (*scanclient.Scanner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scanner, ok := s.scanners[scannerID]
	if !ok {
		return nil, &StatusError{Code: http.StatusNotFound, Message: fmt.Sprintf("scanner %s not found", scannerID)}
	}
	copied := *scanner
	return &copied, nil
}

func (s *Server) StartScan(scan *StartScan) (*scanclient.Job, error) {
	if scan.ScannerID == "" {
		return nil, &StatusError{Code: http.StatusBadRequest, Message: "scanner_id is required"}
	}
	if _, err := s.GetScanner(scan.ScannerID); err != nil {
		return nil, err
	}
	now := time.Now()
	job := &scanclient.Job{
		ID:         rand.String(16),
		ScannerID:  scan.ScannerID,
		Status:     scanclient.JobStatusPending,
		Parameters: scan.Parameters,
		Results:    []*scanclient.ScanResult{},
		CreatedAt:  &now,
	}
	cancel := make(chan struct{})

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.jobOrder = append(s.jobOrder, job.ID)
	s.cancels[job.ID] = cancel
	snapshot := *job
	s.mu.Unlock()

	logrus.Infof("starting job %s on scanner %s", job.ID, job.ScannerID)
	go s.runJob(job.ID, cancel)
	return &snapshot, nil
}

func (s *Server) runJob(jobID string, cancel chan struct{}) {
	for _, progress := range s.options.ProgressSteps {
		select {
		case <-cancel:
			return
		case <-time.After(s.options.StepInterval):
		}
		if !s.updateJob(jobID, func(job *scanclient.Job) {
			job.Status = scanclient.JobStatusProcessing
			job.Progress = progress
		}) {
			return
		}
	}

	select {
	case <-cancel:
		return
	case <-time.After(s.options.StepInterval):
	}
	s.updateJob(jobID, func(job *scanclient.Job) {
		now := time.Now()
		job.CompletedAt = &now
		if message, ok := s.options.FailingScanners[job.ScannerID]; ok {
			job.Status = scanclient.JobStatusFailed
			job.Error = message
			return
		}
		job.Status = scanclient.JobStatusCompleted
		job.Progress = 100
		job.Results = s.makeResults(job)
	})
}

// updateJob applies f to a job that is still running, then broadcasts the new
// state.  Returns false if the job already finished.
func (s *Server) updateJob(jobID string, f func(job *scanclient.Job)) bool {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	f(job)
	snapshot := *job
	s.mu.Unlock()

	logrus.Debugf("job %s now %s at %d%%", jobID, snapshot.Status, snapshot.Progress)
	if err := s.Hub.Broadcast(push.EventJobStatus, &snapshot); err != nil {
		logrus.Errorf("unable to broadcast job %s: %+v", jobID, err)
	}
	return true
}

// makeResults must be called with s.mu held.
func (s *Server) makeResults(job *scanclient.Job) []*scanclient.ScanResult {
	pages := 1
	format := scanclient.FormatJPEG
	if job.Parameters != nil {
		if job.Parameters.PageCount != nil && *job.Parameters.PageCount > 0 {
			pages = *job.Parameters.PageCount
		}
		if job.Parameters.Format != nil {
			format = *job.Parameters.Format
		}
	}
	var results []*scanclient.ScanResult
	for page := 1; page <= pages; page++ {
		path := fmt.Sprintf("/scans/%s/page-%d.%s", job.ID, page, strings.ToLower(format))
		content := []byte(fmt.Sprintf("simulated %s page %d of job %s", format, page, job.ID))
		s.files[strings.TrimPrefix(path, "/")] = content
		results = append(results, &scanclient.ScanResult{
			PageNumber: page,
			FilePath:   path,
			FileSize:   int64(len(content)),
			Format:     format,
		})
	}
	return results
}

func (s *Server) StartBatchScan(batch *StartBatchScan) (*scanclient.BatchScanResult, error) {
	if batch.ScannerID == "" {
		return nil, &StatusError{Code: http.StatusBadRequest, Message: "scanner_id is required"}
	}
	if _, err := s.GetScanner(batch.ScannerID); err != nil {
		return nil, err
	}
	count := 1
	if batch.BatchSettings != nil && batch.BatchSettings.ScanCount > 0 {
		count = batch.BatchSettings.ScanCount
	} else if batch.BatchCount != nil && *batch.BatchCount > 0 {
		count = *batch.BatchCount
	}

	result := &scanclient.BatchScanResult{}
	for i := 1; i <= count; i++ {
		job, err := s.StartScan(&StartScan{ScannerID: batch.ScannerID, Parameters: batch.Parameters})
		if err != nil {
			return nil, err
		}
		result.JobIDs = append(result.JobIDs, job.ID)
		progress := &scanclient.BatchScanProgress{
			Stage:           "scanning",
			CurrentScan:     i,
			TotalScans:      count,
			Message:         fmt.Sprintf("started scan %d of %d", i, count),
			PercentComplete: i * 100 / count,
		}
		if err := s.Hub.Broadcast(push.EventBatchScanProgress, progress); err != nil {
			logrus.Errorf("unable to broadcast batch progress: %+v", err)
		}
	}
	result.TotalScans = count
	result.Message = fmt.Sprintf("batch of %d scans started", count)
	return result, nil
}

func (s *Server) ListJobs() []*scanclient.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*scanclient.Job
	for _, id := range s.jobOrder {
		copied := *s.jobs[id]
		out = append(out, &copied)
	}
	return out
}

func (s *Server) GetJob(jobID string) (*scanclient.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, &StatusError{Code: http.StatusNotFound, Message: "job not found"}
	}
	copied := *job
	return &copied, nil
}

func (s *Server) CancelJob(jobID string) error {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return &StatusError{Code: http.StatusNotFound, Message: "job not found"}
	}
	if job.Status != scanclient.JobStatusProcessing && job.Status != scanclient.JobStatusPending {
		s.mu.Unlock()
		return &StatusError{Code: http.StatusBadRequest, Message: "job is not running"}
	}
	close(s.cancels[jobID])
	now := time.Now()
	job.Status = scanclient.JobStatusCancelled
	job.CompletedAt = &now
	snapshot := *job
	s.mu.Unlock()

	logrus.Infof("cancelled job %s", jobID)
	return s.Hub.Broadcast(push.EventJobStatus, &snapshot)
}

func (s *Server) ReadFile(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.files[path]
	if !ok {
		return nil, &StatusError{Code: http.StatusNotFound, Message: fmt.Sprintf("file %s not found", path)}
	}
	return content, nil
}

// SetScannerStatus changes a scanner's status and announces it.
func (s *Server) SetScannerStatus(scannerID string, status string) error {
	s.mu.Lock()
	scanner, ok := s.scanners[scannerID]
	if !ok {
		s.mu.Unlock()
		return errors.Errorf("scanner %s not found", scannerID)
	}
	scanner.Status = status
	snapshot := *scanner
	s.mu.Unlock()
	return s.Hub.Broadcast(push.EventScannerStatus, &snapshot)
}

// Responder .....
type Responder interface {
	ListScanners() []*scanclient.Scanner
	GetScanner(scannerID string) (*scanclient.Scanner, error)
	StartScan(scan *StartScan) (*scanclient.Job, error)
	StartBatchScan(batch *StartBatchScan) (*scanclient.BatchScanResult, error)
	ListJobs() []*scanclient.Job
	GetJob(jobID string) (*scanclient.Job, error)
	CancelJob(jobID string) error
	ReadFile(path string) ([]byte, error)
}

// SetupHTTPServer mounts the scanning api for responder under /api/v1.
func SetupHTTPServer(router chi.Router, responder Responder) {
	router.Route(scanclient.APIPath, func(r chi.Router) {
		r.Get("/scanners", func(w http.ResponseWriter, r *http.Request) {
			writeJson(w, http.StatusOK, map[string]interface{}{"scanners": emptyIfNil(responder.ListScanners())})
		})
		r.Get("/scanners/{id}", func(w http.ResponseWriter, r *http.Request) {
			scanner, err := responder.GetScanner(chi.URLParam(r, "id"))
			respond(w, http.StatusOK, scanner, err)
		})
		r.Post("/scan", func(w http.ResponseWriter, r *http.Request) {
			request := &StartScan{}
			if err := readJson(r, request); err != nil {
				writeError(w, err)
				return
			}
			job, err := responder.StartScan(request)
			respond(w, http.StatusCreated, job, err)
		})
		r.Post("/scan/batch", func(w http.ResponseWriter, r *http.Request) {
			request := &StartBatchScan{}
			if err := readJson(r, request); err != nil {
				writeError(w, err)
				return
			}
			result, err := responder.StartBatchScan(request)
			respond(w, http.StatusOK, result, err)
		})
		r.Get("/jobs", func(w http.ResponseWriter, r *http.Request) {
			writeJson(w, http.StatusOK, map[string]interface{}{"jobs": emptyIfNil(responder.ListJobs())})
		})
		r.Get("/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
			job, err := responder.GetJob(chi.URLParam(r, "id"))
			respond(w, http.StatusOK, job, err)
		})
		r.Delete("/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
			err := responder.CancelJob(chi.URLParam(r, "id"))
			respond(w, http.StatusOK, map[string]string{"message": "job cancelled"}, err)
		})
		r.Get("/files/*", func(w http.ResponseWriter, r *http.Request) {
			content, err := responder.ReadFile(chi.URLParam(r, "*"))
			if err != nil {
				writeError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/octet-stream")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write(content); err != nil {
				logrus.Errorf("unable to write file response: %s", err.Error())
			}
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJson(w, http.StatusOK, map[string]interface{}{"status": "healthy", "time": time.Now()})
		})
	})
}

func emptyIfNil[A any](xs []A) []A {
	if xs == nil {
		return []A{}
	}
	return xs
}

func readJson(r *http.Request, obj interface{}) error {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		return &StatusError{Code: http.StatusBadRequest, Message: err.Error()}
	}
	if err := json.Unmarshal(body, obj); err != nil {
		return &StatusError{Code: http.StatusBadRequest, Message: fmt.Sprintf("invalid request body: %s", err.Error())}
	}
	return nil
}

func respond(w http.ResponseWriter, statusCode int, obj interface{}, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, statusCode, obj)
}

func writeError(w http.ResponseWriter, err error) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		writeJson(w, statusErr.Code, map[string]string{"error": statusErr.Message})
		return
	}
	logrus.Errorf("simulator error: %+v", err)
	writeJson(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJson(w http.ResponseWriter, statusCode int, obj interface{}) {
	bytes, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		logrus.Errorf("unable to marshal response: %s", err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set(http.CanonicalHeaderKey("content-type"), "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(bytes); err != nil {
		logrus.Errorf("unable to write response: %s", err.Error())
	}
}
