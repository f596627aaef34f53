package scanclient

import "time"

type Capabilities struct {
	MaxWidth        int      `json:"max_width"`
	MaxHeight       int      `json:"max_height"`
	Resolutions     []int    `json:"resolutions"`
	ColorModes      []string `json:"color_modes"`
	DocumentFormats []string `json:"document_formats"`
	FeederEnabled   bool     `json:"feeder_enabled"`
	DuplexEnabled   bool     `json:"duplex_enabled"`
}

// Scanner is a device reported by the service.  Status is whatever the server
// says (idle, scanning, error, ...), it is not validated here.
type Scanner struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Model        string        `json:"model"`
	Manufacturer string        `json:"manufacturer"`
	Status       string        `json:"status"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`
	LastSeen     *time.Time    `json:"last_seen,omitempty"`
}

type JobStatus string

const (
	JobStatusCreated    JobStatus = "created"
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

type ScanResult struct {
	PageNumber int    `json:"page_number"`
	FilePath   string `json:"file_path"`
	FileSize   int64  `json:"file_size"`
	Format     string `json:"format,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

type Job struct {
	ID          string          `json:"id"`
	ScannerID   string          `json:"scanner_id"`
	Status      JobStatus       `json:"status"`
	Progress    int             `json:"progress"`
	Parameters  *ScanParameters `json:"parameters,omitempty"`
	Results     []*ScanResult   `json:"results"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty"`
}

type BatchScanType string

const (
	BatchScanSingle             BatchScanType = "single"
	BatchScanMultipleWithPrompt BatchScanType = "multiple_with_prompt"
	BatchScanMultipleWithDelay  BatchScanType = "multiple_with_delay"
)

type BatchSettings struct {
	ProfileDisplayName  string        `json:"profile_display_name,omitempty"`
	ScanType            BatchScanType `json:"scan_type,omitempty"`
	ScanCount           int           `json:"scan_count,omitempty"`
	ScanIntervalSeconds float64       `json:"scan_interval_seconds,omitempty"`
	OutputType          string        `json:"output_type,omitempty"`
	SaveSeparator       string        `json:"save_separator,omitempty"`
	SavePath            string        `json:"save_path,omitempty"`
}

// BatchRequest selects how a batch is described to the server: a plain count,
// or full settings.  Settings wins when both are given.
type BatchRequest struct {
	Count    int
	Settings *BatchSettings
}

type batchScanBody struct {
	ScannerID     string          `json:"scanner_id"`
	Parameters    *ScanParameters `json:"parameters"`
	BatchCount    *int            `json:"batch_count,omitempty"`
	BatchSettings *BatchSettings  `json:"batch_settings,omitempty"`
}

type scanBody struct {
	ScannerID  string          `json:"scanner_id"`
	Parameters *ScanParameters `json:"parameters"`
}

// BatchScanResult covers both batch response shapes: a list of created job ids,
// or the summary of a batch which already ran.
type BatchScanResult struct {
	JobIDs     []string        `json:"job_ids,omitempty"`
	Message    string          `json:"message,omitempty"`
	TotalScans int             `json:"total_scans,omitempty"`
	TotalPages int             `json:"total_pages,omitempty"`
	Scans      [][]*ScanResult `json:"scans,omitempty"`
}

type BatchScanProgress struct {
	Stage           string `json:"stage"`
	CurrentScan     int    `json:"current_scan"`
	TotalScans      int    `json:"total_scans"`
	CurrentPage     int    `json:"current_page"`
	TotalPages      int    `json:"total_pages"`
	Message         string `json:"message"`
	PercentComplete int    `json:"percent_complete"`
}

type Health struct {
	Status string     `json:"status"`
	Time   *time.Time `json:"time,omitempty"`
}

type CancelResponse struct {
	Message string `json:"message"`
}

type scannersResponse struct {
	Scanners []*Scanner `json:"scanners"`
}

type jobsResponse struct {
	Jobs []*Job `json:"jobs"`
}

type errorResponse struct {
	Error string `json:"error"`
}
