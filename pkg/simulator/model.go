package simulator

import "github.com/scanserver/scanner-client/pkg/scanclient"

type StartScan struct {
	ScannerID  string                     `json:"scanner_id"`
	Parameters *scanclient.ScanParameters `json:"parameters"`
}

type StartBatchScan struct {
	ScannerID     string                     `json:"scanner_id"`
	Parameters    *scanclient.ScanParameters `json:"parameters"`
	BatchCount    *int                       `json:"batch_count"`
	BatchSettings *scanclient.BatchSettings  `json:"batch_settings"`
}

// StatusError is a failure the responder wants reported with a specific status code.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

func DefaultScanners() []*scanclient.Scanner {
	return []*scanclient.Scanner{
		{
			ID:           "sim-flatbed",
			Name:         "Simulated Flatbed",
			Model:        "FB-100",
			Manufacturer: "Simulator",
			Status:       "idle",
			Capabilities: &scanclient.Capabilities{
				MaxWidth:        216,
				MaxHeight:       297,
				Resolutions:     []int{150, 300, 600},
				ColorModes:      []string{scanclient.ColorModeColor, scanclient.ColorModeGrayscale, scanclient.ColorModeBlackAndWhite},
				DocumentFormats: []string{scanclient.FormatPDF, scanclient.FormatJPEG, scanclient.FormatPNG, scanclient.FormatTIFF},
			},
		},
		{
			ID:           "sim-feeder",
			Name:         "Simulated Feeder",
			Model:        "ADF-200",
			Manufacturer: "Simulator",
			Status:       "idle",
			Capabilities: &scanclient.Capabilities{
				MaxWidth:        216,
				MaxHeight:       356,
				Resolutions:     []int{200, 300},
				ColorModes:      []string{scanclient.ColorModeColor, scanclient.ColorModeGrayscale},
				DocumentFormats: []string{scanclient.FormatPDF, scanclient.FormatJPEG},
				FeederEnabled:   true,
				DuplexEnabled:   true,
			},
		},
	}
}
