package scanclient

import (
	"github.com/mattfenwick/collections/pkg/slice"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

// ScanParameters are all optional: a nil field means "not given", and is
// filled from the client's defaults before the request is sent.
type ScanParameters struct {
	Resolution  *int    `json:"resolution,omitempty"`
	ColorMode   *string `json:"color_mode,omitempty"`
	Format      *string `json:"format,omitempty"`
	PageSize    *string `json:"page_size,omitempty"`
	Width       *int    `json:"width,omitempty"`
	Height      *int    `json:"height,omitempty"`
	JpegQuality *int    `json:"jpeg_quality,omitempty"`
	Brightness  *int    `json:"brightness,omitempty"`
	Contrast    *int    `json:"contrast,omitempty"`
	UseDuplex   *bool   `json:"use_duplex,omitempty"`
	UseFeeder   *bool   `json:"use_feeder,omitempty"`
	PageCount   *int    `json:"page_count,omitempty"`

	// passed through untouched, the server owns their defaults
	PageAlign         *string  `json:"page_align,omitempty"`
	ScaleRatio        *int     `json:"scale_ratio,omitempty"`
	MaxQuality        *bool    `json:"max_quality,omitempty"`
	ExcludeBlankPages *bool    `json:"exclude_blank_pages,omitempty"`
	AutoDeskew        *bool    `json:"auto_deskew,omitempty"`
	RotateDegrees     *float64 `json:"rotate_degrees,omitempty"`
	FlipDuplexedPages *bool    `json:"flip_duplexed_pages,omitempty"`
	StretchToPageSize *bool    `json:"stretch_to_page_size,omitempty"`
	CropToPageSize    *bool    `json:"crop_to_page_size,omitempty"`
}

const (
	ColorModeColor         = "Color"
	ColorModeGrayscale     = "Grayscale"
	ColorModeBlackAndWhite = "BlackAndWhite"

	FormatPDF  = "PDF"
	FormatJPEG = "JPEG"
	FormatPNG  = "PNG"
	FormatTIFF = "TIFF"
)

func ptr[A any](a A) *A {
	return &a
}

// DefaultScanParameters are applied under every scan request.  Width and
// height describe A4 in millimeters.
func DefaultScanParameters() *ScanParameters {
	return &ScanParameters{
		Resolution:  ptr(300),
		ColorMode:   ptr(ColorModeColor),
		Format:      ptr(FormatJPEG),
		Width:       ptr(210),
		Height:      ptr(297),
		JpegQuality: ptr(75),
		Brightness:  ptr(0),
		Contrast:    ptr(0),
		UseDuplex:   ptr(false),
		UseFeeder:   ptr(false),
		PageCount:   ptr(1),
	}
}

// PDFScanParameters is the default set with PDF output.
func PDFScanParameters() *ScanParameters {
	params := DefaultScanParameters()
	params.Format = ptr(FormatPDF)
	return params
}

func orDefault[A any](value *A, def *A) *A {
	if value != nil {
		return value
	}
	return def
}

// WithDefaults returns a copy of p where every nil field is taken from defaults.
// Supplied values always win, including zero values such as false or 0.
func (p *ScanParameters) WithDefaults(defaults *ScanParameters) *ScanParameters {
	if p == nil {
		p = &ScanParameters{}
	}
	if defaults == nil {
		defaults = &ScanParameters{}
	}
	merged := *p
	merged.Resolution = orDefault(p.Resolution, defaults.Resolution)
	merged.ColorMode = orDefault(p.ColorMode, defaults.ColorMode)
	merged.Format = orDefault(p.Format, defaults.Format)
	merged.PageSize = orDefault(p.PageSize, defaults.PageSize)
	merged.Width = orDefault(p.Width, defaults.Width)
	merged.Height = orDefault(p.Height, defaults.Height)
	merged.JpegQuality = orDefault(p.JpegQuality, defaults.JpegQuality)
	merged.Brightness = orDefault(p.Brightness, defaults.Brightness)
	merged.Contrast = orDefault(p.Contrast, defaults.Contrast)
	merged.UseDuplex = orDefault(p.UseDuplex, defaults.UseDuplex)
	merged.UseFeeder = orDefault(p.UseFeeder, defaults.UseFeeder)
	merged.PageCount = orDefault(p.PageCount, defaults.PageCount)
	merged.PageAlign = orDefault(p.PageAlign, defaults.PageAlign)
	merged.ScaleRatio = orDefault(p.ScaleRatio, defaults.ScaleRatio)
	merged.MaxQuality = orDefault(p.MaxQuality, defaults.MaxQuality)
	merged.ExcludeBlankPages = orDefault(p.ExcludeBlankPages, defaults.ExcludeBlankPages)
	merged.AutoDeskew = orDefault(p.AutoDeskew, defaults.AutoDeskew)
	merged.RotateDegrees = orDefault(p.RotateDegrees, defaults.RotateDegrees)
	merged.FlipDuplexedPages = orDefault(p.FlipDuplexedPages, defaults.FlipDuplexedPages)
	merged.StretchToPageSize = orDefault(p.StretchToPageSize, defaults.StretchToPageSize)
	merged.CropToPageSize = orDefault(p.CropToPageSize, defaults.CropToPageSize)
	return &merged
}

type PageDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PaperSizes in millimeters.
var PaperSizes = map[string]PageDimensions{
	"Letter": {Width: 216, Height: 279},
	"Legal":  {Width: 216, Height: 356},
	"A4":     {Width: 210, Height: 297},
	"A3":     {Width: 297, Height: 420},
	"A5":     {Width: 148, Height: 210},
	"B4":     {Width: 250, Height: 353},
	"B5":     {Width: 176, Height: 250},
	"A6":     {Width: 105, Height: 148},
}

func PaperSizeNames() []string {
	return slice.Sort(maps.Keys(PaperSizes))
}

// WithPageSize returns a copy of p with the named page size and its dimensions set.
func (p *ScanParameters) WithPageSize(name string) (*ScanParameters, error) {
	dims, ok := PaperSizes[name]
	if !ok {
		return nil, errors.Errorf("unknown page size %s; expected one of %+v", name, PaperSizeNames())
	}
	out := p.WithDefaults(nil)
	out.PageSize = ptr(name)
	out.Width = ptr(dims.Width)
	out.Height = ptr(dims.Height)
	return out, nil
}
