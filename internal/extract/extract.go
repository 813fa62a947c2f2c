// Package extract turns uploaded office documents into plain text. Each
// supported family (PDF, word processor, presentation, spreadsheet) has one
// decoder; the Registry picks the decoder for a file and classifies the result.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/docindex/docindex/pkg/logger"
	"github.com/docindex/docindex/pkg/metrics"
)

var (
	// ErrConversion is returned when a legacy document cannot be converted to
	// a decodable format. It is the only decoder failure that fails an upload.
	ErrConversion = errors.New("document conversion failed")
	// ErrUnsupported marks an input that matched a family but is in a
	// variant that family cannot read.
	ErrUnsupported = errors.New("unsupported document variant")
)

type Format string

const (
	FormatPDF          Format = "pdf"
	FormatWord         Format = "word"
	FormatPresentation Format = "presentation"
	FormatSpreadsheet  Format = "spreadsheet"
	FormatUnsupported  Format = "unsupported"
)

type Status string

const (
	StatusOK          Status = "ok"
	StatusEmpty       Status = "empty"
	StatusDegraded    Status = "degraded"
	StatusUnsupported Status = "unsupported"
	StatusFailed      Status = "failed"
)

// Source describes a file on local disk waiting to be decoded.
type Source struct {
	Path     string
	Name     string
	MIMEType string
	Ext      string
}

// Result is the raw (not yet normalized) text of a file.
type Result struct {
	Text   string
	Format Format
	Status Status
}

// Options configures the external tools and limits used by the decoders.
type Options struct {
	PDFToTextBin           string
	LibreOfficeBin         string
	CommandTimeout         time.Duration
	SpreadsheetMemoryLimit int64
	TempDir                string
	Runner                 CommandRunner
}

type decodeFunc func(ctx context.Context, src Source) (string, error)

type family struct {
	format Format
	mimes  []string
	exts   func(ext string) bool
	decode decodeFunc
}

// Registry dispatches files to decoders. Families are tried in declaration
// order, first by MIME substring across all families, then by extension.
type Registry struct {
	families []family
	log      *logger.Component
}

func New(opts Options) *Registry {
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	if opts.PDFToTextBin == "" {
		opts.PDFToTextBin = "pdftotext"
	}
	if opts.LibreOfficeBin == "" {
		opts.LibreOfficeBin = "libreoffice"
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 2 * time.Minute
	}
	if opts.SpreadsheetMemoryLimit <= 0 {
		opts.SpreadsheetMemoryLimit = 512 << 20
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	log := logger.Named("extract")
	pdf := &pdfDecoder{bin: opts.PDFToTextBin, runner: opts.Runner, timeout: opts.CommandTimeout}
	word := &wordDecoder{bin: opts.LibreOfficeBin, runner: opts.Runner, timeout: opts.CommandTimeout, tempDir: opts.TempDir}
	sheet := &spreadsheetDecoder{memLimit: opts.SpreadsheetMemoryLimit}
	return &Registry{
		log: log,
		families: []family{
			{format: FormatPDF, mimes: []string{"pdf"}, exts: equalsAny("pdf"), decode: pdf.decode},
			{format: FormatWord, mimes: []string{"word", "msword"}, exts: func(ext string) bool { return strings.Contains(ext, "doc") }, decode: word.decode},
			{format: FormatPresentation, mimes: []string{"presentation"}, exts: equalsAny("pptx"), decode: decodePresentation},
			{format: FormatSpreadsheet, mimes: []string{"spreadsheet", "excel"}, exts: equalsAny("xlsx", "xls"), decode: sheet.decode},
		},
	}
}

func equalsAny(values ...string) func(string) bool {
	return func(ext string) bool {
		for _, v := range values {
			if ext == v {
				return true
			}
		}
		return false
	}
}

// Detect reports which family would decode a file with the given MIME type
// and extension.
func (r *Registry) Detect(mimeType, ext string) Format {
	if f := r.match(mimeType, ext); f != nil {
		return f.format
	}
	return FormatUnsupported
}

func (r *Registry) match(mimeType, ext string) *family {
	mimeType = strings.ToLower(mimeType)
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if mimeType != "" {
		for i := range r.families {
			for _, m := range r.families[i].mimes {
				if strings.Contains(mimeType, m) {
					return &r.families[i]
				}
			}
		}
	}
	if ext != "" {
		for i := range r.families {
			if r.families[i].exts(ext) {
				return &r.families[i]
			}
		}
	}
	return nil
}

// Extract decodes src. Files of no supported family yield an empty,
// unsupported result and no error. Decoder failures other than
// ErrConversion degrade to whatever text the decoder could salvage.
func (r *Registry) Extract(ctx context.Context, src Source) (Result, error) {
	f := r.match(src.MIMEType, src.Ext)
	if f == nil {
		r.observe(FormatUnsupported, StatusUnsupported)
		return Result{Format: FormatUnsupported, Status: StatusUnsupported}, nil
	}
	src.Ext = strings.ToLower(strings.TrimPrefix(src.Ext, "."))
	src.MIMEType = strings.ToLower(src.MIMEType)

	text, err := f.decode(ctx, src)
	res := Result{Text: text, Format: f.format, Status: StatusOK}
	var d *degradedError
	switch {
	case errors.As(err, &d):
		r.log.Warnf("%s: %s decoding degraded: %v", src.Name, f.format, d.err)
		res.Status = StatusDegraded
	case err != nil:
		r.observe(f.format, StatusFailed)
		return Result{Format: f.format, Status: StatusFailed}, fmt.Errorf("extract %s: %w", src.Name, err)
	case strings.TrimSpace(text) == "":
		res.Status = StatusEmpty
	}
	r.observe(f.format, res.Status)
	return res, nil
}

func (r *Registry) observe(format Format, status Status) {
	metrics.Extractions.WithLabelValues(string(format), string(status)).Inc()
}

// degradedError wraps a decoder failure that must not fail the upload.
type degradedError struct {
	err error
}

func (e *degradedError) Error() string { return e.err.Error() }
func (e *degradedError) Unwrap() error { return e.err }

func degraded(err error) error {
	if err == nil {
		err = errors.New("no text recovered")
	}
	return &degradedError{err: err}
}
