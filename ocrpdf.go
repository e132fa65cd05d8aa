// Package ocrpdf extracts text from batches of images with a vision model
// and lays the results out as a PDF with each image beside its text.
package ocrpdf

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brunobiangulo/ocrpdf/imagefile"
	"github.com/brunobiangulo/ocrpdf/llm"
	"github.com/brunobiangulo/ocrpdf/ocr"
	"github.com/brunobiangulo/ocrpdf/pdfgen"
	"github.com/brunobiangulo/ocrpdf/report"
	"github.com/brunobiangulo/ocrpdf/tempfile"
)

// Service is the main entry point for OCR and document generation.
type Service interface {
	// ProcessImages runs OCR over images sequentially, in order, stopping
	// according to the configured policy. Per-image failures are reported
	// in the outcomes; the error is non-nil only for ErrNoImages or an
	// interrupted batch.
	ProcessImages(ctx context.Context, images []imagefile.Image) ([]ocr.Outcome, error)

	// GeneratePDF renders one page per pair, plus a summary page when
	// images failed to embed.
	GeneratePDF(ctx context.Context, pairs []pdfgen.Pair) (*pdfgen.Result, error)

	// GenerateWorkbook renders outcomes as an xlsx workbook.
	GenerateWorkbook(ctx context.Context, rows []report.Row) ([]byte, error)

	// Close sweeps leftover temp files.
	Close() error
}

// Option customises New.
type Option func(*options)

type options struct {
	provider llm.VisionProvider
	log      Logger
}

// Logger is the logging capability shared by every component. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// WithProvider replaces the provider built from Config.LLM.
func WithProvider(p llm.VisionProvider) Option {
	return func(o *options) { o.provider = p }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l Logger) Option {
	return func(o *options) { o.log = l }
}

// service is the concrete implementation of Service.
type service struct {
	cfg       Config
	log       Logger
	temp      *tempfile.Manager
	batch     *ocr.Batch
	assembler *pdfgen.Assembler
}

// New creates a Service from cfg.
func New(cfg Config, opts ...Option) (Service, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider := o.provider
	if provider == nil {
		var err error
		provider, err = llm.NewProvider(cfg.providerConfig())
		if err != nil {
			return nil, fmt.Errorf("creating vision provider: %w", err)
		}
	}

	temp := tempfile.New(cfg.TempDir, time.Duration(cfg.MinOrphanAgeSeconds)*time.Second, o.log)
	client := ocr.NewClient(provider, cfg.Prompt, o.log)

	return &service{
		cfg:       cfg,
		log:       o.log,
		temp:      temp,
		batch:     ocr.NewBatch(client, temp, ocr.StopPolicy(cfg.StopPolicy), o.log),
		assembler: pdfgen.NewAssembler(o.log),
	}, nil
}

func (s *service) ProcessImages(ctx context.Context, images []imagefile.Image) ([]ocr.Outcome, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	outcomes, err := s.batch.ProcessAll(ctx, images)
	if err != nil {
		return outcomes, fmt.Errorf("processing images: %w", err)
	}
	return outcomes, nil
}

func (s *service) GeneratePDF(ctx context.Context, pairs []pdfgen.Pair) (*pdfgen.Result, error) {
	if len(pairs) == 0 {
		return nil, ErrNoResults
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.assembler.Assemble(pairs)
}

func (s *service) GenerateWorkbook(ctx context.Context, rows []report.Row) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoResults
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := report.Workbook(rows)
	if err != nil {
		return nil, fmt.Errorf("generating workbook: %w", err)
	}
	s.log.Info("workbook generated", "rows", len(rows), "bytes", len(data))
	return data, nil
}

// Close shuts down the service.
func (s *service) Close() error {
	if n := s.temp.CleanupOrphans(); n > 0 {
		s.log.Info("shutdown orphan sweep", "deleted", n)
	}
	return nil
}
