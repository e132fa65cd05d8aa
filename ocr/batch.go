package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/brunobiangulo/ocrpdf/classify"
	"github.com/brunobiangulo/ocrpdf/imagefile"
	"github.com/brunobiangulo/ocrpdf/tempfile"
)

// Outcome is the result of processing one image. Success is true iff Text
// holds the extraction, which may be empty.
type Outcome struct {
	FileName string
	Text     string
	Success  bool

	// ErrorKind and ErrorMessage are set on failure. ErrorMessage is the
	// fixed user-facing sentence for the kind; the raw cause is in Err.
	ErrorKind    classify.Kind
	ErrorMessage string
	Err          error
}

func succeeded(name, text string) Outcome {
	return Outcome{FileName: name, Text: text, Success: true}
}

func failed(name string, err error) Outcome {
	kind := classify.KindOf(err, classify.StageOCR)
	return Outcome{
		FileName:     name,
		ErrorKind:    kind,
		ErrorMessage: classify.UserMessage(classify.StageOCR, kind),
		Err:          err,
	}
}

// StopPolicy decides whether a failed image halts the rest of the batch.
type StopPolicy string

const (
	// StopOnAnyError halts after the first failure of any kind.
	StopOnAnyError StopPolicy = "any"
	// StopOnCritical halts only for critical kinds (bad API key, rate
	// limit); other failures are recorded and the batch continues.
	StopOnCritical StopPolicy = "critical"
)

// ShouldStop reports whether a failure of kind ends the batch.
func (p StopPolicy) ShouldStop(kind classify.Kind) bool {
	if p == StopOnCritical {
		return classify.IsCritical(kind)
	}
	return true
}

// Valid reports whether p is a known policy.
func (p StopPolicy) Valid() bool {
	return p == StopOnAnyError || p == StopOnCritical
}

// Extractor is the single-image OCR call. *Client implements it.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte, mimeType string) (string, error)
}

// TempStore is the subset of *tempfile.Manager the batch uses.
type TempStore interface {
	CreateTempCopy(data []byte, originalName string) (string, error)
	Cleanup(paths []string) tempfile.CleanupResult
	CleanupOrphans() int
}

// Per-image states, logged at debug level.
const (
	statePending         = "pending"
	stateTempFileWritten = "temp_file_written"
	stateAPICalled       = "api_called"
	stateSucceeded       = "succeeded"
	stateFailed          = "failed"
	stateTempFileCleaned = "temp_file_cleaned"
)

// Batch runs images through an Extractor sequentially, in input order.
type Batch struct {
	extractor Extractor
	temp      TempStore
	policy    StopPolicy
	log       Logger
}

// NewBatch returns a Batch. An unknown policy falls back to StopOnAnyError.
func NewBatch(extractor Extractor, temp TempStore, policy StopPolicy, log Logger) *Batch {
	if !policy.Valid() {
		policy = StopOnAnyError
	}
	if log == nil {
		log = slog.Default()
	}
	return &Batch{extractor: extractor, temp: temp, policy: policy, log: log}
}

// ProcessAll returns one Outcome per attempted image, in input order. Images
// after a stopping failure are not attempted and have no Outcome. Per-image
// failures are data, not errors; the error is non-nil only when the context
// ends mid-batch, in which case the outcomes so far are still returned.
// Orphaned temp files are swept before returning, whatever happened.
func (b *Batch) ProcessAll(ctx context.Context, images []imagefile.Image) ([]Outcome, error) {
	defer func() {
		if n := b.temp.CleanupOrphans(); n > 0 {
			b.log.Info("batch orphan sweep", "deleted", n)
		}
	}()

	outcomes := make([]Outcome, 0, len(images))
	stopped := false
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return outcomes, fmt.Errorf("batch interrupted after %d of %d images: %w", i, len(images), err)
		}

		out := b.processOne(ctx, img)
		outcomes = append(outcomes, out)

		if !out.Success && b.policy.ShouldStop(out.ErrorKind) {
			stopped = true
			b.log.Warn("batch stopped",
				"file", img.Name,
				"kind", out.ErrorKind,
				"critical", classify.IsCritical(out.ErrorKind),
				"attempted", i+1,
				"skipped", len(images)-i-1,
			)
			break
		}
	}

	s := Summarize(outcomes)
	b.log.Info("batch complete",
		"images", len(images),
		"processed", s.TotalProcessed,
		"succeeded", s.SuccessCount,
		"failed", s.FailureCount,
		"stopped", stopped,
	)
	return outcomes, nil
}

func (b *Batch) processOne(ctx context.Context, img imagefile.Image) (out Outcome) {
	b.log.Debug("ocr image", "file", img.Name, "state", statePending)

	path, err := b.temp.CreateTempCopy(img.Data, img.Name)
	if err != nil {
		b.log.Error("temp copy failed", "file", img.Name, "error", err)
		return failed(img.Name, classify.NewError(classify.StageOCR, classify.KindProcessingError, err.Error(), err))
	}
	b.log.Debug("ocr image", "file", img.Name, "state", stateTempFileWritten)

	defer func() {
		b.temp.Cleanup([]string{path})
		b.log.Debug("ocr image", "file", img.Name, "state", stateTempFileCleaned)
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		b.log.Error("reading temp copy failed", "file", img.Name, "error", err)
		return failed(img.Name, classify.NewError(classify.StageOCR, classify.KindProcessingError, err.Error(), err))
	}

	text, err := b.extractor.ExtractText(ctx, data, img.MIMEType())
	b.log.Debug("ocr image", "file", img.Name, "state", stateAPICalled)
	if err != nil {
		out = failed(img.Name, err)
		b.log.Warn("ocr image", "file", img.Name, "state", stateFailed, "kind", out.ErrorKind, "error", err)
		return out
	}

	b.log.Debug("ocr image", "file", img.Name, "state", stateSucceeded, "chars", len(text))
	return succeeded(img.Name, text)
}

// Summary counts outcomes.
type Summary struct {
	TotalProcessed int `json:"totalProcessed"`
	SuccessCount   int `json:"successCount"`
	FailureCount   int `json:"failureCount"`
}

// Summarize counts successes and failures.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{TotalProcessed: len(outcomes)}
	for _, o := range outcomes {
		if o.Success {
			s.SuccessCount++
		} else {
			s.FailureCount++
		}
	}
	return s
}

// FirstCritical returns the first outcome that failed with a critical kind.
func FirstCritical(outcomes []Outcome) (Outcome, bool) {
	for _, o := range outcomes {
		if !o.Success && classify.IsCritical(o.ErrorKind) {
			return o, true
		}
	}
	return Outcome{}, false
}

// IsInterrupted reports whether err came from a cancelled or expired context.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
