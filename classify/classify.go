// Package classify maps raw OCR and PDF failures onto closed sets of error
// kinds, each with one fixed user-facing message.
package classify

import (
	"errors"
	"fmt"
	"strings"
)

// Stage identifies which half of the pipeline produced an error.
type Stage string

const (
	StageOCR Stage = "ocr"
	StagePDF Stage = "pdf"
)

// Kind is a classified error kind. The OCR and PDF stages use disjoint sets,
// except for KindUnknown which both share.
type Kind string

// OCR stage kinds.
const (
	KindInvalidAPIKey          Kind = "INVALID_API_KEY"
	KindRateLimitExceeded      Kind = "RATE_LIMIT_EXCEEDED"
	KindUnsupportedImageFormat Kind = "UNSUPPORTED_IMAGE_FORMAT"
	KindProcessingError        Kind = "PROCESSING_ERROR"
)

// PDF stage kinds.
const (
	KindImageLoadError     Kind = "IMAGE_LOAD_ERROR"
	KindImageFormatError   Kind = "IMAGE_FORMAT_ERROR"
	KindPDFGenerationError Kind = "PDF_GENERATION_ERROR"
	KindFileSystemError    Kind = "FILE_SYSTEM_ERROR"
)

// KindUnknown is used by both stages when nothing else matches.
const KindUnknown Kind = "UNKNOWN_ERROR"

// IsCritical reports whether an OCR failure of this kind means the rest of
// the batch cannot succeed either.
func IsCritical(k Kind) bool {
	return k == KindInvalidAPIKey || k == KindRateLimitExceeded
}

// Error is a classified pipeline error. Message is the raw detail and is
// meant for logs; UserMessage returns the fixed sentence for Kind.
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// UserMessage returns the stage-appropriate sentence for the error's kind.
func (e *Error) UserMessage() string {
	return UserMessage(e.Stage, e.Kind)
}

// NewError builds a classified error with an explicit kind.
func NewError(stage Stage, kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Cause: cause}
}

// Classification is the output of a Classifier.
type Classification struct {
	Kind        Kind   `json:"kind"`
	UserMessage string `json:"user_message"`
}

// Classifier turns an opaque error into a Classification.
type Classifier interface {
	Classify(err error, stage Stage) Classification
}

// Classify runs the default substring classifier.
func Classify(err error, stage Stage) Classification {
	return Default.Classify(err, stage)
}

// KindOf is shorthand for Classify(err, stage).Kind.
func KindOf(err error, stage Stage) Kind {
	return Default.Classify(err, stage).Kind
}

// Default is the table-driven classifier used throughout the service.
var Default Classifier = substringClassifier{
	StageOCR: ocrRules,
	StagePDF: pdfRules,
}

type rule struct {
	phrases []string
	kind    Kind
}

func (r rule) matches(msg string) bool {
	for _, p := range r.phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Evaluated in order, first match wins.
var ocrRules = []rule{
	{[]string{"api key", "api_key", "apikey", "permission denied", "unauthenticated"}, KindInvalidAPIKey},
	{[]string{"quota", "rate limit", "rate_limit", "resource exhausted", "resource_exhausted", "too many requests"}, KindRateLimitExceeded},
	{[]string{"format", "image", "mime"}, KindUnsupportedImageFormat},
}

var pdfRules = []rule{
	{[]string{"decode", "format", "unsupported", "codec"}, KindImageFormatError},
	{[]string{"load", "fetch", "read", "data url"}, KindImageLoadError},
	{[]string{"no such file", "permission", "disk", "temp"}, KindFileSystemError},
	{[]string{"no pairs", "serializ", "pdf", "output"}, KindPDFGenerationError},
}

type substringClassifier map[Stage][]rule

func (c substringClassifier) Classify(err error, stage Stage) Classification {
	if err == nil {
		return Classification{Kind: KindUnknown, UserMessage: UserMessage(stage, KindUnknown)}
	}

	var ce *Error
	if errors.As(err, &ce) && ce.Kind != "" {
		return Classification{Kind: ce.Kind, UserMessage: UserMessage(stage, ce.Kind)}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	kind := KindUnknown
	if msg != "" {
		for _, r := range c[stage] {
			if r.matches(msg) {
				kind = r.kind
				break
			}
		}
		if kind == KindUnknown && stage == StageOCR {
			kind = KindProcessingError
		}
	}
	return Classification{Kind: kind, UserMessage: UserMessage(stage, kind)}
}

var ocrMessages = map[Kind]string{
	KindInvalidAPIKey:          "The OCR service rejected the API key. Please check the server configuration.",
	KindRateLimitExceeded:      "The OCR service rate limit was exceeded. Please wait a moment and try again.",
	KindUnsupportedImageFormat: "This image format is not supported. Please use JPG, PNG, WebP or HEIC.",
	KindProcessingError:        "The image could not be processed. Please try again.",
	KindUnknown:                "An unexpected error occurred while extracting text.",
}

var pdfMessages = map[Kind]string{
	KindImageLoadError:     "One or more images could not be loaded into the PDF.",
	KindImageFormatError:   "One or more images have a format that cannot be placed in the PDF.",
	KindPDFGenerationError: "The PDF could not be generated. Please try again.",
	KindFileSystemError:    "A file system error occurred while generating the PDF.",
	KindUnknown:            "An unexpected error occurred while generating the PDF.",
}

// UserMessage returns the fixed sentence shown to end users for kind. Kinds
// that do not belong to stage map to the stage's unknown message.
func UserMessage(stage Stage, kind Kind) string {
	table := ocrMessages
	if stage == StagePDF {
		table = pdfMessages
	}
	if m, ok := table[kind]; ok {
		return m
	}
	return table[KindUnknown]
}
