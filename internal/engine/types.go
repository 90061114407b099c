package engine

import (
	"compress-tool-go/internal/media"
)

// JobOptions are the per-call switches of a compression job.
type JobOptions struct {
	ConvertImages  bool
	GeneratePoster bool
}

// ProgressEvent reports one processed file of a batch. Current is 1-based.
type ProgressEvent struct {
	File           string  `json:"file"`
	Current        int     `json:"current"`
	Total          int     `json:"total"`
	OriginalSize   int64   `json:"originalSize"`
	CompressedSize int64   `json:"compressedSize"`
	Outcome        Outcome `json:"outcome"`
}

// ProgressSink receives batch progress. Events of one batch arrive in order,
// from a single goroutine.
type ProgressSink interface {
	Progress(ProgressEvent)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) Progress(ev ProgressEvent) { f(ev) }

// Outcome tells whether a file was compressed or copied verbatim.
type Outcome int

const (
	OutcomeCompressed Outcome = iota
	OutcomeCopiedFallback
)

func (o Outcome) String() string {
	if o == OutcomeCopiedFallback {
		return "copied_fallback"
	}
	return "compressed"
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// FileOutcome is the result of one file in a batch.
type FileOutcome struct {
	File         string          `json:"file"`
	Source       string          `json:"source"`
	Type         media.MediaType `json:"fileType"`
	Outcome      Outcome         `json:"outcome"`
	OriginalSize int64           `json:"originalSize"`
	ResultSize   int64           `json:"compressedSize"`
	OutputPath   string          `json:"outputPath"`
	PosterPath   string          `json:"posterPath,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// BatchResult is the outcome of a folder job.
type BatchResult struct {
	TotalOriginal   int64         `json:"totalOriginal"`
	TotalCompressed int64         `json:"totalCompressed"`
	FileCount       int           `json:"fileCount"`
	OutputPath      string        `json:"outputPath"`
	FallbackCount   int           `json:"fallbackCount"`
	Files           []FileOutcome `json:"files,omitempty"`
}

// Fallbacks returns the files that were copied instead of compressed.
func (r *BatchResult) Fallbacks() []FileOutcome {
	var out []FileOutcome
	for _, f := range r.Files {
		if f.Outcome == OutcomeCopiedFallback {
			out = append(out, f)
		}
	}
	return out
}

// SingleResult is the outcome of a one-file job.
type SingleResult struct {
	OriginalSize   int64  `json:"originalSize"`
	CompressedSize int64  `json:"compressedSize"`
	OutputPath     string `json:"outputPath"`
	PosterPath     string `json:"posterPath,omitempty"`
}
