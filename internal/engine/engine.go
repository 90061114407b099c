// Package engine drives compression jobs: it resolves output paths,
// dispatches files to the compressors, applies the copy fallback in batch
// mode and reports progress.
package engine

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"compress-tool-go/internal/compressor"
	"compress-tool-go/internal/logger"
	"compress-tool-go/internal/media"
	"compress-tool-go/internal/statistics"

	"github.com/sirupsen/logrus"
)

// Options tunes an Engine. The zero value processes files one at a time.
type Options struct {
	// Workers is the number of files compressed concurrently in a batch.
	// Progress is still reported in scan order.
	Workers int
	// Now returns the job start time used for the name suffix.
	Now func() time.Time
	// Stats accumulates counters across jobs. A fresh one is used if nil.
	Stats *statistics.Statistics
}

// Engine runs single-file and folder compression jobs.
type Engine struct {
	scanner *media.Scanner
	images  compressor.ImageCompressor
	videos  compressor.VideoCompressor
	logger  *logrus.Logger
	stats   *statistics.Statistics
	workers int
	now     func() time.Time
}

// New returns an Engine.
func New(scanner *media.Scanner, images compressor.ImageCompressor, videos compressor.VideoCompressor, log *logrus.Logger, opts Options) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Stats == nil {
		opts.Stats = statistics.NewStatistics()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Engine{
		scanner: scanner,
		images:  images,
		videos:  videos,
		logger:  log,
		stats:   opts.Stats,
		workers: opts.Workers,
		now:     opts.Now,
	}
}

// Stats returns the engine's counters.
func (e *Engine) Stats() *statistics.Statistics {
	return e.stats
}

// Scanner returns the scanner the engine enumerates files with.
func (e *Engine) Scanner() *media.Scanner {
	return e.scanner
}

// CompressFile compresses one file into outputDir as "<stem>-<suffix><ext>".
// Failures are returned as is; there is no copy fallback. The input is
// validated before outputDir is touched.
func (e *Engine) CompressFile(ctx context.Context, input, outputDir string, opts JobOptions) (*SingleResult, error) {
	desc, err := e.scanner.ScanOne(input)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, media.NewError(media.KindIO, "create output directory", outputDir, err)
	}

	suffix := Suffix(e.now())
	dest := filepath.Join(outputDir, SuffixedName(filepath.Base(desc.Path), suffix))

	log := logger.ForFile(e.logger, desc.Path, "compress_file")
	log.WithField(logger.FieldOutput, dest).Info("Compressing file")

	out, err := e.compress(ctx, desc, dest, opts)
	if err != nil {
		e.stats.AddError(desc.Path, "compress_file", err.Error())
		return nil, err
	}
	e.record(desc, out)

	logger.WithSizes(log, desc.Size, out.size).WithField(logger.FieldOutput, out.path).Info("File compressed")

	return &SingleResult{
		OriginalSize:   desc.Size,
		CompressedSize: out.size,
		OutputPath:     out.path,
		PosterPath:     out.poster,
	}, nil
}

// CompressTree compresses every media file under inputRoot into a new
// directory "<outputDir>/<folder>-<suffix>", mirroring the folder layout.
// A file that cannot be compressed is copied verbatim instead and the batch
// carries on. sink may be nil.
func (e *Engine) CompressTree(ctx context.Context, inputRoot, outputDir string, opts JobOptions, sink ProgressSink) (*BatchResult, error) {
	info, err := os.Stat(inputRoot)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, media.NewError(media.KindNotFound, "compress tree", inputRoot, err)
		}
		return nil, media.NewError(media.KindIO, "compress tree", inputRoot, err)
	}
	if !info.IsDir() {
		return nil, media.NewError(media.KindIO, "compress tree", inputRoot, errors.New("not a directory"))
	}

	suffix := Suffix(e.now())
	root := OutputRoot(inputRoot, outputDir, suffix)
	if err := e.createRoot(outputDir, root); err != nil {
		return nil, err
	}

	log := logger.ForBatch(e.logger, inputRoot, root)
	files, err := e.scanner.ScanTree(inputRoot)
	if err != nil {
		return nil, err
	}
	e.stats.AddFilesFound(len(files))
	log.WithField("files", len(files)).Info("Starting batch")

	result := &BatchResult{
		OutputPath: root,
		Files:      make([]FileOutcome, 0, len(files)),
	}

	total := len(files)
	dests := planDestinations(root, suffix, files, opts)
	e.run(ctx, files, func(i int, d media.Descriptor) FileOutcome {
		return e.processFile(ctx, d, dests[i], opts)
	}, func(i int, fo FileOutcome) {
		result.TotalOriginal += fo.OriginalSize
		result.TotalCompressed += fo.ResultSize
		result.FileCount++
		if fo.Outcome == OutcomeCopiedFallback {
			result.FallbackCount++
		}
		result.Files = append(result.Files, fo)

		if sink != nil {
			sink.Progress(ProgressEvent{
				File:           fo.File,
				Current:        i + 1,
				Total:          total,
				OriginalSize:   fo.OriginalSize,
				CompressedSize: fo.ResultSize,
				Outcome:        fo.Outcome,
			})
		}
	})

	e.stats.Finalize()
	logger.WithSizes(log, result.TotalOriginal, result.TotalCompressed).WithFields(logrus.Fields{
		"files":     result.FileCount,
		"fallbacks": result.FallbackCount,
	}).Info("Batch completed")

	return result, nil
}

// createRoot makes outputDir if needed and then root itself, which must not
// exist yet.
func (e *Engine) createRoot(outputDir, root string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return media.NewError(media.KindIO, "create output directory", outputDir, err)
	}
	if err := os.Mkdir(root, 0755); err != nil {
		return media.NewError(media.KindIO, "create output root", root, err)
	}
	e.stats.IncrementDirectoriesCreated()
	return nil
}

// processFile compresses one batch file, falling back to a verbatim copy.
func (e *Engine) processFile(ctx context.Context, d media.Descriptor, dest string, opts JobOptions) FileOutcome {
	fo := FileOutcome{
		File:         d.Name,
		Source:       d.Path,
		Type:         d.Type,
		OriginalSize: d.Size,
	}

	out, err := e.compressInto(ctx, d, dest, opts)
	if err == nil {
		e.record(d, out)
		fo.Outcome = OutcomeCompressed
		fo.ResultSize = out.size
		fo.OutputPath = out.path
		fo.PosterPath = out.poster
		logger.WithSizes(logger.ForFile(e.logger, d.Path, "compress_"+d.Type.String()), d.Size, out.size).
			WithField(logger.FieldOutput, out.path).Debug("File compressed")
		return fo
	}

	log := logger.ForFile(e.logger, d.Path, "compress_"+d.Type.String()).WithField(logger.FieldOutput, dest)
	log.WithError(err).Warn("Compression failed, copying original")
	e.stats.AddError(d.Path, "compress_"+d.Type.String(), err.Error())
	e.stats.IncrementFilesProcessed()
	e.stats.IncrementFilesFallback()
	e.stats.IncrementFileType(d.Extension)
	e.stats.AddBytes(d.Size, d.Size)

	fo.Outcome = OutcomeCopiedFallback
	fo.ResultSize = d.Size
	fo.OutputPath = dest
	fo.Error = err.Error()

	if _, cerr := compressor.CopyFile(d.Path, dest); cerr != nil {
		log.WithError(cerr).Error("Fallback copy failed")
		e.stats.AddError(d.Path, "copy_fallback", cerr.Error())
	}
	return fo
}

// compressInto ensures dest's parent exists and compresses into it.
func (e *Engine) compressInto(ctx context.Context, d media.Descriptor, dest string, opts JobOptions) (encoded, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return encoded{}, media.NewError(media.KindIO, "create directory", dir, err)
	}
	return e.compress(ctx, d, dest, opts)
}

// encoded is what a compressor produced for one file.
type encoded struct {
	size   int64
	path   string
	poster string
}

func (e *Engine) compress(ctx context.Context, d media.Descriptor, dest string, opts JobOptions) (encoded, error) {
	switch d.Type {
	case media.TypeImage:
		res, err := e.images.CompressImage(d.Path, dest, opts.ConvertImages)
		if err != nil {
			return encoded{}, err
		}
		return encoded{size: res.Size, path: res.Path}, nil
	case media.TypeVideo:
		res, err := e.videos.CompressVideo(ctx, d.Path, dest, opts.GeneratePoster)
		if err != nil {
			return encoded{}, err
		}
		if opts.GeneratePoster {
			if res.PosterPath != "" {
				e.stats.IncrementPostersGenerated()
			} else {
				e.stats.IncrementPostersFailed()
			}
		}
		return encoded{size: res.Size, path: res.Path, poster: res.PosterPath}, nil
	default:
		return encoded{}, media.NewError(media.KindUnsupportedType, "compress", d.Path, nil)
	}
}

// record counts a successful compression.
func (e *Engine) record(d media.Descriptor, out encoded) {
	e.stats.IncrementFilesProcessed()
	e.stats.IncrementFilesCompressed()
	e.stats.IncrementFileType(d.Extension)
	e.stats.AddBytes(d.Size, out.size)
	if d.IsImage() {
		e.stats.IncrementImagesProcessed()
	} else {
		e.stats.IncrementVideosProcessed()
	}
}
