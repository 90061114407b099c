package compressor

import (
	"context"
	"path/filepath"
	"strings"
)

// ImageResult describes an encoded image.
type ImageResult struct {
	Size int64
	Path string
}

// VideoResult describes an encoded video. PosterPath is empty when no poster
// was requested or extraction failed.
type VideoResult struct {
	Size       int64
	Path       string
	PosterPath string
}

// ImageCompressor re-encodes still images.
type ImageCompressor interface {
	// CompressImage decodes input and writes it next to outputBase. With
	// convert set the output extension is forced to the target format,
	// otherwise the encoder is picked by outputBase's extension.
	CompressImage(input, outputBase string, convert bool) (ImageResult, error)
}

// VideoCompressor re-encodes videos through the external encoder.
type VideoCompressor interface {
	// CompressVideo writes outputBase with input's extension and optionally a
	// poster frame beside it.
	CompressVideo(ctx context.Context, input, outputBase string, generatePoster bool) (VideoResult, error)
}

// WithExtension replaces the extension of path with ext (".webp" or "webp").
// A path without an extension gets ext appended.
func WithExtension(path, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// PosterPath returns where the poster of a video output is written.
func PosterPath(videoOutput string) string {
	return strings.TrimSuffix(videoOutput, filepath.Ext(videoOutput)) + "-poster" + TargetFormatExtension
}
