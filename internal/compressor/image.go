package compressor

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"compress-tool-go/internal/media"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// TargetFormatExtension is the container images are converted to on request.
const TargetFormatExtension = ".webp"

// Fixed encoder settings.
const (
	JPEGQuality = 80
	WebPQuality = 80
)

// ImagingCompressor decodes with imaging's format detection and encodes with
// imaging, or with the WebP encoder for .webp outputs.
type ImagingCompressor struct {
	logger *logrus.Logger
}

// NewImagingCompressor returns an ImagingCompressor.
func NewImagingCompressor(logger *logrus.Logger) *ImagingCompressor {
	return &ImagingCompressor{logger: logger}
}

// CompressImage implements ImageCompressor.
func (c *ImagingCompressor) CompressImage(input, outputBase string, convert bool) (ImageResult, error) {
	img, err := imaging.Open(input)
	if err != nil {
		return ImageResult{}, media.NewError(media.KindCodec, "decode image", input, err)
	}

	finalPath := outputBase
	if convert {
		finalPath = WithExtension(outputBase, TargetFormatExtension)
	}

	if err := encodeFile(img, finalPath); err != nil {
		return ImageResult{}, media.NewError(media.KindCodec, "encode image", finalPath, err)
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return ImageResult{}, media.NewError(media.KindIO, "stat image", finalPath, err)
	}

	if c.logger != nil {
		c.logger.WithFields(logrus.Fields{
			"file":   input,
			"output": finalPath,
			"size":   info.Size(),
		}).Debug("Image encoded")
	}
	return ImageResult{Size: info.Size(), Path: finalPath}, nil
}

// encodeFile writes img to path in the format implied by its extension. A
// partially written file is removed on failure.
func encodeFile(img image.Image, path string) (err error) {
	ext := strings.ToLower(filepath.Ext(path))

	var format imaging.Format
	if ext != TargetFormatExtension {
		format, err = imaging.FormatFromFilename(path)
		if err != nil {
			return err
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if ext == TargetFormatExtension {
		if err := webp.Encode(out, img, &webp.Options{Quality: WebPQuality}); err != nil {
			return fmt.Errorf("webp encode: %w", err)
		}
		return nil
	}

	return imaging.Encode(out, img, format,
		imaging.JPEGQuality(JPEGQuality),
		imaging.PNGCompressionLevel(png.BestCompression),
	)
}
