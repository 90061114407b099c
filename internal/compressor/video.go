package compressor

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"compress-tool-go/internal/ffmpeg"
	"compress-tool-go/internal/media"

	"github.com/sirupsen/logrus"
)

// defaultVideoExtension is used for inputs without an extension.
const defaultVideoExtension = ".mp4"

// FFmpegCompressor transcodes videos with the external encoder and extracts
// posters through it.
type FFmpegCompressor struct {
	locator ffmpeg.Locator
	runner  ffmpeg.Runner
	images  ImageCompressor
	logger  *logrus.Logger
}

// NewFFmpegCompressor returns an FFmpegCompressor. images re-encodes the
// extracted poster frame.
func NewFFmpegCompressor(locator ffmpeg.Locator, runner ffmpeg.Runner, images ImageCompressor, logger *logrus.Logger) *FFmpegCompressor {
	return &FFmpegCompressor{
		locator: locator,
		runner:  runner,
		images:  images,
		logger:  logger,
	}
}

// CompressVideo implements VideoCompressor. The container format is kept:
// the output takes input's extension, only the streams are re-encoded.
func (c *FFmpegCompressor) CompressVideo(ctx context.Context, input, outputBase string, generatePoster bool) (VideoResult, error) {
	bin, err := c.locate()
	if err != nil {
		return VideoResult{}, err
	}

	ext := filepath.Ext(input)
	if ext == "" {
		ext = defaultVideoExtension
	}
	output := WithExtension(outputBase, ext)

	if err := c.runner.Run(ctx, bin, ffmpeg.CompressArgs(input, output)...); err != nil {
		return VideoResult{}, media.NewError(media.KindCodec, "encode video", input, err)
	}

	info, err := os.Stat(output)
	if err != nil {
		return VideoResult{}, media.NewError(media.KindCodec, "encode video", output, err)
	}

	result := VideoResult{Size: info.Size(), Path: output}
	if generatePoster {
		poster := PosterPath(output)
		if err := c.extractPoster(ctx, bin, input, poster); err != nil {
			c.logEntry(input).WithError(err).Warn("Poster extraction failed, continuing without poster")
		} else {
			result.PosterPath = poster
		}
	}

	c.logEntry(input).WithFields(logrus.Fields{
		"output": output,
		"size":   result.Size,
		"poster": result.PosterPath,
	}).Debug("Video encoded")
	return result, nil
}

// ExtractPoster writes one frame of input to output, encoded by output's
// extension.
func (c *FFmpegCompressor) ExtractPoster(ctx context.Context, input, output string) error {
	bin, err := c.locate()
	if err != nil {
		return err
	}
	return c.extractPoster(ctx, bin, input, output)
}

// extractPoster grabs a JPEG frame into an intermediate file beside output and
// re-encodes it. The intermediate is removed on every path; a failed removal
// is ignored.
func (c *FFmpegCompressor) extractPoster(ctx context.Context, bin, input, output string) error {
	intermediate := WithExtension(output, ".jpg")
	if intermediate == output {
		intermediate = WithExtension(output, ".frame.jpg")
	}
	defer func() {
		_ = os.Remove(intermediate)
	}()

	if err := c.runner.Run(ctx, bin, ffmpeg.PosterArgs(input, intermediate)...); err != nil {
		return media.NewError(media.KindCodec, "extract poster", input, err)
	}
	if _, err := os.Stat(intermediate); err != nil {
		return media.NewError(media.KindCodec, "extract poster", intermediate, err)
	}

	if _, err := c.images.CompressImage(intermediate, output, false); err != nil {
		return err
	}
	return nil
}

func (c *FFmpegCompressor) locate() (string, error) {
	bin, err := c.locator.Locate()
	if err != nil {
		var merr *media.Error
		if errors.As(err, &merr) {
			return "", err
		}
		return "", media.NewError(media.KindEncoderNotAvailable, "locate encoder", "", err)
	}
	return bin, nil
}

func (c *FFmpegCompressor) logEntry(file string) *logrus.Entry {
	logger := c.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithField("file", file)
}
