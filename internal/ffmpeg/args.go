// Package ffmpeg wraps the external video encoder: locating the executable,
// running it as a child process, and building its argument lists.
package ffmpeg

// Fixed encode parameters. They target broad player compatibility rather than
// maximum compression and are not configurable.
const (
	VideoCodec        = "libx264"
	VideoCRF          = "23"
	VideoPreset       = "medium"
	PixelFormat       = "yuv420p"
	AudioCodec        = "aac"
	AudioBitrate      = "128k"
	MuxingQueueSize   = "1024"
	PosterFrames      = "1"
	PosterJPEGQuality = "2"
)

// CompressArgs returns the argument list for re-encoding input into output.
//
//	-map 0                       keep every input stream
//	-c:v libx264 -crf 23         constant quality H.264
//	-pix_fmt yuv420p             widely decodable pixel format
//	-c:a aac -b:a 128k           fixed bitrate audio
//	-c:s copy                    subtitles untouched
//	-disposition:v:0 default     first video stream is the default one
//	-movflags +faststart         moov atom up front
//	-max_muxing_queue_size 1024  multi-stream inputs do not overflow the muxer
func CompressArgs(input, output string) []string {
	return []string{
		"-i", input,
		"-map", "0",
		"-c:v", VideoCodec,
		"-crf", VideoCRF,
		"-preset", VideoPreset,
		"-pix_fmt", PixelFormat,
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		"-c:s", "copy",
		"-disposition:v:0", "default",
		"-movflags", "+faststart",
		"-max_muxing_queue_size", MuxingQueueSize,
		output,
		"-y",
	}
}

// PosterArgs returns the argument list for grabbing a single frame of input
// as a JPEG at output.
func PosterArgs(input, output string) []string {
	return []string{
		"-i", input,
		"-vframes", PosterFrames,
		"-q:v", PosterJPEGQuality,
		output,
		"-y",
	}
}
