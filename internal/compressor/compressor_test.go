package compressor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"compress-tool-go/internal/ffmpeg"
	"compress-tool-go/internal/media"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

func TestWithExtension(t *testing.T) {
	tests := []struct {
		path, ext, want string
	}{
		{"/out/a-1.png", ".webp", "/out/a-1.webp"},
		{"/out/a-1.png", "webp", "/out/a-1.webp"},
		{"/out/a-1", ".mp4", "/out/a-1.mp4"},
		{"/out/my.photo-1.JPG", ".webp", "/out/my.photo-1.webp"},
	}
	for _, tt := range tests {
		if got := WithExtension(tt.path, tt.ext); got != tt.want {
			t.Errorf("WithExtension(%q, %q) = %q, want %q", tt.path, tt.ext, got, tt.want)
		}
	}
	if got := PosterPath("/out/b-1.mp4"); got != "/out/b-1-poster.webp" {
		t.Errorf("PosterPath = %q", got)
	}
}

func TestCompressImage_KeepFormatRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "tiny.png")
	writePNG(t, in, 40, 30)

	c := NewImagingCompressor(nil)
	out := filepath.Join(dir, "out", "tiny-1.png")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := c.CompressImage(in, out, false)
	if err != nil {
		t.Fatalf("CompressImage: %v", err)
	}
	if res.Path != out {
		t.Errorf("path = %q, want %q", res.Path, out)
	}
	assertSize(t, res.Path, res.Size)

	img, err := imaging.Open(res.Path)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Errorf("dimensions %dx%d, want 40x30", b.Dx(), b.Dy())
	}
}

func TestCompressImage_JPEG(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.jpg")
	writeJPEG(t, in, 64, 48)

	res, err := NewImagingCompressor(nil).CompressImage(in, filepath.Join(dir, "photo-1.jpg"), false)
	if err != nil {
		t.Fatalf("CompressImage: %v", err)
	}
	assertSize(t, res.Path, res.Size)
}

func TestCompressImage_ConvertToTargetFormat(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a.png")
	writePNG(t, in, 20, 10)

	res, err := NewImagingCompressor(nil).CompressImage(in, filepath.Join(dir, "a-7.png"), true)
	if err != nil {
		t.Fatalf("CompressImage: %v", err)
	}
	if want := filepath.Join(dir, "a-7.webp"); res.Path != want {
		t.Fatalf("path = %q, want %q", res.Path, want)
	}
	if _, err := os.Stat(filepath.Join(dir, "a-7.png")); !os.IsNotExist(err) {
		t.Errorf("unexpected file with the original extension")
	}

	f, err := os.Open(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := webp.Decode(f)
	if err != nil {
		t.Fatalf("webp decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 10 {
		t.Errorf("dimensions %dx%d, want 20x10", b.Dx(), b.Dy())
	}
}

func TestCompressImage_KeepsStoredOrientation(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "rotated.jpg")
	writeRotatedJPEG(t, in, 40, 20)

	rotated, err := imaging.Open(in, imaging.AutoOrientation(true))
	if err != nil {
		t.Fatal(err)
	}
	if b := rotated.Bounds(); b.Dx() != 20 || b.Dy() != 40 {
		t.Fatalf("fixture orientation tag not honored: %dx%d", b.Dx(), b.Dy())
	}

	c := NewImagingCompressor(nil)
	for _, convert := range []bool{false, true} {
		res, err := c.CompressImage(in, filepath.Join(dir, "rotated-1.jpg"), convert)
		if err != nil {
			t.Fatalf("convert=%v: CompressImage: %v", convert, err)
		}
		img, err := imaging.Open(res.Path)
		if err != nil {
			t.Fatalf("convert=%v: decode output: %v", convert, err)
		}
		if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
			t.Errorf("convert=%v: dimensions %dx%d, want 40x20", convert, b.Dx(), b.Dy())
		}
	}
}

func TestCompressImage_CodecErrors(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(corrupt, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	good := filepath.Join(dir, "good.png")
	writePNG(t, good, 4, 4)

	tests := []struct {
		name    string
		input   string
		out     string
		convert bool
	}{
		{"corrupt input", corrupt, filepath.Join(dir, "broken-1.png"), false},
		{"unknown output extension", good, filepath.Join(dir, "good-1.xyz"), false},
		{"unwritable destination", good, filepath.Join(dir, "missing", "good-1.png"), false},
	}
	c := NewImagingCompressor(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CompressImage(tt.input, tt.out, tt.convert)
			if !media.IsKind(err, media.KindCodec) {
				t.Fatalf("got %v, want codec error", err)
			}
			if _, err := os.Stat(tt.out); !os.IsNotExist(err) {
				t.Errorf("output %s should not exist", tt.out)
			}
		})
	}
}

func TestCompressVideo_Args(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "clip.MOV")
	writeBytes(t, in, 2048)

	runner := &fakeRunner{outputSize: 512}
	c := NewFFmpegCompressor(ffmpeg.StaticLocator{Path: "/opt/ffmpeg"}, runner, NewImagingCompressor(nil), nil)

	res, err := c.CompressVideo(context.Background(), in, filepath.Join(dir, "clip-5"), false)
	if err != nil {
		t.Fatalf("CompressVideo: %v", err)
	}
	wantOut := filepath.Join(dir, "clip-5.MOV")
	if res.Path != wantOut || res.Size != 512 || res.PosterPath != "" {
		t.Errorf("unexpected result %+v", res)
	}

	calls := runner.Calls()
	if len(calls) != 1 {
		t.Fatalf("got %d runner calls, want 1", len(calls))
	}
	if calls[0].name != "/opt/ffmpeg" {
		t.Errorf("binary = %q", calls[0].name)
	}
	if got, want := strings.Join(calls[0].args, " "), strings.Join(ffmpeg.CompressArgs(in, wantOut), " "); got != want {
		t.Errorf("args:\n got %s\nwant %s", got, want)
	}
}

func TestCompressVideo_EncoderNotAvailable(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "b.mp4")
	writeBytes(t, in, 10)

	runner := &fakeRunner{}
	c := NewFFmpegCompressor(ffmpeg.StaticLocator{Err: errors.New("no ffmpeg")}, runner, NewImagingCompressor(nil), nil)
	_, err := c.CompressVideo(context.Background(), in, filepath.Join(dir, "b-1.mp4"), true)
	if !media.IsKind(err, media.KindEncoderNotAvailable) {
		t.Fatalf("got %v, want encoder not available", err)
	}
	if len(runner.Calls()) != 0 {
		t.Error("runner should not be invoked")
	}
}

func TestCompressVideo_NonZeroExit(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "b.mp4")
	writeBytes(t, in, 10)

	runner := &fakeRunner{failCompress: true}
	c := NewFFmpegCompressor(ffmpeg.StaticLocator{Path: "ffmpeg"}, runner, NewImagingCompressor(nil), nil)
	_, err := c.CompressVideo(context.Background(), in, filepath.Join(dir, "b-1.mp4"), false)
	if !media.IsKind(err, media.KindCodec) {
		t.Fatalf("got %v, want codec error", err)
	}
}

func TestCompressVideo_Poster(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "b.mp4")
	writeBytes(t, in, 10)

	runner := &fakeRunner{outputSize: 100, frame: true}
	c := NewFFmpegCompressor(ffmpeg.StaticLocator{Path: "ffmpeg"}, runner, NewImagingCompressor(nil), nil)
	res, err := c.CompressVideo(context.Background(), in, filepath.Join(dir, "b-1.mp4"), true)
	if err != nil {
		t.Fatalf("CompressVideo: %v", err)
	}

	wantPoster := filepath.Join(dir, "b-1-poster.webp")
	if res.PosterPath != wantPoster {
		t.Fatalf("poster = %q, want %q", res.PosterPath, wantPoster)
	}
	if _, err := os.Stat(wantPoster); err != nil {
		t.Errorf("poster missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "b-1-poster.jpg")); !os.IsNotExist(err) {
		t.Error("intermediate frame was not removed")
	}

	calls := runner.Calls()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	wantArgs := ffmpeg.PosterArgs(in, filepath.Join(dir, "b-1-poster.jpg"))
	if strings.Join(calls[1].args, " ") != strings.Join(wantArgs, " ") {
		t.Errorf("poster args = %v, want %v", calls[1].args, wantArgs)
	}
}

func TestCompressVideo_PosterFailureDegrades(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
	}{
		{"process fails", &fakeRunner{outputSize: 100, failPoster: true}},
		{"undecodable frame", &fakeRunner{outputSize: 100, garbageFrame: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			in := filepath.Join(dir, "b.mp4")
			writeBytes(t, in, 10)

			c := NewFFmpegCompressor(ffmpeg.StaticLocator{Path: "ffmpeg"}, tt.runner, NewImagingCompressor(nil), nil)
			res, err := c.CompressVideo(context.Background(), in, filepath.Join(dir, "b-1.mp4"), true)
			if err != nil {
				t.Fatalf("poster failure must not fail the encode: %v", err)
			}
			if res.PosterPath != "" {
				t.Errorf("poster = %q, want empty", res.PosterPath)
			}
			if _, err := os.Stat(filepath.Join(dir, "b-1-poster.jpg")); !os.IsNotExist(err) {
				t.Error("intermediate frame was not removed")
			}
			if _, err := os.Stat(filepath.Join(dir, "b-1-poster.webp")); !os.IsNotExist(err) {
				t.Error("partial poster left behind")
			}
		})
	}
}

func TestExtractPoster(t *testing.T) {
	tests := []struct {
		name         string
		output       string
		intermediate string
	}{
		{"webp", "still.webp", "still.jpg"},
		{"png", "still.png", "still.jpg"},
		{"jpeg output", "still.jpg", "still.frame.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			in := filepath.Join(dir, "b.mp4")
			writeBytes(t, in, 10)
			out := filepath.Join(dir, tt.output)

			runner := &fakeRunner{frame: true}
			c := NewFFmpegCompressor(ffmpeg.StaticLocator{Path: "ffmpeg"}, runner, NewImagingCompressor(nil), nil)
			if err := c.ExtractPoster(context.Background(), in, out); err != nil {
				t.Fatalf("ExtractPoster: %v", err)
			}

			img, err := imaging.Open(out)
			if err != nil {
				t.Fatalf("decode poster: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 9 {
				t.Errorf("poster is %dx%d, want 16x9", b.Dx(), b.Dy())
			}

			calls := runner.Calls()
			if len(calls) != 1 {
				t.Fatalf("got %d calls, want 1", len(calls))
			}
			frame := filepath.Join(dir, tt.intermediate)
			if got, want := strings.Join(calls[0].args, " "), strings.Join(ffmpeg.PosterArgs(in, frame), " "); got != want {
				t.Errorf("args:\n got %s\nwant %s", got, want)
			}
			if _, err := os.Stat(frame); !os.IsNotExist(err) {
				t.Error("intermediate frame was not removed")
			}
		})
	}
}

func TestExtractPoster_Errors(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "b.mp4")
	writeBytes(t, in, 10)
	out := filepath.Join(dir, "still.webp")

	c := NewFFmpegCompressor(ffmpeg.StaticLocator{Err: errors.New("no ffmpeg")}, &fakeRunner{frame: true}, NewImagingCompressor(nil), nil)
	if err := c.ExtractPoster(context.Background(), in, out); !media.IsKind(err, media.KindEncoderNotAvailable) {
		t.Errorf("missing encoder: got %v", err)
	}

	c = NewFFmpegCompressor(ffmpeg.StaticLocator{Path: "ffmpeg"}, &fakeRunner{failPoster: true}, NewImagingCompressor(nil), nil)
	if err := c.ExtractPoster(context.Background(), in, out); !media.IsKind(err, media.KindCodec) {
		t.Errorf("process failure: got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("poster written despite failure")
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	writeBytes(t, src, 3000)
	dst := filepath.Join(dir, "dst.bin")

	n, err := CopyFile(src, dst)
	if err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	if n != 3000 {
		t.Errorf("copied %d bytes, want 3000", n)
	}
	a, _ := os.ReadFile(src)
	b, _ := os.ReadFile(dst)
	if string(a) != string(b) {
		t.Error("copy is not byte-identical")
	}
}

type runnerCall struct {
	name string
	args []string
}

// fakeRunner stands in for ffmpeg: the output path is the second to last
// argument of both argument lists.
type fakeRunner struct {
	mu    sync.Mutex
	calls []runnerCall

	outputSize   int
	frame        bool
	garbageFrame bool
	failCompress bool
	failPoster   bool
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	r.mu.Lock()
	r.calls = append(r.calls, runnerCall{name: name, args: append([]string(nil), args...)})
	r.mu.Unlock()

	out := args[len(args)-2]
	isPoster := len(args) > 2 && args[2] == "-vframes"

	if isPoster {
		switch {
		case r.failPoster:
			_ = os.WriteFile(out, []byte("partial"), 0o644)
			return errors.New("exit status 1")
		case r.garbageFrame:
			return os.WriteFile(out, []byte("not a jpeg"), 0o644)
		default:
			return writeFrame(out)
		}
	}

	if r.failCompress {
		return errors.New("exit status 1")
	}
	return os.WriteFile(out, make([]byte, r.outputSize), 0o644)
}

func (r *fakeRunner) Calls() []runnerCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]runnerCall(nil), r.calls...)
}

func writeFrame(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, testImage(16, 9), &jpeg.Options{Quality: 90})
}

func testImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 11), B: 128, A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, testImage(w, h)); err != nil {
		t.Fatal(err)
	}
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, testImage(w, h), nil); err != nil {
		t.Fatal(err)
	}
}

// writeRotatedJPEG writes a w x h JPEG carrying an EXIF Orientation tag of 6
// (rotate 90 degrees clockwise for display).
func writeRotatedJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(w, h), nil); err != nil {
		t.Fatal(err)
	}
	exif := []byte("Exif\x00\x00" +
		"MM\x00\x2a\x00\x00\x00\x08" + // big-endian TIFF header, IFD at 8
		"\x00\x01" + // one entry
		"\x01\x12\x00\x03\x00\x00\x00\x01\x00\x06\x00\x00" + // Orientation, SHORT, 6
		"\x00\x00\x00\x00") // no next IFD
	segment := append([]byte{0xff, 0xe1, byte((len(exif) + 2) >> 8), byte(len(exif) + 2)}, exif...)

	data := buf.Bytes()
	out := append(append(append([]byte{}, data[:2]...), segment...), data[2:]...)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeBytes(t *testing.T, path string, n int) {
	t.Helper()
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func assertSize(t *testing.T, path string, want int64) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.Size() != want {
		t.Errorf("%s: reported size %d, actual %d", path, want, info.Size())
	}
}
