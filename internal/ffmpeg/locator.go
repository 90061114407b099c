package ffmpeg

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"compress-tool-go/internal/media"
)

// BinaryName is the executable looked up in the data directory and on PATH.
const BinaryName = "ffmpeg"

var errNotInstalled = errors.New("ffmpeg is not installed; install it or set encoder.ffmpeg_path")

// Locator resolves the encoder executable. Installing the binary is not its
// job: it only looks in the places it is told about.
type Locator interface {
	Locate() (string, error)
}

// PathLocator searches, in order, an explicitly configured path, the
// application data directory, and PATH.
type PathLocator struct {
	ConfiguredPath string
	DataDir        string

	lookPath func(string) (string, error)
}

// NewPathLocator returns a PathLocator.
func NewPathLocator(configuredPath, dataDir string) *PathLocator {
	return &PathLocator{
		ConfiguredPath: configuredPath,
		DataDir:        dataDir,
		lookPath:       exec.LookPath,
	}
}

// Locate returns the resolved executable path or a KindEncoderNotAvailable error.
func (l *PathLocator) Locate() (string, error) {
	if l.ConfiguredPath != "" {
		if isExecutableFile(l.ConfiguredPath) {
			return l.ConfiguredPath, nil
		}
		return "", media.NewError(media.KindEncoderNotAvailable, "locate encoder", l.ConfiguredPath,
			errors.New("configured ffmpeg_path is not an executable file"))
	}

	if l.DataDir != "" {
		candidate := filepath.Join(l.DataDir, binaryFileName())
		if isExecutableFile(candidate) {
			return candidate, nil
		}
	}

	lookPath := l.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if path, err := lookPath(BinaryName); err == nil && path != "" {
		return path, nil
	}

	return "", media.NewError(media.KindEncoderNotAvailable, "locate encoder", "", errNotInstalled)
}

// StaticLocator always returns Path, or Err when set.
type StaticLocator struct {
	Path string
	Err  error
}

func (s StaticLocator) Locate() (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.Path, nil
}

// Status reports whether the encoder is usable.
type Status struct {
	Installed bool   `json:"installed"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
}

// CheckStatus resolves the encoder and reads the first line of its -version
// output. A version probe failure leaves Version empty.
func CheckStatus(ctx context.Context, locator Locator) Status {
	path, err := locator.Locate()
	if err != nil {
		return Status{}
	}
	return Status{
		Installed: true,
		Path:      path,
		Version:   version(ctx, path),
	}
}

func version(ctx context.Context, path string) string {
	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return ""
	}
	firstLine := strings.TrimSpace(string(out))
	if idx := strings.Index(firstLine, "\n"); idx > 0 {
		firstLine = strings.TrimSpace(firstLine[:idx])
	}
	return firstLine
}

// DefaultDataDir returns the per-user directory where an installer may drop
// the encoder binary.
func DefaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "compress-tool", "bin")
}

func binaryFileName() string {
	if runtime.GOOS == "windows" {
		return BinaryName + ".exe"
	}
	return BinaryName
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
