package metadata

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/barasher/go-exiftool"
)

// VideoProber returns the raw metadata fields of a video file.
type VideoProber interface {
	Probe(path string) (map[string]interface{}, error)
}

// ExiftoolProber reads metadata through a long-running exiftool process,
// started on first use.
type ExiftoolProber struct {
	mu      sync.Mutex
	et      *exiftool.Exiftool
	initErr error
	started bool
}

// NewExiftoolProber returns an ExiftoolProber.
func NewExiftoolProber() *ExiftoolProber {
	return &ExiftoolProber{}
}

// Probe implements VideoProber. It fails if exiftool is not installed.
func (p *ExiftoolProber) Probe(path string) (map[string]interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		p.started = true
		p.et, p.initErr = exiftool.NewExiftool()
	}
	if p.initErr != nil {
		return nil, fmt.Errorf("exiftool unavailable: %w", p.initErr)
	}

	files := p.et.ExtractMetadata(path)
	if len(files) == 0 {
		return nil, fmt.Errorf("exiftool returned no metadata for %s", path)
	}
	if files[0].Err != nil {
		return nil, files[0].Err
	}
	return files[0].Fields, nil
}

// Close stops the exiftool process if one was started.
func (p *ExiftoolProber) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.et == nil {
		return nil
	}
	err := p.et.Close()
	p.et = nil
	p.started = false
	return err
}

func fieldString(fields map[string]interface{}, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func fieldInt(fields map[string]interface{}, key string) int {
	switch v := fields[key].(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
