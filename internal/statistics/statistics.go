package statistics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics contains counters for one compression run.
type Statistics struct {
	FilesFound      int64
	FilesProcessed  int64
	ImagesProcessed int64
	VideosProcessed int64
	FilesCompressed int64
	FilesFallback   int64

	PostersGenerated int64
	PostersFailed    int64

	BytesOriginal   int64
	BytesCompressed int64

	DirectoriesCreated int64

	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	FilesPerSecond float64

	Errors []StatError

	FileTypeStats map[string]int64

	mutex sync.RWMutex
}

// StatError represents a per-file failure that was absorbed by the run.
type StatError struct {
	FilePath  string    `json:"file"`
	Operation string    `json:"operation"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:     time.Now(),
		FileTypeStats: make(map[string]int64),
		Errors:        make([]StatError, 0),
	}
}

// AddFilesFound increases the count of discovered files.
func (s *Statistics) AddFilesFound(n int) {
	atomic.AddInt64(&s.FilesFound, int64(n))
}

// IncrementFilesProcessed increases the count of processed files by 1.
func (s *Statistics) IncrementFilesProcessed() {
	atomic.AddInt64(&s.FilesProcessed, 1)
}

// IncrementImagesProcessed increases the count of processed images by 1.
func (s *Statistics) IncrementImagesProcessed() {
	atomic.AddInt64(&s.ImagesProcessed, 1)
}

// IncrementVideosProcessed increases the count of processed videos by 1.
func (s *Statistics) IncrementVideosProcessed() {
	atomic.AddInt64(&s.VideosProcessed, 1)
}

// IncrementFilesCompressed increases the count of successfully compressed files by 1.
func (s *Statistics) IncrementFilesCompressed() {
	atomic.AddInt64(&s.FilesCompressed, 1)
}

// IncrementFilesFallback increases the count of files copied verbatim by 1.
func (s *Statistics) IncrementFilesFallback() {
	atomic.AddInt64(&s.FilesFallback, 1)
}

// IncrementPostersGenerated increases the count of written posters by 1.
func (s *Statistics) IncrementPostersGenerated() {
	atomic.AddInt64(&s.PostersGenerated, 1)
}

// IncrementPostersFailed increases the count of failed poster extractions by 1.
func (s *Statistics) IncrementPostersFailed() {
	atomic.AddInt64(&s.PostersFailed, 1)
}

// IncrementDirectoriesCreated increases the count of created directories by 1.
func (s *Statistics) IncrementDirectoriesCreated() {
	atomic.AddInt64(&s.DirectoriesCreated, 1)
}

// AddBytes adds one file's sizes before and after compression.
func (s *Statistics) AddBytes(original, compressed int64) {
	atomic.AddInt64(&s.BytesOriginal, original)
	atomic.AddInt64(&s.BytesCompressed, compressed)
}

// IncrementFileType increases the count for a file extension by 1.
func (s *Statistics) IncrementFileType(fileType string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.FileTypeStats[strings.ToUpper(fileType)]++
}

// AddError records a failure that occurred during processing.
func (s *Statistics) AddError(filePath, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// Finalize calculates duration and throughput.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	processed := atomic.LoadInt64(&s.FilesProcessed)
	if s.Duration.Seconds() > 0 {
		s.FilesPerSecond = float64(processed) / s.Duration.Seconds()
	}
}

// SavedPercent returns the share of bytes saved, 0 when nothing was processed.
func (s *Statistics) SavedPercent() float64 {
	original := atomic.LoadInt64(&s.BytesOriginal)
	compressed := atomic.LoadInt64(&s.BytesCompressed)
	if original <= 0 {
		return 0
	}
	return float64(original-compressed) * 100 / float64(original)
}

// Snapshot is a copy of the counters safe to serialize.
type Snapshot struct {
	FilesFound       int64   `json:"filesFound"`
	FilesProcessed   int64   `json:"filesProcessed"`
	FilesCompressed  int64   `json:"filesCompressed"`
	FilesFallback    int64   `json:"filesFallback"`
	PostersGenerated int64   `json:"postersGenerated"`
	PostersFailed    int64   `json:"postersFailed"`
	BytesOriginal    int64   `json:"bytesOriginal"`
	BytesCompressed  int64   `json:"bytesCompressed"`
	SavedPercent     float64 `json:"savedPercent"`
}

// Snapshot returns the current counters.
func (s *Statistics) Snapshot() Snapshot {
	return Snapshot{
		FilesFound:       atomic.LoadInt64(&s.FilesFound),
		FilesProcessed:   atomic.LoadInt64(&s.FilesProcessed),
		FilesCompressed:  atomic.LoadInt64(&s.FilesCompressed),
		FilesFallback:    atomic.LoadInt64(&s.FilesFallback),
		PostersGenerated: atomic.LoadInt64(&s.PostersGenerated),
		PostersFailed:    atomic.LoadInt64(&s.PostersFailed),
		BytesOriginal:    atomic.LoadInt64(&s.BytesOriginal),
		BytesCompressed:  atomic.LoadInt64(&s.BytesCompressed),
		SavedPercent:     s.SavedPercent(),
	}
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	duration := s.Duration
	filesPerSecond := s.FilesPerSecond
	s.mutex.RUnlock()

	return fmt.Sprintf(`Compression Summary:

Files:
		Found: %d
		Processed: %d
		Images: %d
		Videos: %d
		Compressed: %d
		Copied (fallback): %d

Posters:
		Generated: %d
		Failed: %d

Size:
		Original: %s
		Compressed: %s
		Saved: %.1f%%

Performance:
		Duration: %v
		Files/Second: %.2f
		Directories Created: %d`,
		atomic.LoadInt64(&s.FilesFound),
		atomic.LoadInt64(&s.FilesProcessed),
		atomic.LoadInt64(&s.ImagesProcessed),
		atomic.LoadInt64(&s.VideosProcessed),
		atomic.LoadInt64(&s.FilesCompressed),
		atomic.LoadInt64(&s.FilesFallback),
		atomic.LoadInt64(&s.PostersGenerated),
		atomic.LoadInt64(&s.PostersFailed),
		FormatBytes(atomic.LoadInt64(&s.BytesOriginal)),
		FormatBytes(atomic.LoadInt64(&s.BytesCompressed)),
		s.SavedPercent(),
		duration,
		filesPerSecond,
		atomic.LoadInt64(&s.DirectoriesCreated))
}

// GetFileTypeBreakdown returns a formatted breakdown of processed extensions.
func (s *Statistics) GetFileTypeBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.FileTypeStats) == 0 {
		return "No file type statistics available"
	}

	types := make([]string, 0, len(s.FileTypeStats))
	for fileType := range s.FileTypeStats {
		types = append(types, fileType)
	}
	sort.Strings(types)

	result := "File Type Breakdown:\n"
	for _, fileType := range types {
		result += fmt.Sprintf("  %s: %d\n", fileType, s.FileTypeStats[fileType])
	}
	return result
}

// GetErrorSummary returns a summary of absorbed failures.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return result
}

// GetErrors returns a copy of the recorded errors.
func (s *Statistics) GetErrors() []StatError {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return append([]StatError(nil), s.Errors...)
}

// FormatBytes returns a human-readable string for a byte count.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
