// Package metadata reads descriptive metadata of media files: EXIF for
// images and exiftool fields for videos. Results are cached per file
// version.
package metadata

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"sync"
	"time"

	"compress-tool-go/internal/media"

	_ "github.com/chai2010/webp"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
)

// Info is what Inspect learns about one file.
type Info struct {
	media.Descriptor
	ModTime     time.Time  `json:"modTime"`
	CaptureTime *time.Time `json:"captureTime,omitempty"`
	CameraMake  string     `json:"cameraMake,omitempty"`
	CameraModel string     `json:"cameraModel,omitempty"`
	Width       int        `json:"width,omitempty"`
	Height      int        `json:"height,omitempty"`
	Duration    string     `json:"duration,omitempty"`
	MIMEType    string     `json:"mimeType,omitempty"`
	Source      string     `json:"source"`
}

// CacheStats contains statistics about cache performance.
type CacheStats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	HitRate      float64 `json:"hitRate"`
	TotalQueries int64   `json:"totalQueries"`
}

// Inspector reads and caches file metadata.
type Inspector struct {
	scanner *media.Scanner
	videos  VideoProber
	logger  *logrus.Logger
	cache   *sync.Map
	stats   CacheStats
	mutex   sync.RWMutex
}

// NewInspector returns an Inspector. videos may be nil, in which case video
// files only get their descriptor.
func NewInspector(scanner *media.Scanner, videos VideoProber, logger *logrus.Logger) *Inspector {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Inspector{
		scanner: scanner,
		videos:  videos,
		logger:  logger,
		cache:   &sync.Map{},
	}
}

// Inspect returns metadata for a media file. Missing metadata is not an
// error; the corresponding fields stay empty.
func (i *Inspector) Inspect(path string) (Info, error) {
	desc, err := i.scanner.ScanOne(path)
	if err != nil {
		return Info{}, err
	}

	fileInfo, err := os.Stat(desc.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, media.NewError(media.KindNotFound, "inspect", path, err)
		}
		return Info{}, media.NewError(media.KindIO, "inspect", path, err)
	}

	key := cacheKey(desc.Path, fileInfo)
	if value, ok := i.cache.Load(key); ok {
		i.incrementCacheHits()
		return value.(Info), nil
	}
	i.incrementCacheMisses()

	info := Info{Descriptor: desc, ModTime: fileInfo.ModTime(), Source: "file"}
	if desc.IsImage() {
		i.inspectImage(&info)
	} else {
		i.inspectVideo(&info)
	}

	i.cache.Store(key, info)
	return info, nil
}

// ClearCache removes all entries from the internal cache and resets statistics.
// Entries are deleted in place, so concurrent Inspect calls keep a valid map.
func (i *Inspector) ClearCache() {
	i.cache.Range(func(key, _ interface{}) bool {
		i.cache.Delete(key)
		return true
	})
	i.mutex.Lock()
	i.stats = CacheStats{}
	i.mutex.Unlock()
}

// GetCacheStats returns cache statistics.
func (i *Inspector) GetCacheStats() CacheStats {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	stats := i.stats
	if stats.TotalQueries > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.TotalQueries)
	}
	return stats
}

func (i *Inspector) inspectImage(info *Info) {
	if cfg, err := decodeConfig(info.Path); err == nil {
		info.Width, info.Height = cfg.Width, cfg.Height
	} else {
		i.logger.WithError(err).WithField("file", info.Path).Debug("Could not read image dimensions")
	}

	x, err := decodeEXIF(info.Path)
	if err != nil {
		i.logger.WithError(err).WithField("file", info.Path).Debug("No EXIF data")
		return
	}
	info.Source = "exif"

	if tm, err := x.DateTime(); err == nil {
		info.CaptureTime = &tm
	} else if tm := parseEXIFTag(x, exif.DateTimeOriginal); tm != nil {
		info.CaptureTime = tm
	}
	info.CameraMake = exifString(x, exif.Make)
	info.CameraModel = exifString(x, exif.Model)
}

func (i *Inspector) inspectVideo(info *Info) {
	if i.videos == nil {
		return
	}
	fields, err := i.videos.Probe(info.Path)
	if err != nil {
		i.logger.WithError(err).WithField("file", info.Path).Debug("Video probe failed")
		return
	}
	info.Source = "exiftool"
	info.Duration = fieldString(fields, "Duration")
	info.MIMEType = fieldString(fields, "MIMEType")
	info.Width = fieldInt(fields, "ImageWidth")
	info.Height = fieldInt(fields, "ImageHeight")
	if tm := parseDateTime(fieldString(fields, "CreateDate")); tm != nil {
		info.CaptureTime = tm
	}
}

func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	return cfg, err
}

func decodeEXIF(path string) (*exif.Exif, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF: %w", err)
	}
	return x, nil
}

func exifString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return s
}

func parseEXIFTag(x *exif.Exif, name exif.FieldName) *time.Time {
	return parseDateTime(exifString(x, name))
}

// parseDateTime accepts the date layouts found in EXIF and exiftool output.
func parseDateTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	formats := []string{
		"2006:01:02 15:04:05",
		"2006:01:02 15:04:05-07:00",
		"2006-01-02 15:04:05",
		"2006:01:02",
		time.RFC3339,
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			// exiftool reports zeroed dates for unset fields
			if t.Year() <= 1 {
				return nil
			}
			return &t
		}
	}
	return nil
}

func cacheKey(path string, fileInfo os.FileInfo) string {
	return fmt.Sprintf("%s:%d:%d", path, fileInfo.Size(), fileInfo.ModTime().UnixNano())
}

func (i *Inspector) incrementCacheHits() {
	i.mutex.Lock()
	i.stats.Hits++
	i.stats.TotalQueries++
	i.mutex.Unlock()
}

func (i *Inspector) incrementCacheMisses() {
	i.mutex.Lock()
	i.stats.Misses++
	i.stats.TotalQueries++
	i.mutex.Unlock()
}
