package media

import (
	"path/filepath"
	"strings"
)

// MediaType is the semantic type of a file as decided by its extension.
type MediaType int

const (
	TypeOther MediaType = iota
	TypeImage
	TypeVideo
)

// String returns the wire name of the media type.
func (t MediaType) String() string {
	switch t {
	case TypeImage:
		return "image"
	case TypeVideo:
		return "video"
	default:
		return "other"
	}
}

// MarshalText encodes the type as "image", "video" or "other".
func (t MediaType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Descriptor describes one discovered media file. Type is never TypeOther.
type Descriptor struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Type      MediaType `json:"fileType"`
	Extension string    `json:"extension"`
}

// Stem returns the base file name without its extension.
func (d Descriptor) Stem() string {
	base := filepath.Base(d.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsImage reports whether the descriptor is an image.
func (d Descriptor) IsImage() bool { return d.Type == TypeImage }

// IsVideo reports whether the descriptor is a video.
func (d Descriptor) IsVideo() bool { return d.Type == TypeVideo }

// DefaultImageExtensions are the image formats recognized out of the box.
var DefaultImageExtensions = []string{"jpg", "jpeg", "png", "webp", "gif", "bmp"}

// DefaultVideoExtensions are the video formats recognized out of the box.
var DefaultVideoExtensions = []string{"mp4", "mov", "avi", "mkv", "webm"}

// FormatSet is an immutable pair of recognized image and video extensions.
// Extensions are stored lowercase without the leading dot.
type FormatSet struct {
	images map[string]struct{}
	videos map[string]struct{}
}

// NewFormatSet builds a FormatSet from extension lists. Entries may carry a
// leading dot and any case.
func NewFormatSet(images, videos []string) FormatSet {
	return FormatSet{
		images: toSet(images),
		videos: toSet(videos),
	}
}

// DefaultFormatSet returns the built-in image and video extension sets.
func DefaultFormatSet() FormatSet {
	return NewFormatSet(DefaultImageExtensions, DefaultVideoExtensions)
}

// Images returns the image extensions in no particular order.
func (f FormatSet) Images() []string { return keys(f.images) }

// Videos returns the video extensions in no particular order.
func (f FormatSet) Videos() []string { return keys(f.videos) }

// Classifier maps file extensions to media types.
type Classifier struct {
	formats FormatSet
}

// NewClassifier returns a Classifier for the given format set.
func NewClassifier(formats FormatSet) *Classifier {
	return &Classifier{formats: formats}
}

// Classify returns the media type for an extension. The comparison is
// case-insensitive and a leading dot is ignored. An empty extension is TypeOther.
func (c *Classifier) Classify(ext string) MediaType {
	ext = NormalizeExtension(ext)
	if ext == "" {
		return TypeOther
	}
	if _, ok := c.formats.images[ext]; ok {
		return TypeImage
	}
	if _, ok := c.formats.videos[ext]; ok {
		return TypeVideo
	}
	return TypeOther
}

// ClassifyPath classifies a path by its extension.
func (c *Classifier) ClassifyPath(path string) MediaType {
	return c.Classify(Extension(path))
}

// Extension returns the lowercase extension of path without the dot. A name
// whose only dot is the leading one, like ".png", has no extension.
func Extension(path string) string {
	base := filepath.Base(path)
	if strings.LastIndex(base, ".") <= 0 {
		return ""
	}
	return NormalizeExtension(filepath.Ext(base))
}

// NormalizeExtension lowercases ext and strips a leading dot.
func NormalizeExtension(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

func toSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		if n := NormalizeExtension(ext); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
