package engine

import (
	"path/filepath"
	"testing"
	"time"

	"compress-tool-go/internal/media"
)

func TestSuffix(t *testing.T) {
	tests := []struct {
		unix int64
		want string
	}{
		{1700123456, "123456"},
		{1700000042, "42"},
		{999999, "999999"},
		{2000000, "0"},
	}
	for _, tt := range tests {
		if got := Suffix(time.Unix(tt.unix, 0)); got != tt.want {
			t.Errorf("Suffix(%d) = %q, want %q", tt.unix, got, tt.want)
		}
	}
}

func TestSuffixedName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"a.png", "a-7.png"},
		{"clip.tar.mp4", "clip.tar-7.mp4"},
		{"noext", "noext-7"},
	}
	for _, tt := range tests {
		if got := SuffixedName(tt.name, "7"); got != tt.want {
			t.Errorf("SuffixedName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestOutputRootAndDestination(t *testing.T) {
	root := OutputRoot("/photos/trip/", "/out", "9")
	if want := filepath.Join("/out", "trip-9"); root != want {
		t.Errorf("OutputRoot = %q, want %q", root, want)
	}

	if got, want := DestinationPath(root, filepath.Join("day1", "x.jpg"), "9"), filepath.Join(root, "day1", "x-9.jpg"); got != want {
		t.Errorf("DestinationPath = %q, want %q", got, want)
	}
	if got, want := DestinationPath(root, "/elsewhere/y.mp4", "9"), filepath.Join(root, "y-9.mp4"); got != want {
		t.Errorf("absolute DestinationPath = %q, want %q", got, want)
	}
}

func TestDefaultOutputDir(t *testing.T) {
	if got := DefaultOutputDir("/photos/trip/", true); got != "/photos/trip-compressed" {
		t.Errorf("folder default = %q", got)
	}
	if got := DefaultOutputDir("/photos/a.png", false); got != "/photos" {
		t.Errorf("file default = %q", got)
	}
}

func TestPlanDestinations(t *testing.T) {
	root := filepath.Join("out", "album-1")
	image := func(name string) media.Descriptor {
		return media.Descriptor{Name: name, Type: media.TypeImage, Extension: media.Extension(name)}
	}
	video := func(name string) media.Descriptor {
		return media.Descriptor{Name: name, Type: media.TypeVideo, Extension: media.Extension(name)}
	}

	tests := []struct {
		name  string
		files []media.Descriptor
		opts  JobOptions
		want  []string
	}{
		{
			name:  "converted images sharing a stem",
			files: []media.Descriptor{image("a.gif"), image("a.png"), image("b.png")},
			opts:  JobOptions{ConvertImages: true},
			want:  []string{"a-1.gif", "a-1-png.png", "b-1.png"},
		},
		{
			name:  "kept formats do not clash",
			files: []media.Descriptor{image("a.gif"), image("a.png")},
			want:  []string{"a-1.gif", "a-1.png"},
		},
		{
			name:  "case variants of one name",
			files: []media.Descriptor{image("A.PNG"), image("a.png")},
			want:  []string{"A-1.PNG", "a-1-png.png"},
		},
		{
			name:  "counter after the extension tag",
			files: []media.Descriptor{image("a.png"), image("a.gif"), image("a.GIF")},
			opts:  JobOptions{ConvertImages: true},
			want:  []string{"a-1.png", "a-1-gif.gif", "a-1-gif-2.GIF"},
		},
		{
			name:  "videos differing in case",
			files: []media.Descriptor{video("b.mp4"), video("b.MP4")},
			opts:  JobOptions{GeneratePoster: true},
			want:  []string{"b-1.mp4", "b-1-mp4.MP4"},
		},
		{
			name:  "same names in different folders",
			files: []media.Descriptor{image("a.png"), image(filepath.Join("sub", "a.gif"))},
			opts:  JobOptions{ConvertImages: true},
			want:  []string{"a-1.png", filepath.Join("sub", "a-1.gif")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := planDestinations(root, "1", tt.files, tt.opts)
			for i, want := range tt.want {
				if got[i] != filepath.Join(root, want) {
					t.Errorf("file %s: got %q, want %q", tt.files[i].Name, got[i], filepath.Join(root, want))
				}
			}
		})
	}
}
