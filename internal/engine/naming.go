package engine

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"compress-tool-go/internal/compressor"
	"compress-tool-go/internal/media"
)

// suffixModulus keeps the suffix at six digits at most.
const suffixModulus = 1000000

// Suffix returns the collision-avoidance token for a job started at t: the
// Unix seconds modulo one million.
//
// The token is not unique. Jobs started within the same second, or exactly
// a multiple of ~11.6 days apart, get the same value.
func Suffix(t time.Time) string {
	return strconv.FormatInt(t.Unix()%suffixModulus, 10)
}

// SuffixedName returns "<stem>-<suffix><ext>" for a file name.
func SuffixedName(name, suffix string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return stem + "-" + suffix + ext
}

// OutputRoot returns "<outputDir>/<base name of input>-<suffix>".
func OutputRoot(input, outputDir, suffix string) string {
	name := filepath.Base(filepath.Clean(input))
	return filepath.Join(outputDir, name+"-"+suffix)
}

// DestinationPath mirrors a scanned file's relative path under root, with the
// suffix applied to the file name.
func DestinationPath(root, relative, suffix string) string {
	if filepath.IsAbs(relative) {
		relative = filepath.Base(relative)
	}
	dir := filepath.Dir(relative)
	return filepath.Join(root, dir, SuffixedName(filepath.Base(relative), suffix))
}

// planDestinations assigns each scanned file its output base under root, in
// scan order. A file whose outputs would land on a path an earlier file
// already claimed gets its source extension appended to the stem: converting
// "a.gif" and "a.png" yields "a-<suffix>.webp" and "a-<suffix>-png.webp".
// A counter is added if that name is taken too.
func planDestinations(root, suffix string, files []media.Descriptor, opts JobOptions) []string {
	claimed := make(map[string]bool, len(files))
	dests := make([]string, len(files))
	for i, d := range files {
		base := DestinationPath(root, d.Name, suffix)
		if anyClaimed(claimed, outputPaths(d, base, opts)) {
			ext := filepath.Ext(base)
			stem := strings.TrimSuffix(base, ext) + "-" + d.Extension
			base = stem + ext
			for n := 2; anyClaimed(claimed, outputPaths(d, base, opts)); n++ {
				base = stem + "-" + strconv.Itoa(n) + ext
			}
		}
		for _, p := range outputPaths(d, base, opts) {
			claimed[strings.ToLower(p)] = true
		}
		dests[i] = base
	}
	return dests
}

// outputPaths lists the files a batch entry may write for base. Posters end
// in "-poster.webp" and never meet a suffixed name, so they are left out.
func outputPaths(d media.Descriptor, base string, opts JobOptions) []string {
	if d.IsImage() && opts.ConvertImages {
		return []string{base, compressor.WithExtension(base, compressor.TargetFormatExtension)}
	}
	return []string{base}
}

func anyClaimed(claimed map[string]bool, paths []string) bool {
	for _, p := range paths {
		if claimed[strings.ToLower(p)] {
			return true
		}
	}
	return false
}

// DefaultOutputDir returns where output goes when the caller names no
// directory: "<folder>-compressed" beside a folder, the parent of a file.
func DefaultOutputDir(input string, isDir bool) string {
	input = filepath.Clean(input)
	if isDir {
		return input + "-compressed"
	}
	return filepath.Dir(input)
}
