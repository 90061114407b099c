package media

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Scanner discovers image and video files.
//
// Symbolic links are never followed: a link found during a tree walk is
// skipped like any other non-regular entry, and ScanOne resolves the link
// target through os.Stat.
type Scanner struct {
	classifier *Classifier
	logger     *logrus.Logger
}

// NewScanner returns a Scanner using the given classifier.
func NewScanner(classifier *Classifier, logger *logrus.Logger) *Scanner {
	return &Scanner{classifier: classifier, logger: logger}
}

// Classifier returns the classifier used by the scanner.
func (s *Scanner) Classifier() *Classifier {
	return s.classifier
}

// ScanTree walks root recursively and returns one descriptor per image or
// video file, in lexical walk order. Unsupported files are skipped silently.
// Any traversal or metadata error aborts the scan.
func (s *Scanner) ScanTree(root string) ([]Descriptor, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, NewError(KindIO, "scan tree", root, err)
	}

	var files []Descriptor
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fileType := s.classifier.ClassifyPath(path)
		if fileType == TypeOther {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			rel = path
		}

		files = append(files, Descriptor{
			Path:      path,
			Name:      rel,
			Size:      info.Size(),
			Type:      fileType,
			Extension: Extension(path),
		})
		return nil
	})
	if err != nil {
		return nil, NewError(KindIO, "scan tree", root, err)
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"root":  absRoot,
			"files": len(files),
		}).Debug("Scan completed")
	}
	return files, nil
}

// ScanOne returns the descriptor for a single file.
func (s *Scanner) ScanOne(path string) (Descriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Descriptor{}, NewError(KindNotFound, "scan file", path, err)
		}
		return Descriptor{}, NewError(KindIO, "scan file", path, err)
	}
	if !info.Mode().IsRegular() {
		return Descriptor{}, NewError(KindNotAFile, "scan file", path, nil)
	}

	fileType := s.classifier.ClassifyPath(path)
	if fileType == TypeOther {
		return Descriptor{}, NewError(KindUnsupportedType, "scan file", path, nil)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	return Descriptor{
		Path:      absPath,
		Name:      filepath.Base(path),
		Size:      info.Size(),
		Type:      fileType,
		Extension: Extension(path),
	}, nil
}
