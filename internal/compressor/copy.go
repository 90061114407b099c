package compressor

import (
	"io"
	"os"
)

// CopyFile copies src to dst byte for byte, keeping src's permission bits, and
// returns the number of bytes written.
func CopyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = out.Close()
	}()

	n, err := io.Copy(out, in)
	if err != nil {
		return n, err
	}
	if err := out.Sync(); err != nil {
		return n, err
	}

	if info, err := in.Stat(); err == nil {
		_ = os.Chmod(dst, info.Mode().Perm())
	}
	return n, nil
}
