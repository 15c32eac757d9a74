package icp

import (
	"io"
	"os"
	"path/filepath"
)

// SaveArchive copies a packaged report from the cache to dst, creating or
// truncating dst
func SaveArchive(src, dst string) error {
	if src == "" || dst == "" {
		return newError(KindPathResolution, "resolve save paths", src+" -> "+dst, nil)
	}

	in, err := os.Open(src)
	if err != nil {
		return newError(KindIO, "open", src, err)
	}
	defer in.Close()

	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return newError(KindIO, "create directory", dir, err)
		}
	}

	out, err := os.Create(dst)
	if err != nil {
		return newError(KindIO, "create", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return newError(KindIO, "copy to", dst, err)
	}
	if err := out.Close(); err != nil {
		return newError(KindIO, "close", dst, err)
	}
	return nil
}
