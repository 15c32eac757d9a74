package icp

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
)

const (
	// PayloadDir is the top-level IPA directory holding the signed bundle.
	// Only entries whose name contains it are extracted.
	PayloadDir = "Payload"

	appBundleExt = ".app"

	// zip "version made by" hosts
	creatorFAT  = 0
	creatorUnix = 3

	msdosReadOnly = 0x01
)

// ExtractPayload extracts the Payload subtree of an IPA into
// targetDir/<archive file name> and returns the path to the .app bundle found
// inside it. An archive without a bundle yields an empty path and no error.
//
// Any previous extraction under the same name is removed first, so running it
// twice on the same archive leaves the same tree behind.
func ExtractPayload(archivePath, targetDir string) (string, error) {
	return extractPayload(log.Log, archivePath, targetDir)
}

func extractPayload(logger log.Interface, archivePath, targetDir string) (string, error) {
	name := filepath.Base(archivePath)
	if archivePath == "" || name == "." || name == string(filepath.Separator) {
		return "", newError(KindPathResolution, "get archive file name", archivePath, nil)
	}
	destDir := filepath.Join(targetDir, name)

	r, err := zip.OpenReader(archivePath)
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && r != nil) {
		if os.IsNotExist(err) {
			return "", newError(KindIO, "open archive", archivePath, err)
		}
		return "", newError(KindArchiveFormat, "read archive", archivePath, err)
	}
	defer r.Close()

	if _, err := os.Stat(destDir); err == nil {
		if err := os.RemoveAll(destDir); err != nil {
			return "", newError(KindIO, "remove previous extraction", destDir, err)
		}
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", newError(KindIO, "create directory", destDir, err)
	}

	var written, skipped int
	var size uint64
	for _, f := range r.File {
		destPath, ok := enclosedPath(destDir, f.Name)
		if !ok {
			logger.WithField("entry", f.Name).Warn("skipping entry outside of extraction directory")
			skipped++
			continue
		}
		if !strings.Contains(f.Name, PayloadDir) {
			skipped++
			continue
		}

		n, err := extractZipFile(f, destPath)
		if err != nil {
			return "", err
		}
		written++
		size += uint64(n)
	}

	logger.WithFields(log.Fields{
		"archive": name,
		"written": written,
		"skipped": skipped,
		"size":    humanize.Bytes(size),
	}).Debug("extracted payload")

	appPath := findAppBundle(logger, destDir)
	if appPath == "" {
		logger.WithField("dir", destDir).Warn("no .app bundle found in Payload directory")
	}
	return appPath, nil
}

// enclosedPath joins name onto destDir, refusing absolute names and names
// that climb out of destDir
func enclosedPath(destDir, name string) (string, bool) {
	if name == "" || strings.ContainsRune(name, 0) {
		return "", false
	}
	rel := filepath.FromSlash(strings.TrimSuffix(name, "/"))
	if rel == "" || !filepath.IsLocal(rel) {
		return "", false
	}
	destPath := filepath.Join(destDir, rel)
	if !strings.HasPrefix(destPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", false
	}
	return destPath, true
}

func extractZipFile(f *zip.File, destPath string) (int64, error) {
	var n int64
	if strings.HasSuffix(f.Name, "/") {
		if err := os.MkdirAll(destPath, 0755); err != nil {
			return 0, newError(KindIO, "create directory", destPath, err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return 0, newError(KindIO, "create directory", filepath.Dir(destPath), err)
		}

		destFile, err := os.Create(destPath)
		if err != nil {
			return 0, newError(KindIO, "create file", destPath, err)
		}
		defer destFile.Close()

		srcFile, err := f.Open()
		if err != nil {
			return 0, newError(KindIO, "open entry", f.Name, err)
		}
		defer srcFile.Close()

		if n, err = io.Copy(destFile, srcFile); err != nil {
			return 0, newError(KindIO, "copy entry", f.Name, err)
		}
	}

	if mode, ok := entryMode(f); ok && runtime.GOOS != "windows" {
		if err := os.Chmod(destPath, mode); err != nil {
			return 0, newError(KindIO, "set permissions on", destPath, err)
		}
	}
	return n, nil
}

// entryMode returns the permission bits to apply to an extracted entry.
// Unix entries carry their own mode. DOS entries get 0664 (0775 for
// directories), with write bits cleared when the read-only attribute is set.
// Other hosts are left at the process default.
func entryMode(f *zip.File) (os.FileMode, bool) {
	switch f.CreatorVersion >> 8 {
	case creatorUnix:
		mode := os.FileMode(f.ExternalAttrs>>16) & os.ModePerm
		if mode == 0 {
			return 0, false
		}
		return mode, true
	case creatorFAT:
		mode := os.FileMode(0664)
		if strings.HasSuffix(f.Name, "/") {
			mode = 0775
		}
		if f.ExternalAttrs&msdosReadOnly != 0 {
			mode &= 0555
		}
		return mode, true
	default:
		return 0, false
	}
}

// FindAppBundle returns the .app directory inside extractedDir/Payload, or an
// empty string if there is none. When several exist the first by name wins.
func FindAppBundle(extractedDir string) string {
	return findAppBundle(log.Log, extractedDir)
}

func findAppBundle(logger log.Interface, extractedDir string) string {
	payloadDir := filepath.Join(extractedDir, PayloadDir)

	entries, err := os.ReadDir(payloadDir)
	if err != nil {
		return ""
	}

	var found []string
	for _, entry := range entries {
		if entry.IsDir() && filepath.Ext(entry.Name()) == appBundleExt {
			found = append(found, filepath.Join(payloadDir, entry.Name()))
		}
	}
	if len(found) == 0 {
		return ""
	}
	if len(found) > 1 {
		logger.WithField("bundles", fmt.Sprint(found)).Warn("multiple .app bundles in Payload, using the first")
	}

	appPath, err := filepath.Abs(found[0])
	if err != nil {
		return found[0]
	}
	return appPath
}
