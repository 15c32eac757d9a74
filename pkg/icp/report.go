package icp

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var errUnsafeReportName = errors.New("app name is not a plain file name")

const (
	// ReportSuffix is appended to the app name to name the filing package
	// ("filing material - iOS")
	ReportSuffix = "备案材料iOS"

	// ReportLabel names the text file inside the package ("features")
	ReportLabel = "特征"

	reportIconName = "icon.png"
	reportFileMode = 0755

	reportTemplate = "APP名称：%s\n\nBundle Id：%s\n\n证书MD5指纹(签名MD5值、SHA-1)：%s\n\nModulus(公钥)：%s"
)

// ReportName returns the package name for an app
func ReportName(appName string) string {
	return appName + ReportSuffix
}

// FormatReport renders the filing text
func FormatReport(name, bundleID, sha1, modulus string) string {
	return fmt.Sprintf(reportTemplate, name, bundleID, sha1, modulus)
}

// PackageReport writes a ZIP at rootDir/reportName holding a reportName/
// directory entry, the report text and the icon. Entries are stored
// uncompressed.
//
// reportName comes from the app's Info.plist, so it must be a single file
// name; anything that could resolve outside rootDir is rejected.
//
// An empty iconPath means no icon was resolved and icon.png is left out; an
// iconPath that cannot be opened is an error.
func PackageReport(rootDir, reportName, iconPath, text string) error {
	if rootDir == "" {
		return newError(KindPathResolution, "locate report directory", "", nil)
	}
	if !validReportName(reportName) {
		return newError(KindPathResolution, "name report", reportName, errUnsafeReportName)
	}
	zipPath := filepath.Join(rootDir, reportName)

	var icon *os.File
	if iconPath != "" {
		var err error
		icon, err = os.Open(iconPath)
		if err != nil {
			return newError(KindIO, "open icon", iconPath, err)
		}
		defer icon.Close()
	}

	outFile, err := os.Create(zipPath)
	if err != nil {
		return newError(KindIO, "create", zipPath, err)
	}
	defer outFile.Close()

	w := zip.NewWriter(outFile)

	if _, err := w.CreateHeader(&zip.FileHeader{Name: reportName + "/", Method: zip.Store}); err != nil {
		return newError(KindIO, "add directory to", zipPath, err)
	}

	tw, err := w.CreateHeader(reportHeader(reportName + "/" + ReportLabel + ".txt"))
	if err != nil {
		return newError(KindIO, "add report to", zipPath, err)
	}
	if _, err := io.WriteString(tw, text); err != nil {
		return newError(KindIO, "write report to", zipPath, err)
	}

	if icon != nil {
		iw, err := w.CreateHeader(reportHeader(reportName + "/" + reportIconName))
		if err != nil {
			return newError(KindIO, "add icon to", zipPath, err)
		}
		if _, err := io.Copy(iw, icon); err != nil {
			return newError(KindIO, "write icon to", zipPath, err)
		}
	}

	if err := w.Close(); err != nil {
		return newError(KindIO, "finish", zipPath, err)
	}
	if err := outFile.Close(); err != nil {
		return newError(KindIO, "close", zipPath, err)
	}
	return nil
}

func validReportName(name string) bool {
	if name == "" || !filepath.IsLocal(name) || strings.ContainsAny(name, `/\`) {
		return false
	}
	return name != "." && name != ".."
}

func reportHeader(name string) *zip.FileHeader {
	header := &zip.FileHeader{
		Name:   name,
		Method: zip.Store,
	}
	header.SetMode(reportFileMode)
	return header
}
