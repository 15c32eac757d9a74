package icp

import (
	"context"
	"path/filepath"

	"github.com/apex/log"
)

// Result is the record handed back to the caller
type Result struct {
	Name         string `json:"name"`
	BundleID     string `json:"bundle_id"`
	Icon         string `json:"icon"`
	SHA1         string `json:"sha1"`
	Modulus      string `json:"modulus"`
	CacheZipPath string `json:"cache_zip_path"`
}

// Parser runs the extraction pipeline
type Parser struct {
	Toolchain SigningToolchain
	Logger    log.Interface
}

// NewParser returns a Parser using tc and the default logger
func NewParser(tc SigningToolchain) *Parser {
	return &Parser{Toolchain: tc, Logger: log.Log}
}

// ParseIPA runs the pipeline with the toolchain picked by NewToolchain("auto")
func ParseIPA(ipaPath, cachePath string) (*Result, error) {
	tc, err := NewToolchain(ToolchainAuto)
	if err != nil {
		return nil, err
	}
	return NewParser(tc).Parse(context.Background(), ipaPath, cachePath)
}

// Parse extracts ipaPath under cachePath, reads the bundle metadata and
// signing certificate, and writes the filing package next to the bundle.
// The first failing step aborts the call; extracted files are left in place
// for the next run to purge.
func (p *Parser) Parse(ctx context.Context, ipaPath, cachePath string) (*Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = log.Log
	}
	logger = logger.WithField("ipa", filepath.Base(ipaPath))
	ctx = log.NewContext(ctx, logger)

	appPath, err := extractPayload(logger, ipaPath, cachePath)
	if err != nil {
		return nil, err
	}

	meta, err := ReadBundleMetadata(appPath)
	if err != nil {
		return nil, err
	}
	logger.WithFields(log.Fields{"name": meta.Name, "bundle_id": meta.BundleID}).Debug("read Info.plist")

	icon := ResolveIcon(ctx, p.Toolchain, appPath, meta.IconHint)

	certPath, err := p.Toolchain.ExtractCertificate(ctx, appPath)
	if err != nil {
		return nil, err
	}
	signing, err := p.Toolchain.InspectCertificate(ctx, certPath)
	if err != nil {
		return nil, err
	}
	logger.WithField("sha1", signing.SHA1).Debug("inspected signing certificate")

	reportName := ReportName(meta.Name)
	text := FormatReport(meta.Name, meta.BundleID, signing.SHA1, signing.Modulus)
	if err := PackageReport(appPath, reportName, icon.Path, text); err != nil {
		return nil, err
	}

	result := &Result{
		Name:         meta.Name,
		BundleID:     meta.BundleID,
		Icon:         icon.Base64,
		SHA1:         signing.SHA1,
		Modulus:      signing.Modulus,
		CacheZipPath: filepath.Join(appPath, reportName),
	}
	logger.WithField("package", result.CacheZipPath).Info("wrote filing package")
	return result, nil
}
