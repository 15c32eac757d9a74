package icp

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	// CertificateFileName is the DER certificate written next to the bundle
	CertificateFileName = "codesign0"

	// normalizedIconDir is where pngcrush -d leaves its output, relative to the
	// icon's directory
	normalizedIconDir = "-d"
)

// SigningInfo holds the certificate values that go into the report
type SigningInfo struct {
	SHA1    string
	Modulus string
}

// SigningToolchain extracts and inspects the signing certificate of a bundle
// and reverts Xcode's PNG optimizations on its icons.
type SigningToolchain interface {
	// ExtractCertificate writes the bundle's leaf signing certificate (DER) to
	// a file beside the bundle and returns its path.
	ExtractCertificate(ctx context.Context, bundlePath string) (string, error)
	// InspectCertificate returns the SHA-1 fingerprint and RSA modulus of a
	// DER certificate.
	InspectCertificate(ctx context.Context, certPath string) (*SigningInfo, error)
	// NormalizeIcon converts an iPhone-optimized PNG to a standard PNG and
	// returns the path of the converted file.
	NormalizeIcon(ctx context.Context, iconPath string) (string, error)
}

// Toolchain kinds accepted by NewToolchain
const (
	ToolchainAuto   = "auto"
	ToolchainXcode  = "xcode"
	ToolchainNative = "native"
)

// NewToolchain returns the toolchain for kind. "auto" selects the Xcode tools
// when codesign, openssl and xcrun are all on PATH, and the native one
// otherwise.
func NewToolchain(kind string) (SigningToolchain, error) {
	switch strings.ToLower(kind) {
	case ToolchainXcode:
		return NewXcodeToolchain(ExecRunner{}), nil
	case ToolchainNative:
		return NewNativeToolchain(), nil
	case ToolchainAuto, "":
		if hasXcodeTools() {
			return NewXcodeToolchain(ExecRunner{}), nil
		}
		return NewNativeToolchain(), nil
	default:
		return nil, fmt.Errorf("unknown toolchain %q (want %s, %s or %s)", kind, ToolchainAuto, ToolchainXcode, ToolchainNative)
	}
}

func hasXcodeTools() bool {
	for _, tool := range []string{codesignTool, opensslTool, xcrunTool} {
		if _, err := exec.LookPath(tool); err != nil {
			return false
		}
	}
	return true
}

// certificatePath is where extraction leaves the certificate for bundlePath
func certificatePath(bundlePath string) (string, error) {
	parent := filepath.Dir(bundlePath)
	if bundlePath == "" || parent == bundlePath {
		return "", newError(KindPathResolution, "resolve parent directory of", bundlePath, nil)
	}
	return filepath.Join(parent, CertificateFileName), nil
}

// NormalizedIconPath is the file a normalizer produces for iconPath
func NormalizedIconPath(iconPath string) string {
	return filepath.Join(filepath.Dir(iconPath), normalizedIconDir, filepath.Base(iconPath))
}
