package icp

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/andrianbdn/iospng"
	"github.com/apex/log"
	"github.com/blacktop/go-macho"
	"go.mozilla.org/pkcs7"
)

// NativeToolchain implements SigningToolchain in Go. It reads the CMS blob
// embedded in the main executable instead of calling codesign, renders the
// openssl report itself and undoes CgBI PNG encoding with iospng, so it
// works on any platform.
type NativeToolchain struct{}

// NewNativeToolchain returns a NativeToolchain
func NewNativeToolchain() *NativeToolchain {
	return &NativeToolchain{}
}

// ExtractCertificate writes the leaf certificate of the main executable's
// code signature beside the bundle, where codesign would have put it.
func (n *NativeToolchain) ExtractCertificate(ctx context.Context, bundlePath string) (string, error) {
	certPath, err := certificatePath(bundlePath)
	if err != nil {
		return "", err
	}

	meta, err := ReadBundleMetadata(bundlePath)
	if err != nil {
		return "", err
	}
	if meta.Executable == "" {
		return "", newError(KindToolFailed, "extract certificates from", bundlePath,
			fmt.Errorf("%s not found in Info.plist", PlistKeyBundleExecutable))
	}
	execPath := filepath.Join(bundlePath, meta.Executable)

	cms, err := readCMSSignature(execPath)
	if err != nil {
		return "", newError(KindToolFailed, "extract certificates from", execPath, err)
	}

	cert, err := signerCertificate(cms)
	if err != nil {
		return "", newError(KindToolFailed, "extract certificates from", execPath, err)
	}

	if err := os.WriteFile(certPath, cert.Raw, 0644); err != nil {
		return "", newError(KindIO, "write", certPath, err)
	}

	log.FromContext(ctx).WithFields(log.Fields{
		"executable": meta.Executable,
		"subject":    cert.Subject.CommonName,
	}).Debug("extracted signing certificate")
	return certPath, nil
}

// readCMSSignature returns the CMS blob from the code signature of a thin
// Mach-O or the first slice of a universal one
func readCMSSignature(execPath string) ([]byte, error) {
	var m *macho.File

	fat, err := macho.OpenFat(execPath)
	if err != nil {
		if !errors.Is(err, macho.ErrNotFat) {
			return nil, fmt.Errorf("failed to open Mach-O: %w", err)
		}
		m, err = macho.Open(execPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open Mach-O: %w", err)
		}
		defer m.Close()
	} else {
		defer fat.Close()
		if len(fat.Arches) == 0 {
			return nil, fmt.Errorf("universal binary has no slices")
		}
		m = fat.Arches[0].File
	}

	cs := m.CodeSignature()
	if cs == nil {
		return nil, fmt.Errorf("no LC_CODE_SIGNATURE found")
	}
	if len(cs.CMSSignature) == 0 {
		return nil, fmt.Errorf("code signature has no CMS blob (ad-hoc signed?)")
	}
	return cs.CMSSignature, nil
}

// signerCertificate picks the certificate matching the CMS signer, falling
// back to the first certificate in the blob
func signerCertificate(cms []byte) (*x509.Certificate, error) {
	p7, err := pkcs7.Parse(cms)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS#7 signature: %w", err)
	}
	if len(p7.Certificates) == 0 {
		return nil, fmt.Errorf("PKCS#7 signature carries no certificates")
	}

	if len(p7.Signers) > 0 {
		serial := p7.Signers[0].IssuerAndSerialNumber.SerialNumber
		for _, cert := range p7.Certificates {
			if cert.SerialNumber.Cmp(serial) == 0 {
				return cert, nil
			}
		}
	}
	return p7.Certificates[0], nil
}

// InspectCertificate renders the openssl report for the certificate and
// parses it the same way as the Xcode toolchain's output.
func (n *NativeToolchain) InspectCertificate(_ context.Context, certPath string) (*SigningInfo, error) {
	data, err := os.ReadFile(certPath)
	if err != nil {
		return nil, newError(KindIO, "read", certPath, err)
	}

	cert, err := LoadCertificate(data, "")
	if err != nil {
		return nil, newError(KindToolFailed, "inspect certificate", certPath, err)
	}
	return ParseFingerprintOutput(CertificateReport(cert)), nil
}

// NormalizeIcon undoes Xcode's CgBI optimization. Icons that are already
// plain PNGs are copied as they are.
func (n *NativeToolchain) NormalizeIcon(_ context.Context, iconPath string) (string, error) {
	if iconPath == "" {
		return "", newError(KindPathResolution, "locate icon", "", nil)
	}

	data, err := os.ReadFile(iconPath)
	if err != nil {
		return "", newError(KindIO, "read", iconPath, err)
	}

	var out bytes.Buffer
	if err := iospng.PngRevertOptimization(bytes.NewReader(data), &out); err != nil {
		if _, cfgErr := png.DecodeConfig(bytes.NewReader(data)); cfgErr != nil {
			return "", newError(KindToolFailed, "revert PNG optimizations on", iconPath, err)
		}
		out.Reset()
		out.Write(data)
	}

	outPath := NormalizedIconPath(iconPath)
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return "", newError(KindIO, "create directory", filepath.Dir(outPath), err)
	}
	if err := os.WriteFile(outPath, out.Bytes(), 0644); err != nil {
		return "", newError(KindIO, "write", outPath, err)
	}
	return outPath, nil
}
