package icp

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"image"
	"image/color"
	"image/png"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"howett.net/plist"
)

// zipEntry describes one file or directory to put into a test archive
type zipEntry struct {
	Name string
	Body []byte
	Mode os.FileMode
}

// writeZip builds an archive at path from entries, marking each as created on
// a Unix host so that permissions are recorded
func writeZip(t *testing.T, path string, entries []zipEntry) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create zip: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, e := range entries {
		header := &zip.FileHeader{Name: e.Name, Method: zip.Deflate}
		mode := e.Mode
		isDir := e.Name[len(e.Name)-1] == '/'
		if mode == 0 {
			mode = 0644
			if isDir {
				mode = 0755
			}
		}
		if isDir {
			mode |= os.ModeDir
		}
		header.SetMode(mode)

		fw, err := w.CreateHeader(header)
		if err != nil {
			t.Fatalf("failed to add %s: %v", e.Name, err)
		}
		if _, err := fw.Write(e.Body); err != nil {
			t.Fatalf("failed to write %s: %v", e.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to finish zip: %v", err)
	}
}

func infoPlist(t *testing.T, format int, info map[string]interface{}) []byte {
	t.Helper()
	data, err := plist.Marshal(info, format)
	if err != nil {
		t.Fatalf("failed to marshal plist: %v", err)
	}
	return data
}

func testInfo(name, bundleID, icon string) map[string]interface{} {
	info := map[string]interface{}{
		PlistKeyBundleName:       name,
		PlistKeyBundleIdentifier: bundleID,
		PlistKeyBundleExecutable: name,
	}
	if icon != "" {
		info[PlistKeyBundleIcons] = map[string]interface{}{
			PlistKeyPrimaryIcon: map[string]interface{}{
				PlistKeyIconFiles: []interface{}{icon},
			},
		}
	}
	return info
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 0x20, G: 0x80, B: 0xC0, A: 0xFF})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// writeTestIPA creates Foo.ipa holding Payload/Foo.app with an Info.plist and
// an AppIcon60x60@2x.png, plus an entry outside Payload
func writeTestIPA(t *testing.T, dir string) string {
	t.Helper()
	ipaPath := filepath.Join(dir, "Foo.ipa")
	writeZip(t, ipaPath, []zipEntry{
		{Name: "Payload/"},
		{Name: "Payload/Foo.app/"},
		{Name: "Payload/Foo.app/Info.plist", Body: infoPlist(t, plist.BinaryFormat, testInfo("Foo", "com.foo", "AppIcon60x60"))},
		{Name: "Payload/Foo.app/AppIcon60x60@2x.png", Body: testPNG(t)},
		{Name: "Payload/Foo.app/Foo", Body: []byte("binary"), Mode: 0755},
		{Name: "iTunesMetadata.plist", Body: []byte("<plist/>")},
	})
	return ipaPath
}

// selfSignedCert returns a freshly generated RSA certificate and its key
func selfSignedCert(t *testing.T, commonName string) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: commonName, OrganizationalUnit: []string{"ABCDE12345"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}
	return cert, key
}

// fakeRunner records commands and answers them from a callback
type fakeRunner struct {
	calls  []Command
	handle func(cmd Command) (*CommandResult, error)
}

func (f *fakeRunner) Run(_ context.Context, cmd Command) (*CommandResult, error) {
	f.calls = append(f.calls, cmd)
	if f.handle == nil {
		return &CommandResult{}, nil
	}
	return f.handle(cmd)
}

func (f *fakeRunner) called(name string) bool {
	for _, c := range f.calls {
		if c.Name == name {
			return true
		}
	}
	return false
}

// fakeToolchain writes canned results without running any tools
type fakeToolchain struct {
	info       *SigningInfo
	extractErr error
	inspectErr error
	iconErr    error
}

func (f *fakeToolchain) ExtractCertificate(_ context.Context, bundlePath string) (string, error) {
	if f.extractErr != nil {
		return "", f.extractErr
	}
	certPath, err := certificatePath(bundlePath)
	if err != nil {
		return "", err
	}
	return certPath, os.WriteFile(certPath, []byte("der"), 0644)
}

func (f *fakeToolchain) InspectCertificate(_ context.Context, _ string) (*SigningInfo, error) {
	if f.inspectErr != nil {
		return nil, f.inspectErr
	}
	return f.info, nil
}

func (f *fakeToolchain) NormalizeIcon(_ context.Context, iconPath string) (string, error) {
	if f.iconErr != nil {
		return "", f.iconErr
	}
	data, err := os.ReadFile(iconPath)
	if err != nil {
		return "", err
	}
	out := NormalizedIconPath(iconPath)
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return "", err
	}
	return out, os.WriteFile(out, data, 0644)
}
