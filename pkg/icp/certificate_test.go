package icp

import (
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
	"testing"

	gop12 "software.sslmate.com/src/go-pkcs12"
)

func TestLoadCertificate(t *testing.T) {
	cert, key := selfSignedCert(t, "iPhone Distribution: Foo Ltd")

	p12, err := gop12.Modern.Encode(key, cert, nil, "secret")
	if err != nil {
		t.Fatalf("failed to encode p12: %v", err)
	}
	trustStore, err := gop12.Modern.EncodeTrustStore([]*x509.Certificate{cert}, "secret")
	if err != nil {
		t.Fatalf("failed to encode trust store: %v", err)
	}

	inputs := map[string][]byte{
		"der":         cert.Raw,
		"pem":         pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}),
		"p12":         p12,
		"trust store": trustStore,
	}
	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			got, err := LoadCertificate(data, "secret")
			if err != nil {
				t.Fatalf("LoadCertificate failed: %v", err)
			}
			if !got.Equal(cert) {
				t.Error("loaded a different certificate")
			}
		})
	}
}

func TestLoadCertificate_Errors(t *testing.T) {
	cert, key := selfSignedCert(t, "Foo")
	p12, err := gop12.Modern.Encode(key, cert, nil, "secret")
	if err != nil {
		t.Fatalf("failed to encode p12: %v", err)
	}

	if _, err := LoadCertificate(p12, "wrong"); err == nil {
		t.Error("wrong password should fail")
	}
	if _, err := LoadCertificate([]byte("garbage"), ""); err == nil {
		t.Error("garbage should fail")
	}
	keyOnly := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1, 2, 3}})
	if _, err := LoadCertificate(keyOnly, ""); err == nil {
		t.Error("PEM without a certificate should fail")
	}
}

func TestCertificateReport(t *testing.T) {
	cert, key := selfSignedCert(t, "Foo")

	report := CertificateReport(cert)
	lines := strings.Split(strings.TrimSpace(report), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", report)
	}

	sum := sha1.Sum(cert.Raw)
	if !strings.HasPrefix(lines[0], "SHA1 Fingerprint=") {
		t.Errorf("first line = %q", lines[0])
	}

	info := ParseFingerprintOutput(report)
	if want := strings.ToUpper(hex.EncodeToString(sum[:])); info.SHA1 != want {
		t.Errorf("SHA1 = %q, want %q", info.SHA1, want)
	}
	if want := fmt.Sprintf("%X", key.N); info.Modulus != want {
		t.Errorf("Modulus = %q, want %q", info.Modulus, want)
	}
}
