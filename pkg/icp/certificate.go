package icp

import (
	"bytes"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	gop12 "software.sslmate.com/src/go-pkcs12"
)

// LoadCertificate parses a signing certificate given as DER, PEM or PKCS#12.
// For PKCS#12 the leaf certificate is returned and password unlocks the
// container.
func LoadCertificate(data []byte, password string) (*x509.Certificate, error) {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("-----BEGIN")) {
		return loadPEMCertificate(data)
	}

	if cert, err := x509.ParseCertificate(data); err == nil {
		return cert, nil
	}

	_, cert, _, err := gop12.DecodeChain(data, password)
	if err == nil {
		return cert, nil
	}
	// Containers exported without a private key only hold trusted certs
	if certs, tsErr := gop12.DecodeTrustStore(data, password); tsErr == nil && len(certs) > 0 {
		return certs[0], nil
	}
	return nil, fmt.Errorf("data is neither a DER certificate nor a PKCS#12 container: %w", err)
}

func loadPEMCertificate(data []byte) (*x509.Certificate, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("no CERTIFICATE block found in PEM data")
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		return cert, nil
	}
}

// CertificateReport renders the two lines openssl prints for
// `x509 -fingerprint -sha1 -modulus -noout`. Keys other than RSA have no
// modulus and get an empty value.
func CertificateReport(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	hexBytes := make([]string, len(sum))
	for i, b := range sum {
		hexBytes[i] = fmt.Sprintf("%02X", b)
	}

	var modulus string
	if pub, ok := cert.PublicKey.(*rsa.PublicKey); ok {
		modulus = fmt.Sprintf("%X", pub.N)
	}

	return fmt.Sprintf("SHA1 Fingerprint=%s\nModulus=%s\n", strings.Join(hexBytes, ":"), modulus)
}
