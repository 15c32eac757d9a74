package icp

import (
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.mozilla.org/pkcs7"
	"howett.net/plist"
)

// EmbeddedProfileName is the provisioning profile Xcode places in the bundle
const EmbeddedProfileName = "embedded.mobileprovision"

// Distribution methods derived from a provisioning profile
const (
	DistributionDevelopment = "development"
	DistributionAdHoc       = "ad-hoc"
	DistributionEnterprise  = "enterprise"
	DistributionAppStore    = "app-store"
)

// ProvisioningProfile is the plist payload of a .mobileprovision file
type ProvisioningProfile struct {
	Name                  string                 `plist:"Name"`
	TeamName              string                 `plist:"TeamName"`
	TeamIdentifier        []string               `plist:"TeamIdentifier"`
	AppIDName             string                 `plist:"AppIDName"`
	Entitlements          map[string]interface{} `plist:"Entitlements"`
	DeveloperCertificates [][]byte               `plist:"DeveloperCertificates"`
	ProvisionedDevices    []string               `plist:"ProvisionedDevices"`
	ProvisionsAllDevices  bool                   `plist:"ProvisionsAllDevices"`
	CreationDate          time.Time              `plist:"CreationDate"`
	ExpirationDate        time.Time              `plist:"ExpirationDate"`
	UUID                  string                 `plist:"UUID"`
}

// ReadEmbeddedProfile parses the bundle's embedded.mobileprovision. It returns
// nil and no error when the bundle carries no profile, as App Store builds do.
func ReadEmbeddedProfile(bundlePath string) (*ProvisioningProfile, error) {
	if bundlePath == "" {
		return nil, newError(KindPathResolution, "locate bundle directory", "", nil)
	}

	profilePath := filepath.Join(bundlePath, EmbeddedProfileName)
	data, err := os.ReadFile(profilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, newError(KindIO, "read", profilePath, err)
	}

	profile, err := ParseProvisioningProfile(data)
	if err != nil {
		return nil, newError(KindParse, "parse", profilePath, err)
	}
	return profile, nil
}

// ParseProvisioningProfile decodes the CMS container and its plist payload
func ParseProvisioningProfile(data []byte) (*ProvisioningProfile, error) {
	p7, err := pkcs7.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS#7 container: %w", err)
	}

	var profile ProvisioningProfile
	if _, err := plist.Unmarshal(p7.Content, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse provisioning profile plist: %w", err)
	}
	return &profile, nil
}

// TeamID returns the first team identifier, if any
func (p *ProvisioningProfile) TeamID() string {
	if len(p.TeamIdentifier) > 0 {
		return p.TeamIdentifier[0]
	}
	return ""
}

// IsExpired reports whether the profile expired before now
func (p *ProvisioningProfile) IsExpired(now time.Time) bool {
	return now.After(p.ExpirationDate)
}

// Distribution classifies the profile by its device list and get-task-allow
func (p *ProvisioningProfile) Distribution() string {
	switch {
	case len(p.ProvisionedDevices) > 0:
		if allow, _ := p.Entitlements["get-task-allow"].(bool); allow {
			return DistributionDevelopment
		}
		return DistributionAdHoc
	case p.ProvisionsAllDevices:
		return DistributionEnterprise
	default:
		return DistributionAppStore
	}
}

// Certificates parses the developer certificates listed in the profile
func (p *ProvisioningProfile) Certificates() ([]*x509.Certificate, error) {
	certs := make([]*x509.Certificate, 0, len(p.DeveloperCertificates))
	for i, der := range p.DeveloperCertificates {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate %d: %w", i, err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// ContainsCertificate reports whether cert is one of the profile's developer
// certificates
func (p *ProvisioningProfile) ContainsCertificate(cert *x509.Certificate) bool {
	certs, err := p.Certificates()
	if err != nil {
		return false
	}
	for _, c := range certs {
		if c.Equal(cert) {
			return true
		}
	}
	return false
}
