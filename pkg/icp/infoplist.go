package icp

import (
	"os"
	"path/filepath"

	"howett.net/plist"
)

const (
	PlistKeyBundleName       = "CFBundleName"
	PlistKeyBundleIdentifier = "CFBundleIdentifier"
	PlistKeyBundleExecutable = "CFBundleExecutable"
	PlistKeyBundleIcons      = "CFBundleIcons"
	PlistKeyPrimaryIcon      = "CFBundlePrimaryIcon"
	PlistKeyIconFiles        = "CFBundleIconFiles"
)

// BundleMetadata holds the Info.plist values the report needs. Missing keys
// are left empty.
type BundleMetadata struct {
	Name       string
	BundleID   string
	IconHint   string
	Executable string
}

// ReadBundleMetadata parses <bundlePath>/Info.plist. XML and binary property
// lists are both accepted.
func ReadBundleMetadata(bundlePath string) (*BundleMetadata, error) {
	if bundlePath == "" {
		return nil, newError(KindPathResolution, "locate bundle directory", "", nil)
	}

	infoPlistPath := filepath.Join(bundlePath, "Info.plist")
	data, err := os.ReadFile(infoPlistPath)
	if err != nil {
		return nil, newError(KindIO, "read", infoPlistPath, err)
	}

	info, err := parseInfoPlist(data)
	if err != nil {
		return nil, newError(KindParse, "parse", infoPlistPath, err)
	}

	return &BundleMetadata{
		Name:       stringValue(info, PlistKeyBundleName),
		BundleID:   stringValue(info, PlistKeyBundleIdentifier),
		IconHint:   primaryIconHint(info),
		Executable: stringValue(info, PlistKeyBundleExecutable),
	}, nil
}

func parseInfoPlist(data []byte) (map[string]interface{}, error) {
	var info map[string]interface{}
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return info, nil
}

func stringValue(dict map[string]interface{}, key string) string {
	s, _ := dict[key].(string)
	return s
}

// primaryIconHint follows CFBundleIcons -> CFBundlePrimaryIcon ->
// CFBundleIconFiles[0]
func primaryIconHint(info map[string]interface{}) string {
	icons, ok := info[PlistKeyBundleIcons].(map[string]interface{})
	if !ok {
		return ""
	}
	primary, ok := icons[PlistKeyPrimaryIcon].(map[string]interface{})
	if !ok {
		return ""
	}
	files, ok := primary[PlistKeyIconFiles].([]interface{})
	if !ok || len(files) == 0 {
		return ""
	}
	hint, _ := files[0].(string)
	return hint
}
