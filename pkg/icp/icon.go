package icp

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apex/log"
)

var errIconHintMissing = errors.New("Info.plist names no primary icon")

// Icon is a resolved app icon. Path is the normalized PNG on disk and Base64
// its encoded contents; both are empty when no icon could be resolved.
type Icon struct {
	Path   string
	Base64 string
}

// FindIconFile returns the PNG directly under bundlePath whose name contains
// hint. An exact "<hint>.png" is preferred; otherwise the first match by name
// wins, so the choice does not depend on directory order.
func FindIconFile(bundlePath, hint string) (string, error) {
	if hint == "" {
		return "", newError(KindPathResolution, "locate icon", bundlePath, errIconHintMissing)
	}

	entries, err := os.ReadDir(bundlePath)
	if err != nil {
		return "", newError(KindIO, "list", bundlePath, err)
	}

	var candidates []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() {
			continue
		}
		if filepath.Ext(name) != ".png" || !strings.Contains(name, hint) {
			continue
		}
		if name == hint+".png" {
			return filepath.Join(bundlePath, name), nil
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return "", newError(KindPathResolution, "locate icon", filepath.Join(bundlePath, hint+"*.png"), nil)
	}

	sort.Strings(candidates)
	return filepath.Join(bundlePath, candidates[0]), nil
}

// ResolveIcon locates the icon named by hint, normalizes it with tc and
// returns it base64 encoded. A missing or unreadable icon is not an error: it
// is logged to the logger carried by ctx and an empty Icon is returned.
func ResolveIcon(ctx context.Context, tc SigningToolchain, bundlePath, hint string) *Icon {
	logger := log.FromContext(ctx).WithFields(log.Fields{"bundle": filepath.Base(bundlePath), "hint": hint})

	iconPath, err := FindIconFile(bundlePath, hint)
	if err != nil {
		logger.WithError(err).Warn("icon not found")
		return &Icon{}
	}

	normalized, err := tc.NormalizeIcon(ctx, iconPath)
	if err != nil {
		logger.WithError(err).Warn("failed to normalize icon")
		return &Icon{}
	}

	data, err := os.ReadFile(normalized)
	if err != nil {
		logger.WithError(err).Warn("failed to read normalized icon")
		return &Icon{}
	}

	logger.WithField("icon", filepath.Base(iconPath)).Debug("resolved icon")
	return &Icon{
		Path:   normalized,
		Base64: base64.StdEncoding.EncodeToString(data),
	}
}
