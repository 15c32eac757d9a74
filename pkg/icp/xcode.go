package icp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
)

const (
	codesignTool = "codesign"
	opensslTool  = "openssl"
	xcrunTool    = "xcrun"

	// codesign prints this to stderr once it has recognized the executable
	codesignSuccessMarker = "Executable="
)

// XcodeToolchain drives Apple's codesign, openssl and xcrun pngcrush. It
// needs macOS with the Xcode command line tools installed.
type XcodeToolchain struct {
	runner CommandRunner
}

// NewXcodeToolchain returns a toolchain that runs its tools through runner
func NewXcodeToolchain(runner CommandRunner) *XcodeToolchain {
	return &XcodeToolchain{runner: runner}
}

// ExtractCertificate runs `codesign -d --extract-certificates` from the
// bundle's parent directory. codesign exits 0 for several failure modes, so
// success is judged by the "Executable=" line on stderr.
func (x *XcodeToolchain) ExtractCertificate(ctx context.Context, bundlePath string) (string, error) {
	certPath, err := certificatePath(bundlePath)
	if err != nil {
		return "", err
	}

	res, err := x.runner.Run(ctx, Command{
		Name: codesignTool,
		Args: []string{"-d", "--extract-certificates", bundlePath},
		Dir:  filepath.Dir(bundlePath),
	})
	if err != nil {
		return "", err
	}

	if !strings.Contains(res.Stderr, codesignSuccessMarker) {
		log.FromContext(ctx).WithFields(log.Fields{
			"bundle": bundlePath,
			"stderr": strings.TrimSpace(res.Stderr),
		}).Debug("codesign did not recognize the executable")
		return "", newError(KindToolFailed, "extract certificates from", bundlePath,
			toolOutputError(codesignTool, res))
	}
	return certPath, nil
}

// InspectCertificate runs `openssl x509` on the DER certificate. Anything on
// stderr is a failure; otherwise the first two lines are parsed.
func (x *XcodeToolchain) InspectCertificate(ctx context.Context, certPath string) (*SigningInfo, error) {
	res, err := x.runner.Run(ctx, Command{
		Name: opensslTool,
		Args: []string{
			"x509",
			"-inform", "DER",
			"-fingerprint", "-sha1",
			"-modulus",
			"-text",
			"-noout",
			"-in", certPath,
		},
	})
	if err != nil {
		return nil, err
	}
	if res.Stderr != "" {
		return nil, newError(KindToolFailed, "inspect certificate", certPath, toolOutputError(opensslTool, res))
	}
	return ParseFingerprintOutput(res.Stdout), nil
}

// NormalizeIcon runs pngcrush with -revert-iphone-optimizations in the icon's
// directory. The exit status is not reliable, so the output file's presence
// decides success.
func (x *XcodeToolchain) NormalizeIcon(ctx context.Context, iconPath string) (string, error) {
	if iconPath == "" {
		return "", newError(KindPathResolution, "locate icon", "", nil)
	}

	res, err := x.runner.Run(ctx, Command{
		Name: xcrunTool,
		Args: []string{
			"-sdk", "iphoneos",
			"pngcrush",
			"\\",
			"-q",
			"-revert-iphone-optimizations",
			"-d", iconPath,
		},
		Dir: filepath.Dir(iconPath),
	})
	if err != nil {
		return "", err
	}

	out := NormalizedIconPath(iconPath)
	if _, err := os.Stat(out); err != nil {
		return "", newError(KindToolFailed, "revert PNG optimizations on", iconPath, toolOutputError("pngcrush", res))
	}
	return out, nil
}

type toolError struct {
	tool   string
	code   int
	stderr string
}

func (e *toolError) Error() string {
	msg := strings.TrimSpace(e.stderr)
	if msg == "" {
		msg = "no diagnostic output"
	}
	if e.code != 0 {
		return fmt.Sprintf("%s exited with status %d: %s", e.tool, e.code, msg)
	}
	return e.tool + ": " + msg
}

func toolOutputError(tool string, res *CommandResult) error {
	return &toolError{tool: tool, code: res.ExitCode, stderr: res.Stderr}
}
