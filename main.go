package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aluedeke/go-icpinfo/pkg/icp"
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/docopt/docopt-go"
)

const version = "1.0.0"

const usage = `go-icpinfo - iOS App Filing Material Extractor

Reads an IPA and produces the material needed for an app filing: the app name,
bundle ID, icon, signing certificate SHA-1 fingerprint and RSA modulus, packed
into a ZIP next to the extracted bundle.

Usage:
  go-icpinfo parse --ipa=<path> [--cache=<dir>] [--toolchain=<kind>] [--verbose]
  go-icpinfo cert --in=<path> [--password=<password>]
  go-icpinfo save --from=<zip> --to=<path>
  go-icpinfo -h | --help
  go-icpinfo --version

Commands:
  parse     Extract an IPA and print the filing record as JSON
  cert      Print the fingerprint and modulus of a local certificate
  save      Copy a generated filing package to another location

Options:
  --ipa=<path>          Path to the input .ipa file
  --cache=<dir>         Extraction directory (or ICP_CACHE_DIR env var)
  --toolchain=<kind>    auto, xcode or native (or ICP_TOOLCHAIN env var)
  --in=<path>           DER, PEM or P12 certificate file
  --password=<password> Password for a P12 certificate (or ICP_CERT_PASSWORD env var)
  --from=<zip>          Filing package to copy (cache_zip_path from parse)
  --to=<path>           Destination path
  --verbose             Log each pipeline step to stderr
  -h --help             Show this help message
  --version             Show version

Environment Variables:
  ICP_CACHE_DIR         Extraction directory (overridden by --cache)
  ICP_TOOLCHAIN         Signing toolchain (overridden by --toolchain)
  ICP_CERT_PASSWORD     P12 certificate password (overridden by --password)

Examples:
  # Parse an IPA using Xcode's tools when available
  go-icpinfo parse --ipa=MyApp.ipa

  # Parse on Linux without codesign/openssl/xcrun
  go-icpinfo parse --ipa=MyApp.ipa --toolchain=native --cache=/tmp/icp

  # Compare with the certificate you sign with
  go-icpinfo cert --in=dist.p12 --password=secret

  # Keep the filing package
  go-icpinfo save --from="/tmp/icp/MyApp.ipa/Payload/MyApp.app/MyApp备案材料iOS" --to=MyApp.zip
`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(1)
	}

	log.SetHandler(cli.Default)
	log.SetLevel(log.WarnLevel)

	if parse, _ := opts.Bool("parse"); parse {
		err = runParse(opts)
	} else if cert, _ := opts.Bool("cert"); cert {
		err = runCert(opts)
	} else if save, _ := opts.Bool("save"); save {
		err = runSave(opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runParse(opts docopt.Opts) error {
	ipaPath, _ := opts.String("--ipa")
	cacheDir, _ := opts.String("--cache")
	kind, _ := opts.String("--toolchain")
	verbose, _ := opts.Bool("--verbose")

	if cacheDir == "" {
		cacheDir = os.Getenv("ICP_CACHE_DIR")
	}
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "go-icpinfo")
	}
	if kind == "" {
		kind = os.Getenv("ICP_TOOLCHAIN")
	}
	if kind == "" {
		kind = icp.ToolchainAuto
	}
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	tc, err := icp.NewToolchain(kind)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"toolchain": fmt.Sprintf("%T", tc), "cache": cacheDir}).Debug("starting")

	result, err := icp.NewParser(tc).Parse(context.Background(), ipaPath, cacheDir)
	if err != nil {
		return err
	}

	// The package lives inside the bundle, so its directory is the bundle
	if profile, err := icp.ReadEmbeddedProfile(filepath.Dir(result.CacheZipPath)); err != nil {
		log.WithError(err).Warn("failed to read embedded provisioning profile")
	} else if profile != nil {
		printProfileSummary(os.Stderr, profile)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}

func runCert(opts docopt.Opts) error {
	inPath, _ := opts.String("--in")
	password, _ := opts.String("--password")

	if password == "" {
		password = os.Getenv("ICP_CERT_PASSWORD")
	}

	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}

	cert, err := icp.LoadCertificate(data, password)
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}
	info := icp.ParseFingerprintOutput(icp.CertificateReport(cert))

	fmt.Println("Certificate Information")
	fmt.Println("=======================")
	fmt.Printf("File:        %s\n", inPath)
	fmt.Printf("Subject:     %s\n", cert.Subject.CommonName)
	fmt.Printf("Expires:     %s\n", cert.NotAfter.Format("2006-01-02"))
	fmt.Printf("SHA-1:       %s\n", info.SHA1)
	fmt.Printf("Modulus:     %s\n", info.Modulus)
	return nil
}

func runSave(opts docopt.Opts) error {
	from, _ := opts.String("--from")
	to, _ := opts.String("--to")

	if err := icp.SaveArchive(from, to); err != nil {
		return err
	}
	fmt.Printf("Saved filing package: %s\n", to)
	return nil
}

func printProfileSummary(w io.Writer, profile *icp.ProvisioningProfile) {
	fmt.Fprintln(w, "Embedded Provisioning Profile")
	fmt.Fprintln(w, "-----------------------------")
	fmt.Fprintf(w, "Name:           %s\n", profile.Name)
	fmt.Fprintf(w, "Team:           %s (%s)\n", profile.TeamName, profile.TeamID())
	fmt.Fprintf(w, "Distribution:   %s\n", profile.Distribution())
	fmt.Fprintf(w, "Expiration:     %s\n", profile.ExpirationDate.Format("2006-01-02"))
	if certs, err := profile.Certificates(); err == nil {
		fmt.Fprintf(w, "Certificates:   %d\n", len(certs))
		for i, cert := range certs {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, cert.Subject.CommonName)
		}
	}
	fmt.Fprintln(w)
}
