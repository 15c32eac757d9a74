// Package icp extracts iOS app filing material from an IPA.
//
// The pipeline extracts the Payload directory of the archive, reads the app
// name, bundle ID and icon from Info.plist, pulls the leaf signing certificate
// out of the main executable and records its SHA-1 fingerprint and RSA
// modulus. The results are written as a small ZIP inside the extracted bundle
// and returned to the caller.
//
// # Basic Usage
//
//	result, err := icp.ParseIPA("MyApp.ipa", "/tmp/icp")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.SHA1, result.CacheZipPath)
//
// # Toolchains
//
// Certificate extraction and icon normalization go through a SigningToolchain.
// XcodeToolchain drives codesign, openssl and xcrun pngcrush and only works on
// macOS with Xcode installed. NativeToolchain reads the code signature with
// go-macho and reverts CgBI PNGs in process, so it runs anywhere.
//
//	tc, _ := icp.NewToolchain(icp.ToolchainNative)
//	result, err := icp.NewParser(tc).Parse(ctx, "MyApp.ipa", "/tmp/icp")
package icp
