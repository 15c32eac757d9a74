// Package main provides the go-icpinfo CLI, which turns an IPA into the
// material needed for an iOS app filing.
//
// For the library API, see the icp subpackage:
//
//	import "github.com/aluedeke/go-icpinfo/pkg/icp"
//
// # Installation
//
//	go install github.com/aluedeke/go-icpinfo@latest
package main
