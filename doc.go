// Package main provides the go-autosign CLI tool for macOS code signing.
//
// go-autosign looks up the first valid code signing identity in the keychain
// and runs codesign on the given bundle with the entitlements.plist found in
// the current directory.
//
// For the library API, see the codesign subpackage:
//
//	import "github.com/aluedeke/go-autosign/pkg/codesign"
//
// # Installation
//
//	go install github.com/aluedeke/go-autosign@latest
package main
