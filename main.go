package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/aluedeke/go-autosign/pkg/codesign"
	"github.com/charmbracelet/log"
	"github.com/docopt/docopt-go"
)

const version = "1.0.0"

const usage = `go-autosign - macOS App Signing Tool

Signs an app bundle with the first valid code signing identity in the keychain,
using entitlements.plist from the current directory.

Usage:
  go-autosign identities
  go-autosign info <path>
  go-autosign [--dry-run] [--p12=<path>] [--password=<password>] [--] [<target>] [<args>...]
  go-autosign -h | --help
  go-autosign --version

Commands:
  identities    List the valid code signing identities in the keychain
  info          Display the code signature of a binary or .app bundle

Only the first path is signed; further arguments are ignored. Use -- before a
path that starts with a dash or is named like a command.

Options:
  --dry-run              Print the codesign command without running it
  --p12=<path>           Sign with the certificate in this P12 file (or AUTOSIGN_P12 env var)
  --password=<password>  Password for the P12 file (or AUTOSIGN_P12_PASSWORD env var)
  -h --help              Show this help message
  --version              Show version

Environment Variables:
  AUTOSIGN_SECURITY      Identity lookup tool (default: security)
  AUTOSIGN_CODESIGN      Signing tool (default: codesign)
  AUTOSIGN_LOG_LEVEL     debug, info, warn or error (default: info)
  AUTOSIGN_PREFLIGHT     Warn about a missing entitlements file or target (default: true)

Examples:
  # Sign an app with the first identity found in the keychain
  go-autosign MyApp.app

  # Show what would be run
  go-autosign --dry-run MyApp.app

  # Sign with the identity of a certificate already imported into the keychain
  go-autosign --p12=developer-id.p12 --password=secret MyApp.app

  # Sign a bundle whose name starts with a dash
  go-autosign -- -nightly.app

  # Check the result
  go-autosign info MyApp.app
`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfig()
	logger, err := codesign.NewLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	runner := codesign.NewExecRunner()

	if identities, _ := opts.Bool("identities"); identities {
		err = runIdentities(ctx, runner, cfg, logger, os.Stdout)
	} else if info, _ := opts.Bool("info"); info {
		err = runInfo(opts, os.Stdout)
	} else {
		var workDir string
		workDir, err = os.Getwd()
		if err == nil {
			err = runSign(ctx, opts, os.Args[1:], runner, cfg, logger, workDir)
		}
	}

	os.Exit(exitCode(err, logger))
}

// exitCode maps a command's result to the process exit status. A missing
// identity is a silent success and a failed codesign run passes its own
// status through; its output already explains what went wrong.
func exitCode(err error, logger *log.Logger) int {
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, codesign.ErrNoIdentity):
		logger.Debug("nothing signed", "reason", err)
		return 0
	case errors.As(err, &exitErr):
		if code := exitErr.ExitCode(); code > 0 {
			return code
		}
		return 1
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
}

func runSign(ctx context.Context, opts docopt.Opts, argv []string, runner codesign.Runner, cfg config, logger *log.Logger, workDir string) error {
	logger.Info("arguments", "argv", argv)

	dryRun, _ := opts.Bool("--dry-run")
	p12Path, _ := opts.String("--p12")
	password, _ := opts.String("--password")

	// Get values from environment if not provided via flags
	if p12Path == "" {
		p12Path = cfg.P12Path
	}
	if password == "" {
		password = cfg.P12Password
	}

	var identities codesign.IdentitySource = &codesign.IdentityResolver{
		Runner: runner,
		Tool:   cfg.SecurityTool,
		Logger: logger,
	}
	if p12Path != "" {
		p12Data, err := os.ReadFile(p12Path)
		if err != nil {
			return fmt.Errorf("failed to read P12 file: %w", err)
		}
		id, err := codesign.IdentityFromP12(p12Data, password)
		if err != nil {
			return err
		}
		logger.Info("using P12 identity", "identity", id.Hash, "name", id.Name)
		identities = codesign.StaticIdentity(id.Hash)
	}

	signer := &codesign.Signer{
		Runner:     runner,
		Identities: identities,
		Tool:       cfg.CodesignTool,
		Preflight:  cfg.Preflight,
		DryRun:     dryRun,
		Logger:     logger,
	}
	return signer.AutoSign(ctx, workDir, targetArgs(opts))
}

// targetArgs returns the positional arguments the signer sees, target first.
// An absent target yields no arguments rather than a default.
func targetArgs(opts docopt.Opts) []string {
	target, ok := opts["<target>"].(string)
	if !ok {
		return nil
	}
	args := []string{target}
	if rest, ok := opts["<args>"].([]string); ok {
		args = append(args, rest...)
	}
	return args
}

func runIdentities(ctx context.Context, runner codesign.Runner, cfg config, logger *log.Logger, w io.Writer) error {
	resolver := &codesign.IdentityResolver{
		Runner: runner,
		Tool:   cfg.SecurityTool,
		Logger: logger,
	}

	identities, err := resolver.List(ctx)
	if err != nil {
		return err
	}

	for _, id := range identities {
		fmt.Fprintf(w, "  %d) %s \"%s\"\n", id.Index, id.Hash, id.Name)
	}
	fmt.Fprintf(w, "     %d valid identities found\n", len(identities))
	return nil
}

func runInfo(opts docopt.Opts, w io.Writer) error {
	path, _ := opts.String("<path>")

	infos, err := codesign.InspectSignature(path)
	if err != nil {
		return fmt.Errorf("failed to get signature info: %w", err)
	}

	for _, info := range infos {
		codesign.PrintSignatureInfo(info, w)
	}
	return nil
}
