package codesign

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// DefaultCodesignTool is the tool that performs the actual signing.
const DefaultCodesignTool = "codesign"

// IdentitySource yields the identity handed to codesign --sign.
type IdentitySource interface {
	Resolve(ctx context.Context) (string, error)
}

// StaticIdentity is an identity known up front, e.g. derived from a P12 file.
type StaticIdentity string

// Resolve returns the identity, or ErrNoIdentity when it is empty.
func (s StaticIdentity) Resolve(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoIdentity
	}
	return string(s), nil
}

// TargetArg returns the path to sign from the command line arguments. A
// missing argument yields "", which is forwarded to codesign unchanged.
func TargetArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// SignCommand builds the full codesign argv, tool first.
func SignCommand(tool, identity, workDir string, args []string) []string {
	if tool == "" {
		tool = DefaultCodesignTool
	}
	return []string{
		tool,
		"--sign", identity,
		"--force",
		"--entitlements", EntitlementsPath(workDir),
		"--verbose",
		"--timestamp",
		"-o", "runtime",
		"--deep",
		TargetArg(args),
	}
}

// Signer resolves an identity and runs codesign with it.
type Signer struct {
	Runner     Runner
	Identities IdentitySource
	Tool       string // defaults to DefaultCodesignTool
	Preflight  bool   // log warnings about missing inputs before signing
	DryRun     bool   // log the codesign command without running it
	Logger     *log.Logger
}

// AutoSign runs the whole pipeline: resolve the identity, then sign
// args[0] using workDir/entitlements.plist. ErrNoIdentity is returned as is
// and nothing is signed in that case.
func (s *Signer) AutoSign(ctx context.Context, workDir string, args []string) error {
	s.logger().Debug("auto-sign", "args", args)

	identity, err := s.Identities.Resolve(ctx)
	if err != nil {
		return err
	}

	if s.Preflight {
		for _, w := range Preflight(workDir, TargetArg(args)) {
			s.logger().Warn(w.String())
		}
	}

	return s.Sign(ctx, identity, workDir, args)
}

// Sign runs codesign for identity with inherited standard streams. The
// tool's output is not inspected; a non-zero exit comes back wrapping the
// *exec.ExitError.
func (s *Signer) Sign(ctx context.Context, identity, workDir string, args []string) error {
	argv := SignCommand(s.Tool, identity, workDir, args)
	s.logger().Info("signing", "cmd", CommandLine(argv))

	if s.DryRun {
		return nil
	}

	if err := s.Runner.Run(ctx, argv[0], argv[1:]...); err != nil {
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}

func (s *Signer) logger() *log.Logger {
	if s.Logger == nil {
		return discardLogger
	}
	return s.Logger
}
