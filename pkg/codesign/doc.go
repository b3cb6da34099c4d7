// Package codesign signs macOS app bundles with the system's own tools.
//
// The first valid identity reported by `security find-identity -v -p
// codesigning` is passed to codesign together with entitlements.plist from
// the working directory:
//
//	codesign --sign <identity> --force --entitlements <dir>/entitlements.plist \
//	    --verbose --timestamp -o runtime --deep <target>
//
// No signing happens in-process; codesign's output goes straight to the
// caller's terminal and its exit status is returned untouched.
//
// # Basic Usage
//
//	signer := &codesign.Signer{
//	    Runner:     codesign.NewExecRunner(),
//	    Identities: &codesign.IdentityResolver{Runner: codesign.NewExecRunner()},
//	}
//	err := signer.AutoSign(ctx, workDir, os.Args[1:])
//	if errors.Is(err, codesign.ErrNoIdentity) {
//	    return // nothing to sign with
//	}
//
// # Inspecting the result
//
// InspectSignature reads the embedded signature back from a binary or bundle
// and reports the identifier, team, hardened runtime flag, entitlements and
// CMS signer.
package codesign
