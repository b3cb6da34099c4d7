package codesign

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// EntitlementsFile is the entitlements file expected in the working directory.
const EntitlementsFile = "entitlements.plist"

// Warning describes a signing precondition that does not look satisfied.
// Warnings never stop the signing run; codesign has the final say.
type Warning struct {
	Check  string
	Path   string
	Detail string
}

func (w Warning) String() string {
	if w.Path == "" {
		return fmt.Sprintf("%s: %s", w.Check, w.Detail)
	}
	return fmt.Sprintf("%s: %s (%s)", w.Check, w.Detail, w.Path)
}

// EntitlementsPath returns the entitlements file for a working directory.
func EntitlementsPath(workDir string) string {
	return filepath.Join(workDir, EntitlementsFile)
}

// Preflight inspects the entitlements file and target before signing.
func Preflight(workDir, target string) []Warning {
	var warnings []Warning

	entitlementsPath := EntitlementsPath(workDir)
	data, err := os.ReadFile(entitlementsPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		warnings = append(warnings, Warning{
			Check:  "entitlements",
			Path:   entitlementsPath,
			Detail: "file does not exist",
		})
	case err != nil:
		warnings = append(warnings, Warning{
			Check:  "entitlements",
			Path:   entitlementsPath,
			Detail: err.Error(),
		})
	default:
		if _, err := ParseEntitlementsXML(data); err != nil {
			warnings = append(warnings, Warning{
				Check:  "entitlements",
				Path:   entitlementsPath,
				Detail: err.Error(),
			})
		}
	}

	if target == "" {
		warnings = append(warnings, Warning{
			Check:  "target",
			Detail: "no path to sign was given",
		})
	} else if _, err := os.Stat(resolveIn(workDir, target)); err != nil {
		warnings = append(warnings, Warning{
			Check:  "target",
			Path:   target,
			Detail: "path is not accessible",
		})
	}

	return warnings
}

func resolveIn(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
