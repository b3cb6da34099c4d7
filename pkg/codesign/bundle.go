package codesign

import (
	"fmt"
	"os"
	"path/filepath"

	"howett.net/plist"
)

// BundleExecutable returns the main executable of an app bundle. macOS
// bundles keep Info.plist under Contents/ and the binary in Contents/MacOS;
// iOS-style bundles keep both at the root.
func BundleExecutable(bundlePath string) (string, error) {
	layouts := []struct {
		infoPlist string
		execDir   string
	}{
		{filepath.Join("Contents", "Info.plist"), filepath.Join("Contents", "MacOS")},
		{"Info.plist", ""},
	}

	for _, layout := range layouts {
		data, err := os.ReadFile(filepath.Join(bundlePath, layout.infoPlist))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to read Info.plist: %w", err)
		}

		info, err := parseInfoPlist(data)
		if err != nil {
			return "", err
		}

		execName, ok := info["CFBundleExecutable"].(string)
		if !ok || execName == "" {
			return "", fmt.Errorf("CFBundleExecutable not found in %s", layout.infoPlist)
		}
		return filepath.Join(bundlePath, layout.execDir, execName), nil
	}

	return "", fmt.Errorf("no Info.plist found in %s", bundlePath)
}

// InspectSignature reads the signature of a binary, or of a bundle's main
// executable when path is a directory.
func InspectSignature(path string) ([]*SignatureInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	binaryPath := path
	if fi.IsDir() {
		binaryPath, err = BundleExecutable(path)
		if err != nil {
			return nil, err
		}
	}

	return ParseSignature(binaryPath)
}

func parseInfoPlist(data []byte) (map[string]interface{}, error) {
	var info map[string]interface{}
	_, err := plist.Unmarshal(data, &info)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plist: %w", err)
	}
	return info, nil
}
