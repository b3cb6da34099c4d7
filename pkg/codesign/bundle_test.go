package codesign

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/go-macho/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fooInfoPlist = `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>CFBundleExecutable</key>
	<string>Foo</string>
	<key>CFBundleIdentifier</key>
	<string>com.example.Foo</string>
</dict>
</plist>
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestBundleExecutable(t *testing.T) {
	t.Run("macOS layout", func(t *testing.T) {
		app := filepath.Join(t.TempDir(), "Foo.app")
		writeFile(t, filepath.Join(app, "Contents", "Info.plist"), fooInfoPlist)

		got, err := BundleExecutable(app)

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(app, "Contents", "MacOS", "Foo"), got)
	})

	t.Run("flat layout", func(t *testing.T) {
		app := filepath.Join(t.TempDir(), "Foo.app")
		writeFile(t, filepath.Join(app, "Info.plist"), fooInfoPlist)

		got, err := BundleExecutable(app)

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(app, "Foo"), got)
	})

	t.Run("no Info.plist", func(t *testing.T) {
		app := filepath.Join(t.TempDir(), "Foo.app")
		require.NoError(t, os.MkdirAll(app, 0755))

		_, err := BundleExecutable(app)
		assert.ErrorContains(t, err, "no Info.plist found")
	})

	t.Run("no CFBundleExecutable", func(t *testing.T) {
		app := filepath.Join(t.TempDir(), "Foo.app")
		writeFile(t, filepath.Join(app, "Contents", "Info.plist"),
			`<plist version="1.0"><dict><key>CFBundleIdentifier</key><string>com.example.Foo</string></dict></plist>`)

		_, err := BundleExecutable(app)
		assert.ErrorContains(t, err, "CFBundleExecutable not found")
	})
}

func TestInspectSignature(t *testing.T) {
	t.Run("bundle executable", func(t *testing.T) {
		app := filepath.Join(t.TempDir(), "Foo.app")
		writeFile(t, filepath.Join(app, "Contents", "Info.plist"), fooInfoPlist)
		sig := buildSuperBlob(testBlob{CSSLOT_CODEDIRECTORY, buildCodeDirectory("com.example.Foo", "", CS_RUNTIME, CS_HASHTYPE_SHA256)})
		writeFile(t, filepath.Join(app, "Contents", "MacOS", "Foo"), string(buildMachO(types.CPUArm64, types.CPUSubtypeArm64All, sig)))

		infos, err := InspectSignature(app)

		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, filepath.Join(app, "Contents", "MacOS", "Foo"), infos[0].BinaryPath)
		assert.Equal(t, "com.example.Foo", infos[0].Identifier)
	})

	t.Run("bundle executable is not Mach-O", func(t *testing.T) {
		app := filepath.Join(t.TempDir(), "Foo.app")
		writeFile(t, filepath.Join(app, "Contents", "Info.plist"), fooInfoPlist)
		writeFile(t, filepath.Join(app, "Contents", "MacOS", "Foo"), "#!/bin/sh\n")

		_, err := InspectSignature(app)
		assert.ErrorContains(t, err, "not a Mach-O binary")
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := InspectSignature(filepath.Join(t.TempDir(), "Missing.app"))
		assert.True(t, os.IsNotExist(err))
	})
}
