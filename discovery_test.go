// discovery_test.go: package and artifact scanner tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeArchive creates a zip archive at path with the given entries.
func writeArchive(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	file, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, file.Close()) }()

	writer := zip.NewWriter(file)
	for name, content := range entries {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
}

func TestPackageScanner_ManifestDiscovery(t *testing.T) {
	t.Run("well_formed_json_manifest", func(t *testing.T) {
		dir := t.TempDir()
		writeArchive(t, filepath.Join(dir, "weather.epk"), map[string]string{
			"extension.json": `{
				"id": "com.t.e",
				"entry": "com.t.e.Main",
				"version": "3",
				"functions": [{"name": "weather.today"}]
			}`,
		})

		scanner := NewPackageScanner(nil, nil)
		descriptors := scanner.Scan([]string{dir})

		require.Len(t, descriptors, 1)
		desc := descriptors[0]
		assert.Equal(t, "com.t.e", desc.ID)
		assert.Equal(t, "com.t.e", desc.Name, "missing name defaults to id")
		assert.Equal(t, 3, desc.Version)
		assert.Equal(t, PackageExtension, desc.Type)
		assert.Equal(t, "com.t.e.Main", desc.EntryClass)
		require.Len(t, desc.Functions, 1)
		assert.Equal(t, "weather.today", desc.Functions[0].Name)
	})

	t.Run("yaml_manifest_with_defaults", func(t *testing.T) {
		dir := t.TempDir()
		writeArchive(t, filepath.Join(dir, "mail-helper.epk"), map[string]string{
			"extension.yaml": "entry: com.mail.Helper\nversion: not-a-number\n",
		})

		scanner := NewPackageScanner(nil, nil)
		descriptors := scanner.Scan([]string{dir})

		require.Len(t, descriptors, 1)
		desc := descriptors[0]
		assert.Equal(t, "mail-helper", desc.ID, "missing id is synthesized from the filename")
		assert.Equal(t, "mail-helper", desc.Name)
		assert.Equal(t, "mail-helper", desc.Package, "missing package defaults to id")
		assert.Equal(t, 1, desc.Version, "non-numeric version falls back to 1")
	})

	t.Run("missing_entry_yields_zero_descriptors", func(t *testing.T) {
		dir := t.TempDir()
		writeArchive(t, filepath.Join(dir, "broken.epk"), map[string]string{
			"extension.json": `{"id": "com.broken"}`,
		})

		logger := NewTestLogger()
		scanner := NewPackageScanner(nil, logger)

		descriptors := scanner.Scan([]string{dir})
		assert.Empty(t, descriptors)
		assert.True(t, logger.HasMessage("WARN", "Skipping extension package"))
	})

	t.Run("unreadable_archive_is_skipped", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.epk"), []byte("not a zip"), 0o644))
		writeArchive(t, filepath.Join(dir, "good.epk"), map[string]string{
			"extension.json": `{"entry": "com.good.Main"}`,
		})

		scanner := NewPackageScanner(nil, NewTestLogger())
		descriptors := scanner.Scan([]string{dir})

		require.Len(t, descriptors, 1, "one bad file must not abort the scan")
		assert.Equal(t, "good", descriptors[0].ID)
	})

	t.Run("missing_directory_ignored", func(t *testing.T) {
		scanner := NewPackageScanner(nil, nil)
		descriptors := scanner.Scan([]string{"/nonexistent/extensions"})
		assert.Empty(t, descriptors)
	})

	t.Run("scan_is_not_recursive", func(t *testing.T) {
		dir := t.TempDir()
		nested := filepath.Join(dir, "nested")
		require.NoError(t, os.MkdirAll(nested, 0o755))
		writeArchive(t, filepath.Join(nested, "deep.epk"), map[string]string{
			"extension.json": `{"entry": "com.deep.Main"}`,
		})

		scanner := NewPackageScanner(nil, nil)
		assert.Empty(t, scanner.Scan([]string{dir}))
	})
}

func TestArtifactScanner_FilenameConvention(t *testing.T) {
	t.Run("class_name_from_filename", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "com.example.Foo.dex"), []byte{0x50, 0x4b}, 0o644))

		scanner := NewArtifactScanner(nil, nil)
		descriptors := scanner.Scan([]string{dir})

		require.Len(t, descriptors, 1)
		desc := descriptors[0]
		assert.Equal(t, "code:com.example.Foo", desc.ID)
		assert.Equal(t, "Foo", desc.Name, "display name is the last dot segment")
		assert.Equal(t, "com.example.Foo", desc.EntryClass)
		assert.Equal(t, CodeExtension, desc.Type)
		assert.Empty(t, desc.Functions, "functions are only known after loading")
	})

	t.Run("non_matching_files_ignored", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("x"), 0o644))

		scanner := NewArtifactScanner(nil, nil)
		assert.Empty(t, scanner.Scan([]string{dir}))
	})

	t.Run("missing_directory_ignored", func(t *testing.T) {
		scanner := NewArtifactScanner(nil, nil)
		assert.Empty(t, scanner.Scan([]string{"/nonexistent/artifacts"}))
	})
}
