// discovery.go: filesystem discovery of extension packages and code artifacts
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"archive/zip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scanner discovers extension descriptors under a set of directories.
//
// Implementations scan each directory non-recursively, skip directories
// that do not exist, and swallow per-file inspection failures after
// logging them: a single unreadable candidate never aborts discovery.
type Scanner interface {
	// Scan inspects the given directories and returns every descriptor
	// it could build. The returned slice may be empty, never nil.
	Scan(dirs []string) []*ExtensionDescriptor
}

// Default filename patterns matched by the built-in scanners.
var (
	// DefaultPackagePatterns selects package archives.
	DefaultPackagePatterns = []string{"*.epk", "*.zip"}

	// DefaultArtifactPatterns selects code extension artifacts.
	DefaultArtifactPatterns = []string{"*.so", "*.dex"}
)

// manifestNames are the accepted manifest entry basenames inside a
// package archive, probed in order.
var manifestNames = []string{"extension.json", "extension.yaml", "extension.yml"}

// extensionManifest is the wire form of the manifest embedded in a
// package archive. Entry is the only mandatory attribute; everything
// else has a defaulting rule applied in descriptorFromManifest.
type extensionManifest struct {
	ID              string              `json:"id" yaml:"id"`
	Name            string              `json:"name" yaml:"name"`
	Entry           string              `json:"entry" yaml:"entry"`
	Version         string              `json:"version" yaml:"version"`
	Package         string              `json:"package" yaml:"package"`
	SigningCertHash string              `json:"signing_cert_hash" yaml:"signing_cert_hash"`
	Trusted         bool                `json:"trusted" yaml:"trusted"`
	Functions       []ExtensionFunction `json:"functions" yaml:"functions"`
}

// PackageScanner discovers package extensions: zip archives carrying an
// embedded extension manifest. Archives without a manifest, or with a
// manifest that lacks the mandatory entry attribute, are skipped.
type PackageScanner struct {
	patterns []string
	logger   Logger
}

// NewPackageScanner creates a package scanner. Empty patterns fall back
// to DefaultPackagePatterns; a nil logger falls back to the no-op logger.
func NewPackageScanner(patterns []string, logger Logger) *PackageScanner {
	if len(patterns) == 0 {
		patterns = DefaultPackagePatterns
	}
	if logger == nil {
		logger = DefaultLogger()
	}
	return &PackageScanner{patterns: patterns, logger: logger}
}

// Scan walks each directory (non-recursive) and returns a descriptor for
// every readable archive with a valid manifest.
func (s *PackageScanner) Scan(dirs []string) []*ExtensionDescriptor {
	descriptors := make([]*ExtensionDescriptor, 0)

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("Skipping extension directory", "dir", dir, "error", err)
			}
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() || !matchesAny(s.patterns, entry.Name()) {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			desc, err := s.inspectArchive(path)
			if err != nil {
				s.logger.Warn("Skipping extension package", "path", path, "error", err)
				continue
			}
			descriptors = append(descriptors, desc)
		}
	}

	return descriptors
}

// inspectArchive opens the archive, locates the manifest entry and builds
// a descriptor from it.
func (s *PackageScanner) inspectArchive(path string) (*ExtensionDescriptor, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, NewArtifactUnreadableError(path, err)
	}
	defer func() { _ = reader.Close() }()

	manifest, err := readManifest(&reader.Reader, path)
	if err != nil {
		return nil, err
	}

	return descriptorFromManifest(manifest, path)
}

// readManifest locates and decodes the manifest entry. JSON manifests are
// decoded as JSON, everything else as YAML.
func readManifest(reader *zip.Reader, path string) (*extensionManifest, error) {
	for _, file := range reader.File {
		base := filepath.Base(file.Name)
		if !containsName(manifestNames, base) {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, NewManifestParseError(file.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, NewManifestParseError(file.Name, err)
		}

		manifest := &extensionManifest{}
		if strings.HasSuffix(base, ".json") {
			err = json.Unmarshal(data, manifest)
		} else {
			err = yaml.Unmarshal(data, manifest)
		}
		if err != nil {
			return nil, NewManifestParseError(file.Name, err)
		}
		return manifest, nil
	}

	return nil, NewManifestMissingError(path)
}

// descriptorFromManifest applies the manifest defaulting rules:
// a missing id is synthesized from the archive filename, a missing name
// falls back to the id, a missing package falls back to the id, and a
// missing or non-numeric version defaults to 1. The entry attribute has
// no default: its absence disqualifies the package.
func descriptorFromManifest(manifest *extensionManifest, path string) (*ExtensionDescriptor, error) {
	if strings.TrimSpace(manifest.Entry) == "" {
		return nil, NewInvalidDescriptorError("manifest declares no entry class")
	}

	id := strings.TrimSpace(manifest.ID)
	if id == "" {
		base := filepath.Base(path)
		id = strings.TrimSuffix(base, filepath.Ext(base))
	}

	name := strings.TrimSpace(manifest.Name)
	if name == "" {
		name = id
	}

	pkg := strings.TrimSpace(manifest.Package)
	if pkg == "" {
		pkg = id
	}

	version := 1
	if v, err := strconv.Atoi(strings.TrimSpace(manifest.Version)); err == nil && v > 0 {
		version = v
	}

	return &ExtensionDescriptor{
		ID:              id,
		Name:            name,
		Type:            PackageExtension,
		Version:         version,
		Package:         pkg,
		ArtifactPath:    path,
		EntryClass:      manifest.Entry,
		SigningCertHash: manifest.SigningCertHash,
		Trusted:         manifest.Trusted,
		Functions:       manifest.Functions,
	}, nil
}

// ArtifactScanner discovers code extensions by filename convention: an
// artifact named <fully.qualified.ClassName>.<ext> yields a descriptor
// with id "code:<fully.qualified.ClassName>" and the simple class name as
// display name. Artifacts carry no manifest, so the function list stays
// empty until the extension is loaded and asked for it.
type ArtifactScanner struct {
	patterns []string
	logger   Logger
}

// NewArtifactScanner creates a code artifact scanner. Empty patterns fall
// back to DefaultArtifactPatterns; a nil logger falls back to the no-op
// logger.
func NewArtifactScanner(patterns []string, logger Logger) *ArtifactScanner {
	if len(patterns) == 0 {
		patterns = DefaultArtifactPatterns
	}
	if logger == nil {
		logger = DefaultLogger()
	}
	return &ArtifactScanner{patterns: patterns, logger: logger}
}

// Scan walks each directory (non-recursive) and returns a descriptor for
// every artifact matching the filename convention.
func (s *ArtifactScanner) Scan(dirs []string) []*ExtensionDescriptor {
	descriptors := make([]*ExtensionDescriptor, 0)

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("Skipping artifact directory", "dir", dir, "error", err)
			}
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() || !matchesAny(s.patterns, entry.Name()) {
				continue
			}

			className := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
			if className == "" {
				s.logger.Warn("Skipping artifact with empty class name", "dir", dir, "file", entry.Name())
				continue
			}

			descriptors = append(descriptors, &ExtensionDescriptor{
				ID:           CodeExtensionID(className),
				Name:         simpleClassName(className),
				Type:         CodeExtension,
				Version:      1,
				ArtifactPath: filepath.Join(dir, entry.Name()),
				EntryClass:   className,
				Functions:    nil,
			})
		}
	}

	return descriptors
}

// matchesAny reports whether the filename matches at least one pattern.
func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

func containsName(names []string, name string) bool {
	for _, candidate := range names {
		if candidate == name {
			return true
		}
	}
	return false
}
