// descriptor.go: Extension descriptor model and function declarations
//
// This file contains the passive value types describing an extension and the
// functions it exposes. Descriptors are produced by the discovery scanners,
// enriched by the artifact loader, and indexed by the registry. They carry no
// behavior beyond identity helpers.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"strings"
)

// ExtensionType identifies how an extension is packaged and executed.
//
// The engine supports two execution models:
//   - PackageExtension: a self-contained signed package running with its own
//     execution identity, reached through an out-of-process executor
//   - CodeExtension: a code artifact loaded in-process, sharing the host's
//     execution identity
type ExtensionType int

const (
	// PackageExtension runs isolated from the host under its own identity.
	PackageExtension ExtensionType = iota
	// CodeExtension is loaded in-process from a code artifact.
	CodeExtension
)

// String returns a human-readable representation of the extension type.
func (t ExtensionType) String() string {
	switch t {
	case PackageExtension:
		return "package"
	case CodeExtension:
		return "code"
	default:
		return "unknown"
	}
}

// ExtensionFunction describes a single callable function exposed by an extension.
//
// Function names are globally scoped: the registry maps each name to at most
// one owning extension at a time. The declaration carries the metadata the
// gating pipeline needs: required permissions checked before routing, and the
// approval flag that blocks execution until external consent is obtained.
type ExtensionFunction struct {
	Name                string         `json:"name" yaml:"name"`
	Description         string         `json:"description,omitempty" yaml:"description,omitempty"`
	InputSchema         map[string]any `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`
	RequiredPermissions []string       `json:"required_permissions,omitempty" yaml:"required_permissions,omitempty"`
	RequiresApproval    bool           `json:"requires_approval,omitempty" yaml:"requires_approval,omitempty"`
}

// ExtensionDescriptor is the engine's metadata record for one extension.
//
// Descriptors are created by a scanner through read-only inspection and
// destroyed when the owning extension is unloaded or the engine shuts down.
// For a CodeExtension the Functions list is empty until the artifact is
// actually loaded; the loader returns an enriched copy that supersedes the
// scanner's bare descriptor.
//
// Fields:
//   - ID: unique identity within the registry; re-registering an ID replaces
//     the previous descriptor and its function index entries
//   - Package: installed-package name (PackageExtension only)
//   - ArtifactPath: filesystem path of the code artifact (CodeExtension only)
//   - EntryClass: fully-qualified implementation class, declared in the
//     manifest (package kind) or derived from the artifact filename (code
//     kind); the loader resolves its factory by this name
//   - SigningCertHash: pinned SHA-256 hex digest of the expected signing
//     certificate; empty means any certificate passes signature verification
//   - Trusted: individual trust flag, bypasses all security checks
type ExtensionDescriptor struct {
	ID              string              `json:"id" yaml:"id"`
	Name            string              `json:"name" yaml:"name"`
	Type            ExtensionType       `json:"type" yaml:"type"`
	Version         int                 `json:"version" yaml:"version"`
	Package         string              `json:"package,omitempty" yaml:"package,omitempty"`
	ArtifactPath    string              `json:"artifact_path,omitempty" yaml:"artifact_path,omitempty"`
	EntryClass      string              `json:"entry_class,omitempty" yaml:"entry_class,omitempty"`
	SigningCertHash string              `json:"signing_cert_hash,omitempty" yaml:"signing_cert_hash,omitempty"`
	Trusted         bool                `json:"trusted,omitempty" yaml:"trusted,omitempty"`
	Functions       []ExtensionFunction `json:"functions,omitempty" yaml:"functions,omitempty"`
}

// Function returns the declaration for the named function, or nil if the
// descriptor does not declare it. Absence is tolerated by the engine: a call
// without a declaration proceeds without permission or approval metadata.
func (d *ExtensionDescriptor) Function(name string) *ExtensionFunction {
	for i := range d.Functions {
		if d.Functions[i].Name == name {
			return &d.Functions[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the descriptor. The registry hands out clones
// so callers can never mutate indexed state.
func (d *ExtensionDescriptor) Clone() *ExtensionDescriptor {
	if d == nil {
		return nil
	}
	out := *d
	out.Functions = make([]ExtensionFunction, len(d.Functions))
	for i, fn := range d.Functions {
		out.Functions[i] = fn
		if fn.RequiredPermissions != nil {
			out.Functions[i].RequiredPermissions = append([]string(nil), fn.RequiredPermissions...)
		}
		if fn.InputSchema != nil {
			out.Functions[i].InputSchema = deepCopySchema(fn.InputSchema)
		}
	}
	return &out
}

// deepCopySchema copies a decoded JSON schema tree. Schemas only hold the
// types the JSON and YAML decoders produce: maps, slices and scalars.
func deepCopySchema(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = deepCopySchemaValue(v)
	}
	return out
}

func deepCopySchemaValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return deepCopySchema(value)
	case []any:
		out := make([]any, len(value))
		for i, elem := range value {
			out[i] = deepCopySchemaValue(elem)
		}
		return out
	default:
		return value
	}
}

// codeExtensionIDPrefix namespaces identities synthesized from artifact
// class names so they can never collide with manifest-declared IDs.
const codeExtensionIDPrefix = "code:"

// CodeExtensionID synthesizes the identity for a code artifact implementing
// the given fully-qualified class name.
func CodeExtensionID(className string) string {
	return codeExtensionIDPrefix + className
}

// simpleClassName returns the last dot-separated segment of a fully-qualified
// class name, used as the display name for filename-convention artifacts.
func simpleClassName(className string) string {
	if idx := strings.LastIndex(className, "."); idx >= 0 {
		return className[idx+1:]
	}
	return className
}
