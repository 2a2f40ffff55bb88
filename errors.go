// errors.go: structured error definitions for the extension engine
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"github.com/agilira/go-errors"
)

// Error codes for the extension engine
const (
	// Discovery errors (1000-1099)
	ErrCodeManifestMissing    = "EXT_1001"
	ErrCodeManifestParse      = "EXT_1002"
	ErrCodeArtifactUnreadable = "EXT_1003"
	ErrCodeDirectoryScan      = "EXT_1004"

	// Registry errors (1100-1199)
	ErrCodeRegistryError     = "EXT_1101"
	ErrCodeExtensionNotFound = "EXT_1102"
	ErrCodeFunctionNotFound  = "EXT_1103"
	ErrCodeInvalidDescriptor = "EXT_1104"

	// Security errors (1200-1299)
	ErrCodeSignatureMismatch   = "EXT_1201"
	ErrCodeMissingSigner       = "EXT_1202"
	ErrCodePackageNotInstalled = "EXT_1203"
	ErrCodeIsolationViolated   = "EXT_1204"
	ErrCodePermissionMissing   = "EXT_1205"
	ErrCodeArtifactCorrupt     = "EXT_1206"
	ErrCodeAuditError          = "EXT_1207"

	// Loader errors (1300-1399)
	ErrCodeLoaderError      = "EXT_1301"
	ErrCodeInitializeFailed = "EXT_1302"
	ErrCodeTeardownFailed   = "EXT_1303"

	// Executor errors (1400-1499)
	ErrCodeExecutionFailed  = "EXT_1401"
	ErrCodeExecutionTimeout = "EXT_1402"
	ErrCodeTransportError   = "EXT_1403"
	ErrCodeSchemaViolation  = "EXT_1404"

	// Policy and configuration errors (1500-1599)
	ErrCodePolicyParse   = "EXT_1501"
	ErrCodePolicyWatcher = "EXT_1502"
)

// Discovery error constructors

func NewManifestMissingError(path string) *errors.Error {
	return errors.New(ErrCodeManifestMissing, "Manifest missing mandatory entry attribute").
		WithUserMessage("The package does not declare an extension entry class").
		WithContext("package_path", path).
		WithSeverity("warning")
}

func NewManifestParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeManifestParse, "Manifest parse error").
		WithUserMessage("Failed to parse the extension manifest").
		WithContext("package_path", path).
		WithSeverity("warning")
}

func NewArtifactUnreadableError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeArtifactUnreadable, "Artifact unreadable").
		WithUserMessage("The extension artifact could not be read").
		WithContext("artifact_path", path).
		WithSeverity("warning")
}

func NewDirectoryScanError(dir string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeDirectoryScan, "Directory scan error").
		WithUserMessage("Failed to scan an extension directory").
		WithContext("directory", dir).
		WithSeverity("warning")
}

// Registry error constructors

func NewRegistryError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeRegistryError, "Registry error: "+message).
		WithUserMessage("Extension registry operation failed").
		WithSeverity("error")
}

func NewExtensionNotFoundError(id string) *errors.Error {
	return errors.New(ErrCodeExtensionNotFound, "Extension not found").
		WithUserMessage("The requested extension is not registered").
		WithContext("extension_id", id).
		WithSeverity("error")
}

func NewFunctionNotFoundError(name string) *errors.Error {
	return errors.New(ErrCodeFunctionNotFound, "Function not found").
		WithUserMessage("No registered extension provides the requested function").
		WithContext("function_name", name).
		WithSeverity("error")
}

func NewInvalidDescriptorError(message string) *errors.Error {
	return errors.New(ErrCodeInvalidDescriptor, "Invalid descriptor: "+message).
		WithUserMessage("The extension descriptor is malformed").
		WithSeverity("error")
}

// Security error constructors

func NewSignatureMismatchError(id, expected, actual string) *errors.Error {
	return errors.New(ErrCodeSignatureMismatch, "Signing certificate mismatch").
		WithUserMessage("The extension's signing certificate does not match the pinned digest").
		WithContext("extension_id", id).
		WithContext("expected_digest", expected).
		WithContext("actual_digest", actual).
		WithSeverity("error")
}

func NewMissingSignerError(id string) *errors.Error {
	return errors.New(ErrCodeMissingSigner, "Missing signer information").
		WithUserMessage("The installed package exposes no signing certificates").
		WithContext("extension_id", id).
		WithSeverity("error")
}

func NewPackageNotInstalledError(pkg string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodePackageNotInstalled, "Package not installed").
		WithUserMessage("The extension's package is not installed on the host").
		WithContext("package", pkg).
		WithSeverity("error")
}

func NewIsolationViolatedError(id string) *errors.Error {
	return errors.New(ErrCodeIsolationViolated, "Isolation violated").
		WithUserMessage("The extension shares the host's execution identity").
		WithContext("extension_id", id).
		WithSeverity("error")
}

func NewPermissionMissingError(id, permission string) *errors.Error {
	return errors.New(ErrCodePermissionMissing, "Required permission not granted").
		WithUserMessage("A permission required by the function is not currently granted").
		WithContext("extension_id", id).
		WithContext("permission", permission).
		WithSeverity("warning")
}

func NewArtifactCorruptError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeArtifactCorrupt, "Artifact integrity check failed").
		WithUserMessage("The code artifact failed its internal consistency check").
		WithContext("artifact_path", path).
		WithSeverity("error")
}

func NewAuditError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeAuditError, "Audit error: "+message).
		WithUserMessage("Security audit logging failed").
		WithSeverity("warning")
}

// Loader error constructors

func NewLoaderError(id string, message string, cause error) *errors.Error {
	if cause == nil {
		return errors.New(ErrCodeLoaderError, "Loader error: "+message).
			WithUserMessage("Code extension loading failed").
			WithContext("extension_id", id).
			WithSeverity("error")
	}
	return errors.Wrap(cause, ErrCodeLoaderError, "Loader error: "+message).
		WithUserMessage("Code extension loading failed").
		WithContext("extension_id", id).
		WithSeverity("error")
}

func NewInitializeFailedError(id string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeInitializeFailed, "Extension initialization failed").
		WithUserMessage("The extension's one-time initializer returned an error").
		WithContext("extension_id", id).
		WithSeverity("error")
}

func NewTeardownFailedError(id string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeTeardownFailed, "Extension teardown failed").
		WithUserMessage("The extension's teardown hook returned an error").
		WithContext("extension_id", id).
		WithSeverity("warning")
}

// Executor error constructors

func NewExecutionFailedError(id, function string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeExecutionFailed, "Extension execution failed").
		WithUserMessage("The extension failed to execute the requested function").
		WithContext("extension_id", id).
		WithContext("function", function).
		WithSeverity("error")
}

func NewExecutionTimeoutError(id, function string, timeout any) *errors.Error {
	return errors.New(ErrCodeExecutionTimeout, "Extension execution timeout").
		WithUserMessage("The function exceeded the configured execution timeout").
		WithContext("extension_id", id).
		WithContext("function", function).
		WithContext("timeout", timeout).
		WithSeverity("warning")
}

func NewTransportError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeTransportError, "Transport error: "+message).
		WithUserMessage("Out-of-process extension dispatch failed").
		WithSeverity("error").
		AsRetryable()
}

func NewSchemaViolationError(function string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeSchemaViolation, "Input schema violation").
		WithUserMessage("The invocation parameters do not satisfy the function's input schema").
		WithContext("function", function).
		WithSeverity("warning")
}

// Policy and configuration error constructors

func NewPolicyParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodePolicyParse, "Policy parse error").
		WithUserMessage("Failed to parse the security policy file").
		WithContext("policy_path", path).
		WithSeverity("error")
}

func NewPolicyWatcherError(message string, cause error) *errors.Error {
	if cause == nil {
		return errors.New(ErrCodePolicyWatcher, "Policy watcher error: "+message).
			WithUserMessage("Security policy monitoring failed").
			WithSeverity("error")
	}
	return errors.Wrap(cause, ErrCodePolicyWatcher, "Policy watcher error: "+message).
		WithUserMessage("Security policy monitoring failed").
		WithSeverity("error")
}
