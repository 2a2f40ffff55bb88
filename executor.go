// executor.go: execution strategy contracts for the two extension kinds
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"context"
	"time"
)

// PackageExecutor runs functions of package extensions in their own
// process. Implementations own the transport to the extension process
// and never leak transport failures as errors: every failure mode is
// folded into the returned ExtensionResult.
type PackageExecutor interface {
	// Execute invokes a function on the extension's process. The timeout
	// bounds the whole round trip; an expired deadline yields an error
	// result, never a hung call.
	Execute(ctx context.Context, desc *ExtensionDescriptor, function string, params map[string]any, timeout time.Duration) ExtensionResult

	// UnbindAll tears down every live connection. Safe to call more than
	// once; in-flight invocations are not drained.
	UnbindAll()
}

// ArtifactLoader loads and runs code extensions inside the host process.
type ArtifactLoader interface {
	// Load instantiates the extension behind the descriptor and runs its
	// initialization hook. A descriptor whose implementation is unknown
	// to the host yields (nil, nil): unknown artifacts are tolerated, not
	// fatal. On success the returned descriptor is the discovery
	// descriptor enriched with the function list reported by the loaded
	// instance.
	Load(ctx context.Context, desc *ExtensionDescriptor) (*ExtensionDescriptor, error)

	// IsLoaded reports whether the extension id has a live instance.
	IsLoaded(id string) bool

	// Execute invokes a function on the loaded instance. Panics inside
	// the extension and expired timeouts are folded into the result.
	Execute(ctx context.Context, desc *ExtensionDescriptor, function string, params map[string]any, timeout time.Duration) ExtensionResult

	// UnloadAll runs the teardown hook of every loaded instance exactly
	// once and drops them. Safe to call more than once.
	UnloadAll()
}
