// engine_execution.go: invocation entry points and the gating pipeline
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"context"
	"fmt"
)

// Execute invokes a function by its globally-scoped name. The owning
// extension is resolved through the registry's reverse index; resolution
// failure yields an Error result before any security check runs.
func (e *Engine) Execute(ctx context.Context, function string, params map[string]any) ExtensionResult {
	if e.shutdownFlag.Load() {
		return Errorf("engine is shut down")
	}

	desc := e.registry.FindExtensionForFunction(function)
	if desc == nil {
		result := Errorf(fmt.Sprintf("No extension provides function: %s", function))
		e.recordExecution(result)
		return result
	}

	result := e.runPipeline(ctx, desc, function, params)
	e.recordExecution(result)
	return result
}

// ExecuteOnExtension invokes a function on one specific extension,
// bypassing the reverse index.
func (e *Engine) ExecuteOnExtension(ctx context.Context, extensionID, function string, params map[string]any) ExtensionResult {
	if e.shutdownFlag.Load() {
		return Errorf("engine is shut down")
	}

	desc := e.registry.GetExtension(extensionID)
	if desc == nil {
		result := Errorf(fmt.Sprintf("Extension not found: %s", extensionID))
		e.recordExecution(result)
		return result
	}

	result := e.runPipeline(ctx, desc, function, params)
	e.recordExecution(result)
	return result
}

// runPipeline applies the ordered, short-circuiting gates and routes the
// surviving call to the type-specific executor.
//
// A function name absent from the descriptor's declarations is
// tolerated: the call proceeds without permission, approval or schema
// metadata, since dynamically-loaded extensions may not pre-declare
// every callable.
func (e *Engine) runPipeline(ctx context.Context, desc *ExtensionDescriptor, function string, params map[string]any) ExtensionResult {
	fn := desc.Function(function)

	if check := e.security.Validate(desc); !check.Passed() {
		e.logger.Warn("Extension rejected by security validation",
			"extension", desc.ID, "function", function, "reason", check.Reason)
		return PermissionDenied(check.Reason)
	}

	if fn != nil && len(fn.RequiredPermissions) > 0 {
		if check := e.security.CheckPermissions(desc, fn.RequiredPermissions); !check.Passed() {
			e.logger.Warn("Extension call missing required permission",
				"extension", desc.ID, "function", function, "reason", check.Reason)
			return PermissionDenied(check.Reason)
		}
	}

	// Approval is an external workflow: the caller re-issues the call
	// once consent is obtained. Nothing is queued here and the executor
	// is never invoked for this call.
	if fn != nil && fn.RequiresApproval {
		return ApprovalRequired(fmt.Sprintf("function %s on extension %s requires approval", function, desc.ID))
	}

	if fn != nil && len(fn.InputSchema) > 0 {
		if err := validateFunctionParams(fn, params); err != nil {
			return Errorf(fmt.Sprintf("invalid parameters for %s: %v", function, err))
		}
	}

	// The timeout is read from the current policy at routing time; a
	// mid-flight policy change never affects calls already routed.
	timeout := e.security.Policy().ExecutionTimeout()

	switch desc.Type {
	case PackageExtension:
		return e.executor.Execute(ctx, desc, function, params, timeout)
	case CodeExtension:
		return e.loader.Execute(ctx, desc, function, params, timeout)
	default:
		return Errorf(fmt.Sprintf("extension %s has unknown type %d", desc.ID, desc.Type))
	}
}
