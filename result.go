// result.go: Closed result variants for security checks and invocations
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"encoding/json"
)

// SecurityCheckStatus enumerates the terminal states of a security check.
type SecurityCheckStatus int

const (
	// CheckPassed means every applicable gate was verified.
	CheckPassed SecurityCheckStatus = iota
	// CheckFailed means a gate rejected the extension; the reason is final
	// for this call and re-evaluated from scratch on the next one.
	CheckFailed
	// CheckSkipped means the trust bypass applied and no gate ran.
	CheckSkipped
)

// String returns a human-readable representation of the check status.
func (s SecurityCheckStatus) String() string {
	switch s {
	case CheckPassed:
		return "passed"
	case CheckFailed:
		return "failed"
	case CheckSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SecurityCheckResult is the closed outcome of a security evaluation:
// exactly one of Passed, Failed(reason) or Skipped(reason).
type SecurityCheckResult struct {
	Status SecurityCheckStatus `json:"status"`
	Reason string              `json:"reason,omitempty"`
}

// CheckPass reports a fully verified descriptor.
func CheckPass() SecurityCheckResult {
	return SecurityCheckResult{Status: CheckPassed}
}

// CheckFail reports a rejected descriptor with the failing gate's reason.
func CheckFail(reason string) SecurityCheckResult {
	return SecurityCheckResult{Status: CheckFailed, Reason: reason}
}

// CheckSkip reports a trust bypass with the reason checks were skipped.
func CheckSkip(reason string) SecurityCheckResult {
	return SecurityCheckResult{Status: CheckSkipped, Reason: reason}
}

// Passed reports whether the check did not fail (passed or skipped).
func (r SecurityCheckResult) Passed() bool {
	return r.Status != CheckFailed
}

// ResultKind discriminates the four ExtensionResult variants.
type ResultKind string

const (
	ResultSuccess          ResultKind = "success"
	ResultError            ResultKind = "error"
	ResultPermissionDenied ResultKind = "permission_denied"
	ResultApprovalRequired ResultKind = "approval_required"
)

// ExtensionResult is the closed variant every public engine entry point
// returns. No entry point panics or returns a raw error past the public
// boundary: discovery, security, routing and executor failures all fold into
// one of the four kinds.
//
// Serialized form is a discriminated payload: the Kind field plus either
// Payload (success) or Message (the other three kinds).
type ExtensionResult struct {
	Kind    ResultKind `json:"kind"`
	Payload any        `json:"payload,omitempty"`
	Message string     `json:"message,omitempty"`
}

// Success wraps a successful invocation payload.
func Success(payload any) ExtensionResult {
	return ExtensionResult{Kind: ResultSuccess, Payload: payload}
}

// Errorf builds an Error result with a human-readable message.
func Errorf(message string) ExtensionResult {
	return ExtensionResult{Kind: ResultError, Message: message}
}

// PermissionDenied builds a denial result carrying the failing gate's reason.
func PermissionDenied(reason string) ExtensionResult {
	return ExtensionResult{Kind: ResultPermissionDenied, Message: reason}
}

// ApprovalRequired signals that external consent is needed before this call
// can execute. The engine does not queue the call; the caller re-issues it
// once consent is obtained.
func ApprovalRequired(message string) ExtensionResult {
	return ExtensionResult{Kind: ResultApprovalRequired, Message: message}
}

// IsSuccess reports whether the invocation produced a payload.
func (r ExtensionResult) IsSuccess() bool {
	return r.Kind == ResultSuccess
}

// MarshalJSON serializes the result as its discriminated wire form.
func (r ExtensionResult) MarshalJSON() ([]byte, error) {
	type wire ExtensionResult
	return json.Marshal(wire(r))
}
