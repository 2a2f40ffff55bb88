// policy.go: Runtime-swappable security policy for the extension engine
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultExecutionTimeout bounds a single function invocation when the
// policy does not specify one.
const DefaultExecutionTimeout = 30000 * time.Millisecond

// SecurityPolicy is the configurable gate set the security manager enforces.
//
// The five toggles are independent: each can be flipped at runtime through
// the single replace-the-policy operation (Engine.UpdateSecurityPolicy or the
// policy file watcher). DeveloperMode is the escape hatch: when true, every
// check reports Skipped regardless of the other flags.
//
// Policies are treated as immutable once installed. Callers replace the
// whole policy by reference; they never mutate an installed one. Each
// security evaluation reads the current reference at its start, so a swap
// mid-flight never affects a call already past its policy read.
type SecurityPolicy struct {
	// EnforceSignature verifies signing certificates of package extensions
	// and the internal consistency of code artifacts.
	EnforceSignature bool `json:"enforce_signature" yaml:"enforce_signature"`

	// EnforcePermissions checks each function's required permissions
	// against the host's currently granted set.
	EnforcePermissions bool `json:"enforce_permissions" yaml:"enforce_permissions"`

	// EnforceIsolation requires package extensions to run under an
	// execution identity distinct from the host's.
	EnforceIsolation bool `json:"enforce_isolation" yaml:"enforce_isolation"`

	// ExecutionTimeoutMillis bounds a single routed invocation. Zero falls
	// back to DefaultExecutionTimeout. The value is read at routing time;
	// changing it never affects calls already routed.
	ExecutionTimeoutMillis int64 `json:"execution_timeout_ms" yaml:"execution_timeout_ms"`

	// TrustedIDs lists extension ids that bypass every security check.
	TrustedIDs []string `json:"trusted_ids,omitempty" yaml:"trusted_ids,omitempty"`

	// DeveloperMode skips all checks for every extension.
	DeveloperMode bool `json:"developer_mode" yaml:"developer_mode"`
}

// DefaultSecurityPolicy returns the policy used when the host supplies none:
// all gates on, default timeout, empty trust set, developer mode off.
func DefaultSecurityPolicy() SecurityPolicy {
	return SecurityPolicy{
		EnforceSignature:       true,
		EnforcePermissions:     true,
		EnforceIsolation:       true,
		ExecutionTimeoutMillis: DefaultExecutionTimeout.Milliseconds(),
	}
}

// ExecutionTimeout returns the effective invocation timeout.
func (p SecurityPolicy) ExecutionTimeout() time.Duration {
	if p.ExecutionTimeoutMillis <= 0 {
		return DefaultExecutionTimeout
	}
	return time.Duration(p.ExecutionTimeoutMillis) * time.Millisecond
}

// IsTrusted reports whether the id is in the policy's trusted set.
func (p SecurityPolicy) IsTrusted(id string) bool {
	for _, trusted := range p.TrustedIDs {
		if trusted == id {
			return true
		}
	}
	return false
}

// ParseSecurityPolicy parses a policy document, trying JSON first and
// falling back to YAML, the same dual-format handling the manifest scanner
// uses. Unset fields keep their zero values; callers wanting defaults start
// from DefaultSecurityPolicy and overlay.
func ParseSecurityPolicy(data []byte) (SecurityPolicy, error) {
	var policy SecurityPolicy
	if err := json.Unmarshal(data, &policy); err != nil {
		if yamlErr := yaml.Unmarshal(data, &policy); yamlErr != nil {
			return SecurityPolicy{}, NewPolicyParseError("", yamlErr)
		}
	}
	return policy, nil
}

// policyFromWatcherConfig rebuilds a policy from the generic map the config
// watcher delivers on file change. Round-tripping through JSON keeps the
// field mapping in one place.
func policyFromWatcherConfig(config map[string]any) (SecurityPolicy, error) {
	data, err := json.Marshal(config)
	if err != nil {
		return SecurityPolicy{}, NewPolicyParseError("", err)
	}
	var policy SecurityPolicy
	if err := json.Unmarshal(data, &policy); err != nil {
		return SecurityPolicy{}, NewPolicyParseError("", err)
	}
	return policy, nil
}
