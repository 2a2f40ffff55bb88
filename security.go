// security.go: Security manager enforcing the extension gating policy
//
// This file implements descriptor validation against the active
// SecurityPolicy: trust bypass, signature verification, isolation
// enforcement and per-function permission checks. Host facilities the
// checks depend on (installed-package metadata, granted permissions) sit
// behind small interfaces so the manager never touches platform APIs
// directly.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/agilira/argus"
	"github.com/agilira/go-timecache"
)

// InstalledPackage is the host's metadata record for one installed package.
//
// SigningCerts holds the package's signing certificates in verification
// precedence order: the current contents-signer set first, then the signing
// history. The security manager only ever digests the first entry.
type InstalledPackage struct {
	Name         string
	SigningCerts [][]byte
	UID          int
}

// PackageIndex exposes the host's installed-package state to the security
// manager. Implementations wrap the platform package manager.
//
// PackageInfo returns an error when the package is not installed, and a nil
// record when the package exists but its metadata cannot be read; the two
// produce distinct failure reasons.
type PackageIndex interface {
	PackageInfo(name string) (*InstalledPackage, error)
	HostUID() int
}

// PermissionChecker probes whether a permission is currently granted to the
// host. Grants can change between calls (the user may grant a permission
// after a denial), so results are never cached.
type PermissionChecker interface {
	Granted(permission string) bool
}

// SecurityStats tracks security evaluation counters.
type SecurityStats struct {
	Validations    int64     `json:"validations"`
	Passed         int64     `json:"passed"`
	Failed         int64     `json:"failed"`
	Skipped        int64     `json:"skipped"`
	PolicyReloads  int64     `json:"policy_reloads"`
	LastValidation time.Time `json:"last_validation"`
}

// SecurityManager validates descriptors and function permissions against the
// active policy.
//
// The policy is shared, swappable configuration: UpdatePolicy replaces it by
// reference under the manager's lock, and every evaluation snapshots the
// current reference at its start. A Failed result is final for that call
// only; the next call re-evaluates from scratch because the policy, the
// granted permissions or the package state may all have changed.
type SecurityManager struct {
	mutex       sync.RWMutex
	policy      SecurityPolicy
	packages    PackageIndex
	permissions PermissionChecker
	logger      Logger

	auditLogger *argus.AuditLogger

	statsMutex sync.Mutex
	stats      SecurityStats
}

// NewSecurityManager creates a security manager bound to the host's package
// index and permission checker.
func NewSecurityManager(policy SecurityPolicy, packages PackageIndex, permissions PermissionChecker, logger Logger) *SecurityManager {
	if logger == nil {
		logger = DefaultLogger()
	}
	return &SecurityManager{
		policy:      policy,
		packages:    packages,
		permissions: permissions,
		logger:      logger,
	}
}

// Policy returns the currently active policy.
func (sm *SecurityManager) Policy() SecurityPolicy {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.policy
}

// UpdatePolicy replaces the active policy. Takes effect for the next
// evaluation only, never retroactively for calls already past their policy
// read.
func (sm *SecurityManager) UpdatePolicy(policy SecurityPolicy) {
	sm.mutex.Lock()
	sm.policy = policy
	sm.mutex.Unlock()

	sm.statsMutex.Lock()
	sm.stats.PolicyReloads++
	sm.statsMutex.Unlock()

	sm.logger.Info("Security policy updated",
		"enforce_signature", policy.EnforceSignature,
		"enforce_permissions", policy.EnforcePermissions,
		"enforce_isolation", policy.EnforceIsolation,
		"developer_mode", policy.DeveloperMode,
		"trusted_ids", len(policy.TrustedIDs))
}

// EnableAudit starts writing security events to an audit trail file.
func (sm *SecurityManager) EnableAudit(auditFile string) error {
	auditConfig := argus.AuditConfig{
		Enabled:       true,
		OutputFile:    auditFile,
		MinLevel:      argus.AuditInfo,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
	}

	auditor, err := argus.NewAuditLogger(auditConfig)
	if err != nil {
		return NewAuditError("failed to create audit logger", err)
	}

	sm.mutex.Lock()
	sm.auditLogger = auditor
	sm.mutex.Unlock()

	sm.logger.Info("Security audit logging enabled", "file", auditFile)
	return nil
}

// CloseAudit flushes and closes the audit trail, if one is active.
func (sm *SecurityManager) CloseAudit() error {
	sm.mutex.Lock()
	auditor := sm.auditLogger
	sm.auditLogger = nil
	sm.mutex.Unlock()

	if auditor == nil {
		return nil
	}
	if err := auditor.Close(); err != nil {
		return NewAuditError("failed to close audit logger", err)
	}
	return nil
}

// Stats returns a snapshot of the evaluation counters.
func (sm *SecurityManager) Stats() SecurityStats {
	sm.statsMutex.Lock()
	defer sm.statsMutex.Unlock()
	return sm.stats
}

// Validate runs the descriptor through the gating sequence:
//
//	trust bypass -> signature check -> isolation check -> passed
//
// The sequence short-circuits: a trust bypass skips everything, the first
// failing gate is terminal. Gates disabled by the policy are not applicable
// and are passed over.
func (sm *SecurityManager) Validate(desc *ExtensionDescriptor) SecurityCheckResult {
	policy := sm.Policy()
	result := sm.validateWithPolicy(desc, policy)
	sm.recordValidation(desc, result)
	return result
}

func (sm *SecurityManager) validateWithPolicy(desc *ExtensionDescriptor, policy SecurityPolicy) SecurityCheckResult {
	if reason, trusted := sm.trustBypass(desc, policy); trusted {
		return CheckSkip(reason)
	}

	if policy.EnforceSignature {
		if result := sm.checkSignature(desc); !result.Passed() {
			return result
		}
	}

	if policy.EnforceIsolation && desc.Type == PackageExtension {
		if result := sm.checkIsolation(desc); !result.Passed() {
			return result
		}
	}

	return CheckPass()
}

// trustBypass reports whether the descriptor is exempt from all checks.
func (sm *SecurityManager) trustBypass(desc *ExtensionDescriptor, policy SecurityPolicy) (string, bool) {
	switch {
	case policy.DeveloperMode:
		return "developer mode active", true
	case desc.Trusted:
		return "extension marked trusted", true
	case policy.IsTrusted(desc.ID):
		return "extension id in trusted set", true
	}
	return "", false
}

// checkSignature dispatches to the type-specific verification strategy.
func (sm *SecurityManager) checkSignature(desc *ExtensionDescriptor) SecurityCheckResult {
	if desc.Type == PackageExtension {
		return sm.verifyPackageSignature(desc)
	}
	return sm.verifyArtifactIntegrity(desc)
}

// verifyPackageSignature verifies the installed package's signing
// certificate against the descriptor's pinned digest, when one is
// configured.
func (sm *SecurityManager) verifyPackageSignature(desc *ExtensionDescriptor) SecurityCheckResult {
	if sm.packages == nil {
		return CheckFail("package index unavailable")
	}

	pkg, err := sm.packages.PackageInfo(desc.Package)
	if err != nil {
		return CheckFail(fmt.Sprintf("package not installed: %s", desc.Package))
	}
	if pkg == nil {
		return CheckFail(fmt.Sprintf("package metadata unavailable: %s", desc.Package))
	}
	if len(pkg.SigningCerts) == 0 {
		return CheckFail(fmt.Sprintf("no signing certificates for package: %s", desc.Package))
	}

	if desc.SigningCertHash == "" {
		// No pinned digest: any present signer passes.
		return CheckPass()
	}

	digest := sha256.Sum256(pkg.SigningCerts[0])
	actual := hex.EncodeToString(digest[:])
	if !strings.EqualFold(actual, desc.SigningCertHash) {
		return CheckFail(fmt.Sprintf("signing certificate mismatch: expected %s, actual %s",
			strings.ToLower(desc.SigningCertHash), actual))
	}

	return CheckPass()
}

// verifyArtifactIntegrity forces the code artifact's internal consistency
// check by fully consuming every entry. The archive reader surfaces any
// corruption or signature violation during the read.
func (sm *SecurityManager) verifyArtifactIntegrity(desc *ExtensionDescriptor) SecurityCheckResult {
	if desc.ArtifactPath == "" {
		return CheckFail("code extension has no artifact path")
	}

	if _, err := os.Stat(desc.ArtifactPath); err != nil {
		return CheckFail(fmt.Sprintf("artifact not accessible: %s", desc.ArtifactPath))
	}

	reader, err := zip.OpenReader(desc.ArtifactPath)
	if err != nil {
		return CheckFail(fmt.Sprintf("artifact unreadable: %v", err))
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			sm.logger.Warn("Failed to close artifact", "path", desc.ArtifactPath, "error", closeErr)
		}
	}()

	for _, entry := range reader.File {
		rc, err := entry.Open()
		if err != nil {
			return CheckFail(fmt.Sprintf("artifact entry %s unreadable: %v", entry.Name, err))
		}
		_, copyErr := io.Copy(io.Discard, rc)
		closeErr := rc.Close()
		if copyErr != nil {
			return CheckFail(fmt.Sprintf("artifact integrity violation in %s: %v", entry.Name, copyErr))
		}
		if closeErr != nil {
			return CheckFail(fmt.Sprintf("artifact integrity violation in %s: %v", entry.Name, closeErr))
		}
	}

	return CheckPass()
}

// checkIsolation requires the package extension's execution identity to
// differ from the host's.
func (sm *SecurityManager) checkIsolation(desc *ExtensionDescriptor) SecurityCheckResult {
	if sm.packages == nil {
		return CheckFail("package index unavailable")
	}

	pkg, err := sm.packages.PackageInfo(desc.Package)
	if err != nil || pkg == nil {
		return CheckFail(fmt.Sprintf("unable to resolve execution identity for package: %s", desc.Package))
	}
	if pkg.UID < 0 {
		return CheckFail(fmt.Sprintf("unable to resolve execution identity for package: %s", desc.Package))
	}
	if pkg.UID == sm.packages.HostUID() {
		return CheckFail("isolation violated: extension shares the host's execution identity")
	}

	return CheckPass()
}

// CheckPermissions checks each required permission in declaration order
// against the currently granted set. Skipped when the descriptor is trusted
// or permission enforcement is off; the first missing permission is
// terminal.
func (sm *SecurityManager) CheckPermissions(desc *ExtensionDescriptor, required []string) SecurityCheckResult {
	policy := sm.Policy()

	if reason, trusted := sm.trustBypass(desc, policy); trusted {
		return CheckSkip(reason)
	}
	if !policy.EnforcePermissions {
		return CheckSkip("permission enforcement disabled")
	}

	for _, permission := range required {
		if sm.permissions == nil || !sm.permissions.Granted(permission) {
			result := CheckFail(fmt.Sprintf("required permission not granted: %s", permission))
			sm.auditDenial(desc, "permission_denied", result.Reason)
			return result
		}
	}

	return CheckPass()
}

// recordValidation updates the counters and audits failures.
func (sm *SecurityManager) recordValidation(desc *ExtensionDescriptor, result SecurityCheckResult) {
	sm.statsMutex.Lock()
	sm.stats.Validations++
	switch result.Status {
	case CheckPassed:
		sm.stats.Passed++
	case CheckFailed:
		sm.stats.Failed++
	case CheckSkipped:
		sm.stats.Skipped++
	}
	sm.stats.LastValidation = timecache.CachedTime()
	sm.statsMutex.Unlock()

	if result.Status == CheckFailed {
		sm.logger.Warn("Extension validation failed",
			"extension_id", desc.ID,
			"type", desc.Type.String(),
			"reason", result.Reason)
		sm.auditDenial(desc, "validation_failed", result.Reason)
	}
}

// auditDenial writes a denial event to the audit trail, if one is active.
func (sm *SecurityManager) auditDenial(desc *ExtensionDescriptor, eventType, reason string) {
	sm.mutex.RLock()
	auditor := sm.auditLogger
	sm.mutex.RUnlock()

	if auditor == nil {
		return
	}

	auditor.LogSecurityEvent(eventType, "Extension security gate denial", map[string]any{
		"extension_id": desc.ID,
		"type":         desc.Type.String(),
		"reason":       reason,
	})
}
