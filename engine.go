// engine.go: extension engine core type, construction and policy surface
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-timecache"
)

// EngineConfig configures an Engine. Zero values get sensible defaults:
// a nil Policy becomes DefaultSecurityPolicy, a nil Logger the no-op
// logger, empty pattern lists the built-in defaults, and nil component
// fields the built-in implementations.
type EngineConfig struct {
	// PackageDirs are scanned for package extension archives.
	PackageDirs []string `json:"package_dirs" yaml:"package_dirs"`

	// ArtifactDirs are scanned for code extension artifacts.
	ArtifactDirs []string `json:"artifact_dirs" yaml:"artifact_dirs"`

	// PackagePatterns and ArtifactPatterns override the default filename
	// patterns of the built-in scanners.
	PackagePatterns  []string `json:"package_patterns" yaml:"package_patterns"`
	ArtifactPatterns []string `json:"artifact_patterns" yaml:"artifact_patterns"`

	// Policy is the initial security policy.
	Policy *SecurityPolicy `json:"policy" yaml:"policy"`

	// AuditFile enables security audit logging when non-empty.
	AuditFile string `json:"audit_file" yaml:"audit_file"`

	// Executor configures the built-in gRPC package executor. Ignored
	// when PackageExecutor is set.
	Executor GRPCExecutorConfig `json:"executor" yaml:"executor"`

	// Host integration points. Packages resolves installed package
	// metadata for signature and isolation checks; Permissions answers
	// runtime permission grants. Either may be nil, in which case the
	// corresponding checks fail closed.
	Packages    PackageIndex      `json:"-" yaml:"-"`
	Permissions PermissionChecker `json:"-" yaml:"-"`

	// Component overrides, used by hosts with custom transports and by
	// tests. Nil fields select the built-in implementations.
	PackageExecutor PackageExecutor `json:"-" yaml:"-"`
	ArtifactLoader  ArtifactLoader  `json:"-" yaml:"-"`
	PackageScanner  Scanner         `json:"-" yaml:"-"`
	ArtifactScanner Scanner         `json:"-" yaml:"-"`

	Logger Logger `json:"-" yaml:"-"`
}

// EngineStats is an observability snapshot of engine activity.
type EngineStats struct {
	DiscoveryRuns   int64     `json:"discovery_runs"`
	Executions      int64     `json:"executions"`
	Denials         int64     `json:"denials"`
	ApprovalsNeeded int64     `json:"approvals_needed"`
	Failures        int64     `json:"failures"`
	PolicyUpdates   int64     `json:"policy_updates"`
	LastDiscovery   time.Time `json:"last_discovery"`
	LastExecution   time.Time `json:"last_execution"`
}

// Engine orchestrates discovery, registration, security gating and
// routing of extension function calls. All public entry points return an
// ExtensionResult and never panic or leak errors past the boundary.
type Engine struct {
	config   EngineConfig
	logger   Logger
	registry *ExtensionRegistry
	security *SecurityManager

	executor PackageExecutor
	loader   ArtifactLoader

	packageScanner  Scanner
	artifactScanner Scanner

	// discoveryMutex serializes discovery passes; execution calls never
	// take it.
	discoveryMutex sync.Mutex

	// watcherMutex guards policyWatcher against a concurrent
	// WatchPolicyFile and Shutdown.
	watcherMutex  sync.Mutex
	policyWatcher *PolicyWatcher

	shutdownFlag atomic.Bool

	statsMutex sync.Mutex
	stats      EngineStats
}

// NewEngine creates an engine from the given configuration.
func NewEngine(config EngineConfig) (*Engine, error) {
	logger := config.Logger
	if logger == nil {
		logger = DefaultLogger()
	}

	policy := DefaultSecurityPolicy()
	if config.Policy != nil {
		policy = *config.Policy
	}

	security := NewSecurityManager(policy, config.Packages, config.Permissions, logger)
	if config.AuditFile != "" {
		if err := security.EnableAudit(config.AuditFile); err != nil {
			return nil, err
		}
	}

	executor := config.PackageExecutor
	if executor == nil {
		executor = NewGRPCPackageExecutor(config.Executor, logger)
	}

	loader := config.ArtifactLoader
	if loader == nil {
		loader = NewCodeExtensionLoader(logger)
	}

	packageScanner := config.PackageScanner
	if packageScanner == nil {
		packageScanner = NewPackageScanner(config.PackagePatterns, logger)
	}

	artifactScanner := config.ArtifactScanner
	if artifactScanner == nil {
		artifactScanner = NewArtifactScanner(config.ArtifactPatterns, logger)
	}

	return &Engine{
		config:          config,
		logger:          logger,
		registry:        NewExtensionRegistry(logger),
		security:        security,
		executor:        executor,
		loader:          loader,
		packageScanner:  packageScanner,
		artifactScanner: artifactScanner,
	}, nil
}

// Policy returns a copy of the active security policy.
func (e *Engine) Policy() SecurityPolicy {
	return e.security.Policy()
}

// UpdateSecurityPolicy replaces the active policy. The new policy takes
// effect for the next call; in-flight invocations keep the timeout they
// were routed with.
func (e *Engine) UpdateSecurityPolicy(policy SecurityPolicy) {
	e.security.UpdatePolicy(policy)

	e.statsMutex.Lock()
	e.stats.PolicyUpdates++
	e.statsMutex.Unlock()

	e.logger.Info("Security policy updated",
		"signature", policy.EnforceSignature,
		"permissions", policy.EnforcePermissions,
		"isolation", policy.EnforceIsolation,
		"developerMode", policy.DeveloperMode)
}

// Extensions returns a snapshot of every registered descriptor.
func (e *Engine) Extensions() []*ExtensionDescriptor {
	return e.registry.GetAll()
}

// HasFunction reports whether any registered extension provides the
// function name.
func (e *Engine) HasFunction(name string) bool {
	return e.registry.HasFunction(name)
}

// Stats returns a snapshot of engine activity counters.
func (e *Engine) Stats() EngineStats {
	e.statsMutex.Lock()
	defer e.statsMutex.Unlock()
	return e.stats
}

// SecurityStats returns a snapshot of the security manager's counters.
func (e *Engine) SecurityStats() SecurityStats {
	return e.security.Stats()
}

func (e *Engine) recordExecution(result ExtensionResult) {
	e.statsMutex.Lock()
	defer e.statsMutex.Unlock()

	e.stats.Executions++
	e.stats.LastExecution = timecache.CachedTime()
	switch result.Kind {
	case ResultPermissionDenied:
		e.stats.Denials++
	case ResultApprovalRequired:
		e.stats.ApprovalsNeeded++
	case ResultError:
		e.stats.Failures++
	}
}
