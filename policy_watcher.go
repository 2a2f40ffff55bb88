// policy_watcher.go: hot reload of the security policy from a file
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"time"

	"github.com/agilira/argus"
)

// PolicyWatcherOptions tunes the Argus watcher behind WatchPolicyFile.
type PolicyWatcherOptions struct {
	// PollInterval is how often the policy file is checked for changes.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// CacheTTL bounds stat caching between polls.
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// AuditFile, when non-empty, enables an Argus audit trail of policy
	// file changes.
	AuditFile string `json:"audit_file" yaml:"audit_file"`
}

// DefaultPolicyWatcherOptions returns options tuned for security policy
// files: fast change detection, few watched files.
func DefaultPolicyWatcherOptions() PolicyWatcherOptions {
	return PolicyWatcherOptions{
		PollInterval: 500 * time.Millisecond,
		CacheTTL:     1 * time.Second,
	}
}

// PolicyWatcher applies policy file changes to an engine as they happen.
type PolicyWatcher struct {
	watcher *argus.Watcher
	path    string
	engine  *Engine
	logger  Logger
}

// WatchPolicyFile starts watching a JSON or YAML policy file and applies
// every parseable change through UpdateSecurityPolicy. Malformed
// revisions are logged and skipped; the previous policy stays active.
// The watcher is stopped by Shutdown.
func (e *Engine) WatchPolicyFile(path string, options PolicyWatcherOptions) error {
	e.watcherMutex.Lock()
	defer e.watcherMutex.Unlock()

	if e.shutdownFlag.Load() {
		return NewPolicyWatcherError("engine is shut down", nil)
	}
	if e.policyWatcher != nil {
		return NewPolicyWatcherError("policy watcher already running", nil)
	}

	pw := &PolicyWatcher{path: path, engine: e, logger: e.logger}

	argusConfig := argus.Config{
		PollInterval:    options.PollInterval,
		CacheTTL:        options.CacheTTL,
		MaxWatchedFiles: 10,
		ErrorHandler: func(err error, watchedPath string) {
			e.logger.Error("Policy file watching error",
				"path", watchedPath, "error", err)
		},
	}
	if options.AuditFile != "" {
		argusConfig.Audit = argus.AuditConfig{
			Enabled:       true,
			OutputFile:    options.AuditFile,
			MinLevel:      argus.AuditInfo,
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
		}
	}

	watcher, err := argus.UniversalConfigWatcherWithConfig(path, pw.handlePolicyChange, argusConfig)
	if err != nil {
		return NewPolicyWatcherError("failed to create policy watcher", err)
	}

	pw.watcher = watcher
	e.policyWatcher = pw

	e.logger.Info("Security policy file watching enabled",
		"file", path, "poll_interval", options.PollInterval)
	return nil
}

// handlePolicyChange is invoked by Argus with the parsed file content.
func (pw *PolicyWatcher) handlePolicyChange(config map[string]interface{}) {
	policy, err := policyFromWatcherConfig(config)
	if err != nil {
		pw.logger.Error("Ignoring malformed policy revision",
			"file", pw.path, "error", err)
		return
	}

	pw.engine.UpdateSecurityPolicy(policy)
	pw.logger.Info("Security policy reloaded from file", "file", pw.path)
}

// Stop halts file watching. The last applied policy stays active.
func (pw *PolicyWatcher) Stop() error {
	if pw.watcher == nil {
		return nil
	}
	if err := pw.watcher.Stop(); err != nil {
		return NewPolicyWatcherError("failed to stop policy watcher", err)
	}
	pw.watcher = nil
	return nil
}
