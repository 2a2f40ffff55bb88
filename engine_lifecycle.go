// engine_lifecycle.go: engine shutdown
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

// Shutdown tears down every loaded code extension (teardown hook once
// each), releases every bound package executor connection and clears the
// registry. In-flight invocations are not drained: a call racing with
// shutdown may complete, or may fail with a not-found/unloaded error.
// Safe to call more than once.
func (e *Engine) Shutdown() {
	if !e.shutdownFlag.CompareAndSwap(false, true) {
		return
	}

	e.logger.Info("Shutting down extension engine",
		"extensions", e.registry.Size())

	e.watcherMutex.Lock()
	if e.policyWatcher != nil {
		if err := e.policyWatcher.Stop(); err != nil {
			e.logger.Warn("Failed to stop policy watcher", "error", err)
		}
		e.policyWatcher = nil
	}
	e.watcherMutex.Unlock()

	e.loader.UnloadAll()
	e.executor.UnbindAll()
	e.registry.Clear()

	if err := e.security.CloseAudit(); err != nil {
		e.logger.Warn("Failed to close security audit log", "error", err)
	}
}
