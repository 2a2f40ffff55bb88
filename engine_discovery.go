// engine_discovery.go: discovery pass and descriptor registration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"context"
	"os"

	"github.com/agilira/go-timecache"
)

// DiscoverAndRegister runs one discovery pass and returns the number of
// descriptors registered. Only one pass runs at a time; concurrent
// callers wait on the discovery lock. Execution calls are never blocked
// by a running pass.
//
// Package descriptors are unconditionally re-registered (idempotent
// refresh). Code descriptors go through the loader on every pass: the
// loader initializes new ids once and hands back the cached enriched
// descriptor for ids already loaded, so repeat passes re-register the
// enriched view without re-initializing the instance. The bare scanner
// descriptor is registered when loading fails or no implementation is
// registered for the entry class.
func (e *Engine) DiscoverAndRegister(ctx context.Context) int {
	e.discoveryMutex.Lock()
	defer e.discoveryMutex.Unlock()

	e.ensureDirectories(e.config.PackageDirs)
	e.ensureDirectories(e.config.ArtifactDirs)

	registered := 0
	registered += e.registerPackages()
	registered += e.registerArtifacts(ctx)

	e.statsMutex.Lock()
	e.stats.DiscoveryRuns++
	e.stats.LastDiscovery = timecache.CachedTime()
	e.statsMutex.Unlock()

	e.logger.Info("Discovery pass complete",
		"registered", registered, "total", e.registry.Size())
	return registered
}

// ensureDirectories creates missing scan directories so a freshly
// provisioned host starts with a consistent layout.
func (e *Engine) ensureDirectories(dirs []string) {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			e.logger.Warn("Failed to create extension directory",
				"dir", dir, "error", err)
		}
	}
}

func (e *Engine) registerPackages() int {
	registered := 0
	for _, desc := range e.packageScanner.Scan(e.config.PackageDirs) {
		if err := e.registry.Register(desc); err != nil {
			e.logger.Warn("Failed to register package extension",
				"extension", desc.ID, "error", err)
			continue
		}
		registered++
	}
	return registered
}

func (e *Engine) registerArtifacts(ctx context.Context) int {
	registered := 0
	for _, desc := range e.artifactScanner.Scan(e.config.ArtifactDirs) {
		target := desc

		enriched, err := e.loader.Load(ctx, desc)
		switch {
		case err != nil:
			// Load failures keep the bare descriptor registered: the
			// extension is visible but absent from execution.
			e.logger.Warn("Failed to load code extension",
				"extension", desc.ID, "error", err)
		case enriched != nil:
			target = enriched
		default:
			e.logger.Debug("Code extension has no host implementation",
				"extension", desc.ID, "class", desc.EntryClass)
		}

		if err := e.registry.Register(target); err != nil {
			e.logger.Warn("Failed to register code extension",
				"extension", target.ID, "error", err)
			continue
		}
		registered++
	}
	return registered
}
