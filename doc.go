// Package goextensions provides an extension engine for Go applications:
// discovery of third-party capability packages, security-policy-driven
// validation, a global function-name registry, and routed execution across
// two extension kinds (out-of-process packages and in-process code artifacts).
//
// Key Features:
//   - Manifest-based discovery of package extension archives
//   - Filename-convention discovery of in-process code artifacts
//   - Security gating: trust bypass, signature pinning, isolation, permissions
//   - Approval gate for functions requiring external consent
//   - JSON-schema validation of declared function parameters
//   - Hot-reloadable security policy with audit trail
//   - Per-invocation timeouts that never affect other in-flight calls
//
// Basic Usage:
//
//	engine, err := goextensions.NewEngine(goextensions.EngineConfig{
//		PackageDirs:  []string{"/var/lib/extensions/packages"},
//		ArtifactDirs: []string{"/var/lib/extensions/artifacts"},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Shutdown()
//
//	// Discover and register every installed extension
//	engine.DiscoverAndRegister(ctx)
//
//	// Invoke by globally-scoped function name
//	result := engine.Execute(ctx, "weather.today", map[string]any{"city": "Rome"})
//	if result.IsSuccess() {
//		fmt.Println(result.Payload)
//	}
//
// Every public entry point returns one of four closed result variants
// (success, error, permission denied, approval required); no call panics
// or leaks an error past the engine boundary.
//
// Security:
// Package extensions are verified against the host's installed-package
// index with pinned SHA-256 certificate digests and an execution-identity
// isolation check; code artifacts are verified by forcing a full read of
// every archive entry. All checks are policy-driven and the policy can be
// replaced at runtime or watched from a file.
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0
package goextensions
