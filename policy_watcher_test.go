// policy_watcher_test.go: policy hot-reload application tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyWatcher_AppliesParseableRevisions(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	require.True(t, engine.Policy().DeveloperMode)

	watcher := &PolicyWatcher{path: "/etc/ext/policy.json", engine: engine, logger: NewTestLogger()}
	watcher.handlePolicyChange(map[string]interface{}{
		"developer_mode":    false,
		"enforce_signature": true,
		"trusted_ids":       []any{"com.t"},
	})

	policy := engine.Policy()
	assert.False(t, policy.DeveloperMode)
	assert.True(t, policy.EnforceSignature)
	assert.True(t, policy.IsTrusted("com.t"))
}

func TestPolicyWatcher_SkipsMalformedRevisions(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	before := engine.Policy()

	logger := NewTestLogger()
	watcher := &PolicyWatcher{path: "/etc/ext/policy.json", engine: engine, logger: logger}
	watcher.handlePolicyChange(map[string]interface{}{
		"trusted_ids": "not-a-list",
	})

	assert.Equal(t, before, engine.Policy(), "the previous policy stays active")
	assert.True(t, logger.HasMessage("ERROR", "Ignoring malformed policy revision"))
}

func TestPolicyWatcher_StopWithoutStart(t *testing.T) {
	watcher := &PolicyWatcher{}
	assert.NoError(t, watcher.Stop())
}

func TestPolicyWatcher_WatchAndShutdownDoNotRace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"developer_mode": true}`), 0o600))

	engine, _ := newTestEngine(t, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		// Losing the race to Shutdown is fine; the call just errors.
		_ = engine.WatchPolicyFile(path, DefaultPolicyWatcherOptions())
	}()
	go func() {
		defer wg.Done()
		engine.Shutdown()
	}()
	wg.Wait()

	engine.Shutdown()
	err := engine.WatchPolicyFile(path, DefaultPolicyWatcherOptions())
	require.Error(t, err, "a shut down engine must not start watching")
}
