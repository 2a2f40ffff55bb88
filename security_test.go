// security_test.go: security manager validation and permission tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePackageIndex is an in-memory installed-package index.
type fakePackageIndex struct {
	packages map[string]*InstalledPackage
	hostUID  int
}

func (f *fakePackageIndex) PackageInfo(name string) (*InstalledPackage, error) {
	pkg, ok := f.packages[name]
	if !ok {
		return nil, fmt.Errorf("package %s not installed", name)
	}
	return pkg, nil
}

func (f *fakePackageIndex) HostUID() int { return f.hostUID }

// fakePermissions grants a fixed permission set.
type fakePermissions struct {
	granted map[string]bool
}

func (f *fakePermissions) Granted(permission string) bool {
	return f.granted[permission]
}

func testCert() []byte {
	return []byte("-----BEGIN CERTIFICATE-----\ntest-signer\n-----END CERTIFICATE-----")
}

func testCertDigest() string {
	digest := sha256.Sum256(testCert())
	return hex.EncodeToString(digest[:])
}

func packageIndexWith(pkg string, uid int) *fakePackageIndex {
	return &fakePackageIndex{
		hostUID: 1000,
		packages: map[string]*InstalledPackage{
			pkg: {Name: pkg, UID: uid, SigningCerts: [][]byte{testCert()}},
		},
	}
}

func packageDescriptor(id string) *ExtensionDescriptor {
	return &ExtensionDescriptor{
		ID:      id,
		Name:    id,
		Type:    PackageExtension,
		Version: 1,
		Package: id,
	}
}

func TestSecurityManager_TrustBypass(t *testing.T) {
	t.Run("developer_mode_skips_everything", func(t *testing.T) {
		policy := DefaultSecurityPolicy()
		policy.DeveloperMode = true
		// All enforcement flags stay on; developer mode must still win.
		sm := NewSecurityManager(policy, nil, nil, nil)

		result := sm.Validate(packageDescriptor("com.any"))
		assert.Equal(t, CheckSkipped, result.Status)
		assert.True(t, result.Passed())
	})

	t.Run("descriptor_trusted_flag", func(t *testing.T) {
		sm := NewSecurityManager(DefaultSecurityPolicy(), nil, nil, nil)
		desc := packageDescriptor("com.t")
		desc.Trusted = true

		result := sm.Validate(desc)
		assert.Equal(t, CheckSkipped, result.Status)
	})

	t.Run("trusted_id_set", func(t *testing.T) {
		policy := DefaultSecurityPolicy()
		policy.TrustedIDs = []string{"com.t"}
		sm := NewSecurityManager(policy, nil, nil, nil)

		result := sm.Validate(packageDescriptor("com.t"))
		assert.Equal(t, CheckSkipped, result.Status)

		result = sm.Validate(packageDescriptor("com.untrusted"))
		assert.Equal(t, CheckFailed, result.Status, "non-listed ids still hit the gates")
	})
}

func TestSecurityManager_PackageSignature(t *testing.T) {
	desc := packageDescriptor("com.pkg")

	t.Run("pinned_digest_matches_case_insensitive", func(t *testing.T) {
		desc := packageDescriptor("com.pkg")
		desc.SigningCertHash = strings.ToUpper(testCertDigest())

		policy := DefaultSecurityPolicy()
		policy.EnforceIsolation = false
		sm := NewSecurityManager(policy, packageIndexWith("com.pkg", 10100), nil, nil)

		result := sm.Validate(desc)
		assert.Equal(t, CheckPassed, result.Status)
	})

	t.Run("digest_mismatch_names_both_digests", func(t *testing.T) {
		desc := packageDescriptor("com.pkg")
		desc.SigningCertHash = strings.Repeat("ab", 32)

		policy := DefaultSecurityPolicy()
		policy.EnforceIsolation = false
		sm := NewSecurityManager(policy, packageIndexWith("com.pkg", 10100), nil, nil)

		result := sm.Validate(desc)
		require.Equal(t, CheckFailed, result.Status)
		assert.Contains(t, result.Reason, desc.SigningCertHash, "expected digest must appear in the reason")
		assert.Contains(t, result.Reason, testCertDigest(), "actual digest must appear in the reason")
	})

	t.Run("package_not_installed", func(t *testing.T) {
		sm := NewSecurityManager(DefaultSecurityPolicy(), &fakePackageIndex{hostUID: 1000}, nil, nil)

		result := sm.Validate(desc)
		require.Equal(t, CheckFailed, result.Status)
		assert.Contains(t, result.Reason, "not installed")
	})

	t.Run("missing_signer_info", func(t *testing.T) {
		index := &fakePackageIndex{
			hostUID:  1000,
			packages: map[string]*InstalledPackage{"com.pkg": {Name: "com.pkg", UID: 10100}},
		}
		sm := NewSecurityManager(DefaultSecurityPolicy(), index, nil, nil)

		result := sm.Validate(desc)
		require.Equal(t, CheckFailed, result.Status)
		assert.Contains(t, result.Reason, "no signing certificates")
	})

	t.Run("no_pinned_digest_any_signer_passes", func(t *testing.T) {
		policy := DefaultSecurityPolicy()
		policy.EnforceIsolation = false
		sm := NewSecurityManager(policy, packageIndexWith("com.pkg", 10100), nil, nil)

		result := sm.Validate(packageDescriptor("com.pkg"))
		assert.Equal(t, CheckPassed, result.Status)
	})
}

func TestSecurityManager_ArtifactIntegrity(t *testing.T) {
	policy := DefaultSecurityPolicy()
	policy.EnforceIsolation = false
	sm := NewSecurityManager(policy, nil, nil, nil)

	codeDescriptor := func(path string) *ExtensionDescriptor {
		return &ExtensionDescriptor{
			ID:           "code:com.example.Foo",
			Name:         "Foo",
			Type:         CodeExtension,
			Version:      1,
			ArtifactPath: path,
		}
	}

	t.Run("readable_archive_passes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "com.example.Foo.dex")
		writeArchive(t, path, map[string]string{"classes": "payload"})

		result := sm.Validate(codeDescriptor(path))
		assert.Equal(t, CheckPassed, result.Status)
	})

	t.Run("missing_artifact_fails", func(t *testing.T) {
		result := sm.Validate(codeDescriptor("/nonexistent/com.example.Foo.dex"))
		require.Equal(t, CheckFailed, result.Status)
		assert.Contains(t, result.Reason, "not accessible")
	})

	t.Run("empty_path_fails", func(t *testing.T) {
		result := sm.Validate(codeDescriptor(""))
		assert.Equal(t, CheckFailed, result.Status)
	})
}

func TestSecurityManager_Isolation(t *testing.T) {
	t.Run("shared_identity_fails", func(t *testing.T) {
		policy := DefaultSecurityPolicy()
		policy.EnforceSignature = false
		sm := NewSecurityManager(policy, packageIndexWith("com.pkg", 1000), nil, nil)

		result := sm.Validate(packageDescriptor("com.pkg"))
		require.Equal(t, CheckFailed, result.Status)
		assert.Contains(t, result.Reason, "isolation violated")
	})

	t.Run("distinct_identity_passes", func(t *testing.T) {
		policy := DefaultSecurityPolicy()
		policy.EnforceSignature = false
		sm := NewSecurityManager(policy, packageIndexWith("com.pkg", 10100), nil, nil)

		result := sm.Validate(packageDescriptor("com.pkg"))
		assert.Equal(t, CheckPassed, result.Status)
	})

	t.Run("unresolvable_identity_fails", func(t *testing.T) {
		policy := DefaultSecurityPolicy()
		policy.EnforceSignature = false
		sm := NewSecurityManager(policy, packageIndexWith("com.pkg", -1), nil, nil)

		result := sm.Validate(packageDescriptor("com.pkg"))
		require.Equal(t, CheckFailed, result.Status)
		assert.Contains(t, result.Reason, "execution identity")
	})
}

func TestSecurityManager_CheckPermissions(t *testing.T) {
	permissions := &fakePermissions{granted: map[string]bool{"net.fetch": true}}
	sm := NewSecurityManager(DefaultSecurityPolicy(), nil, permissions, nil)
	desc := packageDescriptor("com.pkg")

	t.Run("all_granted_passes", func(t *testing.T) {
		result := sm.CheckPermissions(desc, []string{"net.fetch"})
		assert.Equal(t, CheckPassed, result.Status)
	})

	t.Run("first_missing_permission_is_named", func(t *testing.T) {
		result := sm.CheckPermissions(desc, []string{"net.fetch", "fs.write", "fs.read"})
		require.Equal(t, CheckFailed, result.Status)
		assert.Contains(t, result.Reason, "fs.write")
		assert.NotContains(t, result.Reason, "fs.read", "the check stops at the first missing permission")
	})

	t.Run("enforcement_off_skips", func(t *testing.T) {
		policy := DefaultSecurityPolicy()
		policy.EnforcePermissions = false
		relaxed := NewSecurityManager(policy, nil, permissions, nil)

		result := relaxed.CheckPermissions(desc, []string{"fs.write"})
		assert.Equal(t, CheckSkipped, result.Status)
	})

	t.Run("trusted_descriptor_skips", func(t *testing.T) {
		trusted := packageDescriptor("com.pkg")
		trusted.Trusted = true

		result := sm.CheckPermissions(trusted, []string{"fs.write"})
		assert.Equal(t, CheckSkipped, result.Status)
	})
}

func TestSecurityManager_StatsAndPolicySwap(t *testing.T) {
	sm := NewSecurityManager(DefaultSecurityPolicy(), nil, nil, nil)
	desc := packageDescriptor("com.pkg")

	require.Equal(t, CheckFailed, sm.Validate(desc).Status)

	// A failed result is final for that call only: flipping the policy
	// changes the outcome of the next validation.
	policy := sm.Policy()
	policy.DeveloperMode = true
	sm.UpdatePolicy(policy)
	require.Equal(t, CheckSkipped, sm.Validate(desc).Status)

	stats := sm.Stats()
	assert.Equal(t, int64(2), stats.Validations)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Skipped)
	assert.False(t, stats.LastValidation.IsZero())
}
