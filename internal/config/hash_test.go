package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBlake3Hash_Deterministic(t *testing.T) {
	path := writeConfig(t, "service:\n  name: gw\n")

	h1, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	h2, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestVerifyIntegrity_NoManifestWarns(t *testing.T) {
	path := writeConfig(t, "service:\n  name: gw\n")

	res, err := VerifyIntegrity(path)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "config lock")
}

func TestVerifyIntegrity_LockThenVerify(t *testing.T) {
	path := writeConfig(t, "service:\n  name: gw\n")

	manifestPath, err := Lock(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), ChecksumFile), manifestPath)

	info, err := os.Stat(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	res, err := VerifyIntegrity(path)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestVerifyIntegrity_DetectsTampering(t *testing.T) {
	path := writeConfig(t, "service:\n  name: gw\n")
	_, err := Lock(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("service:\n  name: evil\n"), 0o644))

	res, err := VerifyIntegrity(path)
	require.NoError(t, err)
	assert.False(t, res.Passed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "hash mismatch")
}

func TestLoadChecksums_RejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ChecksumFile), []byte("version: 9\nhashes: {}\n"), 0o600))

	_, err := LoadChecksums(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported checksums version")
}
