package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Engine.DispatchBatchSize)
	assert.Equal(t, 8, cfg.Engine.DispatchWorkers)
	assert.Equal(t, 10*time.Minute, cfg.Engine.DispatchLease)
	assert.Equal(t, 30*time.Second, cfg.Webhook.Timeout)
}

func TestLoadDispatchLeaseOverride(t *testing.T) {
	t.Setenv("ENGINE_DISPATCH_LEASE", "20m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, cfg.Engine.DispatchLease)
}

func TestValidateRejectsShortDispatchLease(t *testing.T) {
	// A lease shorter than a single executor call invites double delivery
	// when a second dispatcher re-claims a still-executing job.
	t.Setenv("ENGINE_DISPATCH_LEASE", "10s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch lease")
}

func TestLoadAPIKeyHashes(t *testing.T) {
	t.Setenv("API_KEY_HASHES", " hash-a, hash-b ,,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"hash-a", "hash-b"}, cfg.Auth.APIKeyHashes)
}
