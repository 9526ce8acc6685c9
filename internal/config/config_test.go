package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ASSIGNMENT_POLICY_PATH", "")
	t.Setenv("REDIS_DB", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultAssignment().SkillWeight, cfg.Assignment.SkillWeight)
	assert.Equal(t, 10, cfg.Assignment.MaxCapacity)
	assert.Equal(t, 0.05, cfg.Assignment.TieBand)
	assert.Equal(t, 3600, cfg.Cache.ModeratorSkillsTTLSeconds)
	assert.Equal(t, 1800, cfg.Cache.ModeratorListTTLSeconds)
	assert.Equal(t, 86400, cfg.Cache.UserSessionTTLSeconds)
	assert.Equal(t, 60, cfg.Cache.TicketCountsTTLSeconds)
	assert.Equal(t, 180, cfg.Cache.RecentTicketsTTLSeconds)
	assert.Equal(t, 300, cfg.Cache.TicketStatsTTLSeconds)
	assert.Equal(t, 2*time.Second, cfg.Cache.OpTimeout())
}

func TestLoadAssignmentPolicyFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `
skill_weight: 0.6
availability_weight: 0.2
performance_weight: 0.2
max_capacity: 5
tie_band: 0.1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("ASSIGNMENT_POLICY_PATH", path)
	t.Setenv("ASSIGNMENT_MAX_CAPACITY", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Assignment.SkillWeight)
	assert.Equal(t, 0.2, cfg.Assignment.AvailabilityWeight)
	assert.Equal(t, 0.1, cfg.Assignment.TieBand)
	assert.Equal(t, 7, cfg.Assignment.MaxCapacity, "env overrides yaml")
	assert.Equal(t, 24.0, cfg.Assignment.TargetResolutionHours, "unset yaml keys keep defaults")
}

func TestLoadRejectsBadPolicy(t *testing.T) {
	t.Setenv("ASSIGNMENT_POLICY_PATH", "")
	t.Setenv("ASSIGNMENT_SKILL_WEIGHT", "0.9")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1")
}

func TestLoadMissingPolicyFile(t *testing.T) {
	t.Setenv("ASSIGNMENT_POLICY_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestAssignmentValidate(t *testing.T) {
	policy := DefaultAssignment()
	require.NoError(t, policy.Validate())

	policy.MaxCapacity = 0
	assert.Error(t, policy.Validate())

	policy = DefaultAssignment()
	policy.TieBand = 1
	assert.Error(t, policy.Validate())

	policy = DefaultAssignment()
	policy.TargetResolutionHours = -1
	assert.Error(t, policy.Validate())
}
