package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			Backup: BackupConfig{
				DefaultRetention:       4,
				DefaultSchedule:        ScheduleDaily,
				DefaultExcludePatterns: []string{"*.log"},
			},
			Update: UpdateConfig{DefaultBehavior: BehaviorBackupThenUpdate},
		},
		Workloads: map[string]WorkloadOverride{},
	}
}

func TestResolvePolicyDefaults(t *testing.T) {
	pol := testConfig().ResolvePolicy("unknown")

	assert.Equal(t, 4, pol.Retention)
	assert.Equal(t, ScheduleDaily, pol.Schedule)
	assert.Equal(t, BehaviorBackupThenUpdate, pol.Behavior)
	assert.True(t, pol.BackupCompose)
	assert.Empty(t, pol.ExcludeVolumes)
	assert.Equal(t, []string{"*.log"}, pol.ExcludePatterns)
}

func TestResolvePolicyOverridesWin(t *testing.T) {
	cfg := testConfig()
	retention := 8
	schedule := ScheduleWeekly
	behavior := BehaviorBackupOnly
	noCompose := false
	cfg.Workloads["joplin"] = WorkloadOverride{
		Retention:       &retention,
		Schedule:        &schedule,
		Behavior:        &behavior,
		BackupCompose:   &noCompose,
		ExcludeVolumes:  []string{"cache"},
		ExcludePatterns: []string{"*.tmp"},
	}

	pol := cfg.ResolvePolicy("joplin")

	assert.Equal(t, 8, pol.Retention)
	assert.Equal(t, ScheduleWeekly, pol.Schedule)
	assert.Equal(t, BehaviorBackupOnly, pol.Behavior)
	assert.False(t, pol.BackupCompose)
	assert.Equal(t, []string{"cache"}, pol.ExcludeVolumes)
	assert.Equal(t, []string{"*.log", "*.tmp"}, pol.ExcludePatterns)
}

func TestResolvePolicyZeroRetentionOverride(t *testing.T) {
	cfg := testConfig()
	zero := 0
	cfg.Workloads["scratch"] = WorkloadOverride{Retention: &zero}

	assert.Equal(t, 0, cfg.ResolvePolicy("scratch").Retention)
}

func TestExcludesAllVolumes(t *testing.T) {
	assert.True(t, Policy{ExcludeVolumes: []string{"data", ExcludeAllVolumes}}.ExcludesAllVolumes())
	assert.False(t, Policy{ExcludeVolumes: []string{"data"}}.ExcludesAllVolumes())
}
