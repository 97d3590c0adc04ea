package config

// Schedule cadences. The evaluator treats anything else as daily and warns.
const (
	ScheduleDaily    = "daily"
	ScheduleWeekly   = "weekly"
	ScheduleBiweekly = "biweekly"
	ScheduleMonthly  = "monthly"
)

// Behavior modes.
const (
	BehaviorBackupThenUpdate = "backup_then_update"
	BehaviorBackupOnly       = "backup_only"
	BehaviorUpdateOnly       = "update_only"
)

// ExcludeAllVolumes is the sentinel in exclude_volumes meaning "archive only
// the top-level descriptor files".
const ExcludeAllVolumes = "ALL"

// Policy is the fully resolved per-workload policy. Every field is populated:
// consumers never have to re-apply defaults.
type Policy struct {
	Retention       int
	Schedule        string
	Behavior        string
	BackupCompose   bool
	ExcludeVolumes  []string
	ExcludePatterns []string
}

// ExcludesAllVolumes reports whether the ALL sentinel is present.
func (p Policy) ExcludesAllVolumes() bool {
	for _, v := range p.ExcludeVolumes {
		if v == ExcludeAllVolumes {
			return true
		}
	}
	return false
}

// ResolvePolicy merges the global defaults with the named workload's
// overrides. Overrides win field-wise; exclude patterns are the union of the
// global defaults and the workload's own.
func (c *Config) ResolvePolicy(workload string) Policy {
	p := Policy{
		Retention:     c.Global.Backup.DefaultRetention,
		Schedule:      c.Global.Backup.DefaultSchedule,
		Behavior:      c.Global.Update.DefaultBehavior,
		BackupCompose: true,
	}

	p.ExcludePatterns = append(p.ExcludePatterns, c.Global.Backup.DefaultExcludePatterns...)

	o, ok := c.Workloads[workload]
	if !ok {
		return p
	}

	if o.Retention != nil {
		p.Retention = *o.Retention
	}
	if o.Schedule != nil {
		p.Schedule = *o.Schedule
	}
	if o.Behavior != nil {
		p.Behavior = *o.Behavior
	}
	if o.BackupCompose != nil {
		p.BackupCompose = *o.BackupCompose
	}
	p.ExcludeVolumes = append(p.ExcludeVolumes, o.ExcludeVolumes...)
	p.ExcludePatterns = append(p.ExcludePatterns, o.ExcludePatterns...)

	return p
}
