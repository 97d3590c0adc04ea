// Package retention garbage-collects old artifacts in the backup root,
// keeping the newest N per (host, workload) group.
package retention

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"compose-manager/src/artifact"
	"compose-manager/src/config"
)

// Collector deletes artifacts beyond each group's retention depth.
type Collector struct {
	BackupRoot string
	// Resolve maps a workload name to its policy; retention overrides apply
	// even to groups whose workload no longer exists on any host.
	Resolve func(workload string) config.Policy
	Logger  logrus.FieldLogger
}

func NewCollector(backupRoot string, resolve func(string) config.Policy, logger logrus.FieldLogger) *Collector {
	return &Collector{BackupRoot: backupRoot, Resolve: resolve, Logger: logger}
}

type pair struct {
	host, workload string
}

// Collect scans the backup root, groups artifacts by (host, workload), and
// removes everything past each group's retention depth, newest first kept.
// Filenames that fail to parse are skipped with a warning, never deleted.
func (c *Collector) Collect() (removed int, freed int64, err error) {
	entries, err := os.ReadDir(c.BackupRoot)
	if err != nil {
		return 0, 0, errors.Wrap(err, "scan backup root")
	}

	groups := map[pair][]artifact.Info{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, perr := artifact.Parse(entry.Name())
		if perr != nil {
			if filepath.Ext(entry.Name()) == ".gz" {
				c.Logger.WithField("file", entry.Name()).Warn("Could not parse backup filename, leaving it untouched")
			}
			continue
		}
		key := pair{info.Host, info.Workload}
		groups[key] = append(groups[key], info)
	}

	for _, key := range sortedKeys(groups) {
		backups := groups[key]
		retention := c.Resolve(key.workload).Retention

		// Newest first; name order is chronological order by construction.
		sort.Slice(backups, func(i, j int) bool { return backups[i].Name > backups[j].Name })

		if len(backups) <= retention {
			continue
		}
		excess := backups[retention:]

		c.Logger.WithFields(logrus.Fields{
			"host": key.host, "workload": key.workload, "count": len(excess),
		}).Info("Removing old backups")

		for _, old := range excess {
			path := filepath.Join(c.BackupRoot, old.Name)
			fi, serr := os.Stat(path)
			if serr != nil {
				c.Logger.WithError(serr).WithField("file", old.Name).Warn("Could not stat old backup")
				continue
			}
			if rerr := os.Remove(path); rerr != nil {
				c.Logger.WithError(rerr).WithField("file", old.Name).Warn("Could not remove old backup")
				continue
			}
			removed++
			freed += fi.Size()
			c.Logger.WithField("file", old.Name).Info("Removed old backup")
		}
	}

	if removed > 0 {
		c.Logger.WithFields(logrus.Fields{
			"removed": removed, "freed": humanize.IBytes(uint64(freed)),
		}).Info("Cleanup complete")
	} else {
		c.Logger.Info("No old backups to remove")
	}

	return removed, freed, nil
}

// Group is one (host, workload) artifact group, for the status view.
type Group struct {
	Host       string
	Workload   string
	Artifacts  []artifact.Info // newest first
	TotalBytes int64
}

// Groups lists the artifact groups currently in the backup root, newest
// artifact first within each group. Unparseable filenames are ignored.
func (c *Collector) Groups() ([]Group, error) {
	entries, err := os.ReadDir(c.BackupRoot)
	if err != nil {
		return nil, errors.Wrap(err, "scan backup root")
	}

	byPair := map[pair]*Group{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, perr := artifact.Parse(entry.Name())
		if perr != nil {
			continue
		}
		key := pair{info.Host, info.Workload}
		g, ok := byPair[key]
		if !ok {
			g = &Group{Host: info.Host, Workload: info.Workload}
			byPair[key] = g
		}
		g.Artifacts = append(g.Artifacts, info)
		if fi, serr := os.Stat(filepath.Join(c.BackupRoot, info.Name)); serr == nil {
			g.TotalBytes += fi.Size()
		}
	}

	groups := make([]Group, 0, len(byPair))
	for _, key := range sortedKeys(byPair) {
		g := byPair[key]
		sort.Slice(g.Artifacts, func(i, j int) bool { return g.Artifacts[i].Name > g.Artifacts[j].Name })
		groups = append(groups, *g)
	}
	return groups, nil
}

func sortedKeys[V any](m map[pair]V) []pair {
	keys := make([]pair, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].host != keys[j].host {
			return keys[i].host < keys[j].host
		}
		return keys[i].workload < keys[j].workload
	})
	return keys
}
