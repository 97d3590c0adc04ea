package fleet

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Summary notifications mirror the run outcome: failures raise the priority
// and swap the tags so the push stands out on the operator's phone.

func (c *Coordinator) notifyBackupSummary(stats Stats) {
	if !c.Notifier.Enabled() {
		return
	}

	var title, priority, tags string
	switch {
	case stats.BackupsFailed > 0:
		priority = "high"
		tags = "warning,floppy_disk,docker"
		title = fmt.Sprintf("Compose Manager: %d backed up, %d failed", stats.BackupsSucceeded, stats.BackupsFailed)
	case stats.BackupsSucceeded > 0:
		priority = "default"
		tags = "white_check_mark,floppy_disk,docker"
		title = fmt.Sprintf("Compose Manager: %d backups completed", stats.BackupsSucceeded)
	default:
		priority = "low"
		tags = "checkmark,floppy_disk,docker"
		title = "Compose Manager: All backups up-to-date"
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Backup complete\n")
	fmt.Fprintf(&body, "Workloads: %d (%d containers)\n", stats.Workloads, stats.Containers)
	fmt.Fprintf(&body, "Successful: %d\n", stats.BackupsSucceeded)
	if stats.BackupsFailed > 0 {
		fmt.Fprintf(&body, "Failed: %d\n", stats.BackupsFailed)
	}
	fmt.Fprintf(&body, "\nTotal size: %s", humanize.IBytes(uint64(stats.BackupBytes)))

	c.Notifier.Send(title, body.String(), priority, tags)
}

func (c *Coordinator) notifyUpdateSummary(stats Stats) {
	if !c.Notifier.Enabled() {
		return
	}

	var title, priority, tags string
	switch {
	case stats.UpdatesFailed > 0:
		priority = "high"
		tags = "warning,arrows_counterclockwise,docker"
		title = fmt.Sprintf("Compose Manager: %d updated, %d failed", stats.UpdatesSucceeded, stats.UpdatesFailed)
	case stats.UpdatesSucceeded > 0:
		priority = "default"
		tags = "white_check_mark,arrows_counterclockwise,docker"
		title = fmt.Sprintf("Compose Manager: %d updates applied", stats.UpdatesSucceeded)
	default:
		priority = "low"
		tags = "checkmark,docker"
		title = "Compose Manager: All up-to-date"
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Updates complete\n")
	fmt.Fprintf(&body, "Checked: %d workloads\n", stats.Workloads)
	fmt.Fprintf(&body, "Updated: %d\n", stats.UpdatesSucceeded)
	if stats.UpdatesFailed > 0 {
		fmt.Fprintf(&body, "Failed: %d\n", stats.UpdatesFailed)
	}
	if stats.UpdatesSkipped > 0 {
		fmt.Fprintf(&body, "Up-to-date: %d", stats.UpdatesSkipped)
	}

	c.Notifier.Send(title, body.String(), priority, tags)
}

func (c *Coordinator) notifyCleanup(removed int, freed int64) {
	if !c.Notifier.Enabled() {
		return
	}

	body := fmt.Sprintf("Old backups removed\nBackups removed: %d\nSpace freed: %s",
		removed, humanize.IBytes(uint64(freed)))

	c.Notifier.Send("Compose Manager: Cleanup complete", body, "low", "broom,floppy_disk")
}
