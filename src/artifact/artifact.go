// Package artifact defines the backup artifact naming scheme. The filename is
// the only persisted record of a backup: host, workload and timestamp are all
// encoded in it, and the fixed-width timestamp makes lexicographic order match
// chronological order.
package artifact

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// Suffix all artifacts carry.
	Suffix = ".tar.gz"

	nameLayout  = "20060102-150405"
	parseLayout = "20060102150405"
)

// Info is an artifact filename taken apart.
type Info struct {
	Name      string
	Host      string
	Workload  string
	Timestamp time.Time
}

// Name builds the artifact filename for a (host, workload) pair at t.
func Name(host, workload string, t time.Time) string {
	return fmt.Sprintf("%s-%s-%s%s", host, workload, t.Format(nameLayout), Suffix)
}

// Parse splits an artifact filename into its parts. The rule mirrors the
// naming scheme: first hyphen-separated token is the host, the last two are
// date and time, everything between is the workload name, which may itself
// contain hyphens. Hostnames containing hyphens are therefore misattributed;
// callers accept this (the grouping is only as good as the naming discipline).
func Parse(name string) (Info, error) {
	if !strings.HasSuffix(name, Suffix) {
		return Info{}, errors.Errorf("artifact %q: missing %s suffix", name, Suffix)
	}

	stem := strings.TrimSuffix(name, Suffix)
	parts := strings.Split(stem, "-")
	if len(parts) < 4 {
		return Info{}, errors.Errorf("artifact %q: want host-workload-date-time", name)
	}

	ts, err := time.ParseInLocation(parseLayout, parts[len(parts)-2]+parts[len(parts)-1], time.Local)
	if err != nil {
		return Info{}, errors.Wrapf(err, "artifact %q: bad timestamp", name)
	}

	return Info{
		Name:      name,
		Host:      parts[0],
		Workload:  strings.Join(parts[1:len(parts)-2], "-"),
		Timestamp: ts,
	}, nil
}

// BelongsTo reports whether name is an artifact of the given pair.
func BelongsTo(name, host, workload string) bool {
	return strings.HasPrefix(name, host+"-"+workload+"-") && strings.HasSuffix(name, Suffix)
}
