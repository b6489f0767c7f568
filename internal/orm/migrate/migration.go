// Package migrate provides migration management for database schema evolution:
// building the logical model from bean descriptors, diffing it against the
// current model, generating platform DDL and running the resulting scripts.
package migrate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/conduit-lang/ebean/internal/orm/migrate/ddl"
)

// Migration represents a single database migration
type Migration struct {
	Version   string    // Dotted version, "1.0", "1.1"
	Name      string    // Human-readable name
	Up        string    // SQL to apply
	Down      string    // SQL to rollback
	Drop      string    // Pending drops, applied in a later migration
	Applied   bool      // Whether this migration has been applied
	AppliedAt time.Time // When the migration was applied
	Breaking  bool      // Requires manual review
	DataLoss  bool      // May cause data loss
	Checksum  int64
}

// NewMigration creates a migration from the scripts of a DDL write
func NewMigration(version, name string, w *ddl.Write) *Migration {
	m := &Migration{Version: version, Name: name}
	if !w.IsApplyEmpty() {
		m.Up = w.ApplyScript()
	}
	if !w.IsApplyRollbackEmpty() {
		m.Down = w.RollbackScript()
	}
	if !w.IsDropEmpty() {
		m.Drop = w.DropScript()
	}
	m.Checksum = Checksum(m.Up)
	return m
}

// FileName returns the script file name, "1.1__add_customer.sql"
func (m *Migration) FileName() string {
	return m.Version + "__" + m.Name + ".sql"
}

// Checksum hashes a script for change detection after it has been applied
func Checksum(script string) int64 {
	return int64(xxh3.Hash([]byte(script)))
}

// ParseVersion splits a dotted version into its numeric parts
func ParseVersion(version string) ([]int, error) {
	if version == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidVersion)
	}
	parts := strings.Split(version, ".")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, version)
		}
		nums[i] = n
	}
	return nums, nil
}

// CompareVersions compares two dotted versions numerically, so "1.10" sorts after
// "1.9". Missing trailing parts count as zero. Unparseable versions compare as strings.
func CompareVersions(a, b string) int {
	pa, errA := ParseVersion(a)
	pb, errB := ParseVersion(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

// NextVersion returns the version following the highest existing one. With no
// existing versions it returns "1.0".
func NextVersion(existing []string) string {
	var highest string
	for _, v := range existing {
		if _, err := ParseVersion(v); err != nil {
			continue
		}
		if highest == "" || CompareVersions(v, highest) > 0 {
			highest = v
		}
	}
	if highest == "" {
		return "1.0"
	}

	parts, _ := ParseVersion(highest)
	if len(parts) == 1 {
		parts = append(parts, 0)
	}
	parts[len(parts)-1]++

	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = strconv.Itoa(p)
	}
	return strings.Join(strs, ".")
}

// SanitizeName lowercases a migration name and replaces anything outside
// [a-z0-9_] with an underscore
func SanitizeName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		return "migration"
	}
	return s
}
