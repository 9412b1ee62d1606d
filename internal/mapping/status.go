// status.go: document active/inactive determination, in strict priority order
package mapping

import "strings"

// Status is a document's activity state in the destination system.
type Status int

const (
	StatusActive Status = iota
	StatusInactive
)

func (s Status) String() string {
	if s == StatusInactive {
		return "INACTIVE"
	}
	return "ACTIVE"
}

// PermanentActiveCode is the migrated document code that is always Active,
// regardless of retention policy or name suffix.
const PermanentActiveCode = "00320"

// Migration suffixes on migrated document names. Both the ASCII hyphen and the
// en-dash variant occur in the reference table.
const (
	migrationSuffixHyphen = "- migracija"
	migrationSuffixDash   = "– migracija" // en-dash
)

// Retention policy values that mark a document Inactive when the retention
// rule is enabled.
const (
	retentionNewVersion  = "Nova verzija"
	retentionNewDocument = "Novi dokument"
)

// HasMigrationSuffix reports whether a migrated name ends with the migration
// suffix, accepting both hyphen variants.
func HasMigrationSuffix(name string) bool {
	trimmed := strings.TrimRight(name, " ")
	return strings.HasSuffix(trimmed, migrationSuffixHyphen) ||
		strings.HasSuffix(trimmed, migrationSuffixDash)
}

// StatusDeterminer decides a document's destination activity status from the
// mapping table.
type StatusDeterminer struct {
	table *Table

	// RetentionRuleEnabled toggles the retention-policy rule (priority 2).
	// The rule exists in the reference data but is pending business sign-off,
	// so it defaults to off.
	RetentionRuleEnabled bool
}

// NewStatusDeterminer creates a determiner over the given table.
func NewStatusDeterminer(table *Table, retentionRuleEnabled bool) *StatusDeterminer {
	return &StatusDeterminer{table: table, RetentionRuleEnabled: retentionRuleEnabled}
}

// DetermineStatus evaluates the rules in strict priority order, first match
// wins:
//  1. migrated code equals the permanent-active sentinel -> Active
//  2. retention policy is "Nova verzija" or "Novi dokument" -> Inactive
//     (only when the retention rule is enabled)
//  3. migrated name ends with the migration suffix -> Inactive
//  4. no mapping found -> Active
func (d *StatusDeterminer) DetermineStatus(docName string) Status {
	m, ok := d.table.LookupByName(docName)
	if !ok {
		return StatusActive
	}

	if m.SifraDokumentaMigracija == PermanentActiveCode {
		return StatusActive
	}

	if d.RetentionRuleEnabled &&
		(m.PolitikaCuvanja == retentionNewVersion || m.PolitikaCuvanja == retentionNewDocument) {
		return StatusInactive
	}

	if HasMigrationSuffix(m.NazivDokumentaMigracija) {
		return StatusInactive
	}
	return StatusActive
}
