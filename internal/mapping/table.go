// Package mapping holds the pure decision logic of the migration: the
// document mapping reference table, document status determination, destination
// dossier-type rules and dossier id reformatting.
package mapping

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mapping is one row of the externally maintained document mapping table.
// Read-only during migration.
type Mapping struct {
	Naziv                   string `yaml:"naziv"`                   // original English name
	NazivDokumenta          string `yaml:"nazivDokumenta"`          // original Serbian name
	NazivDokumentaMigracija string `yaml:"nazivDokumentaMigracija"` // migrated name
	SifraDokumenta          string `yaml:"sifraDokumenta"`          // original code
	SifraDokumentaMigracija string `yaml:"sifraDokumentaMigracija"` // migrated code
	TipDosijea              string `yaml:"tipDosijea"`
	TipProizvoda            string `yaml:"tipProizvoda"`
	PolitikaCuvanja         string `yaml:"politikaCuvanja"` // retention policy
}

// Table provides case-insensitive lookup of mapping rows by document name or
// code.
type Table struct {
	rows   []Mapping
	byName map[string]*Mapping
	byCode map[string]*Mapping
}

// NewTable builds the lookup indexes over the given rows. Later rows never
// overwrite earlier ones on key collision.
func NewTable(rows []Mapping) *Table {
	t := &Table{
		rows:   rows,
		byName: make(map[string]*Mapping, len(rows)*2),
		byCode: make(map[string]*Mapping, len(rows)),
	}
	for i := range t.rows {
		row := &t.rows[i]
		for _, name := range []string{row.Naziv, row.NazivDokumenta} {
			key := lookupKey(name)
			if key == "" {
				continue
			}
			if _, exists := t.byName[key]; !exists {
				t.byName[key] = row
			}
		}
		key := lookupKey(row.SifraDokumenta)
		if key == "" {
			continue
		}
		if _, exists := t.byCode[key]; !exists {
			t.byCode[key] = row
		}
	}
	return t
}

// LoadTable reads the mapping table from a YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping table %s: %w", path, err)
	}
	var doc struct {
		Mappings []Mapping `yaml:"mappings"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing mapping table %s: %w", path, err)
	}
	return NewTable(doc.Mappings), nil
}

// Len returns the number of mapping rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// LookupByName finds a mapping row by either of its original names,
// case-insensitively.
func (t *Table) LookupByName(name string) (*Mapping, bool) {
	m, ok := t.byName[lookupKey(name)]
	return m, ok
}

// LookupByCode finds a mapping row by its original document code.
func (t *Table) LookupByCode(code string) (*Mapping, bool) {
	m, ok := t.byCode[lookupKey(code)]
	return m, ok
}

// GetMigratedName returns the migrated document name for an original name.
// Unmapped names are returned unchanged.
func (t *Table) GetMigratedName(name string) string {
	if m, ok := t.LookupByName(name); ok && m.NazivDokumentaMigracija != "" {
		return m.NazivDokumentaMigracija
	}
	return name
}

// GetMigratedCode returns the migrated document code for an original code.
// Unmapped codes are returned unchanged.
func (t *Table) GetMigratedCode(code string) string {
	if m, ok := t.LookupByCode(code); ok && m.SifraDokumentaMigracija != "" {
		return m.SifraDokumentaMigracija
	}
	return code
}

// WillReceiveMigrationSuffix reports whether the document's migrated name
// carries the "- migracija" suffix (either hyphen variant).
func (t *Table) WillReceiveMigrationSuffix(name string) bool {
	m, ok := t.LookupByName(name)
	if !ok {
		return false
	}
	return HasMigrationSuffix(m.NazivDokumentaMigracija)
}

func lookupKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
