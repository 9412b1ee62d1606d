package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable() *Table {
	return NewTable([]Mapping{
		{
			Naziv:                   "GDPR Consent",
			NazivDokumenta:          "GDPR saglasnost",
			NazivDokumentaMigracija: "GDPR saglasnost - migracija",
			SifraDokumenta:          "00123",
			SifraDokumentaMigracija: "00124",
			TipDosijea:              "Dosije klijenta FL",
		},
		{
			Naziv:                   "Signature Card",
			NazivDokumenta:          "Karton deponovanih potpisa",
			NazivDokumentaMigracija: "Karton deponovanih potpisa",
			SifraDokumenta:          "00319",
			SifraDokumentaMigracija: PermanentActiveCode,
			PolitikaCuvanja:         "Nova verzija",
		},
		{
			Naziv:                   "Framework Agreement",
			NazivDokumentaMigracija: "Okvirni ugovor – migracija",
			SifraDokumenta:          "00455",
			SifraDokumentaMigracija: "00456",
			PolitikaCuvanja:         "Novi dokument",
		},
	})
}

func TestTableLookups(t *testing.T) {
	table := testTable()

	m, ok := table.LookupByName("gdpr SAGLASNOST")
	require.True(t, ok, "lookup must be case-insensitive over both name columns")
	assert.Equal(t, "00123", m.SifraDokumenta)

	m, ok = table.LookupByCode("00319")
	require.True(t, ok)
	assert.Equal(t, "Signature Card", m.Naziv)

	assert.Equal(t, "GDPR saglasnost - migracija", table.GetMigratedName("GDPR Consent"))
	assert.Equal(t, "00124", table.GetMigratedCode("00123"))

	// Unmapped values fall through unchanged.
	assert.Equal(t, "Unknown Document", table.GetMigratedName("Unknown Document"))
	assert.Equal(t, "99999", table.GetMigratedCode("99999"))
}

func TestTableFirstRowWinsOnCollision(t *testing.T) {
	table := NewTable([]Mapping{
		{Naziv: "Dup", SifraDokumenta: "001", SifraDokumentaMigracija: "100"},
		{Naziv: "dup", SifraDokumenta: "001", SifraDokumentaMigracija: "200"},
	})
	assert.Equal(t, "100", table.GetMigratedCode("001"))
	m, _ := table.LookupByName("DUP")
	assert.Equal(t, "100", m.SifraDokumentaMigracija)
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mappings.yaml")
	content := []byte(`mappings:
  - naziv: "GDPR Consent"
    nazivDokumenta: "GDPR saglasnost"
    nazivDokumentaMigracija: "GDPR saglasnost - migracija"
    sifraDokumenta: "00123"
    sifraDokumentaMigracija: "00124"
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	table, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	assert.True(t, table.WillReceiveMigrationSuffix("GDPR saglasnost"))

	_, err = LoadTable(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestHasMigrationSuffix(t *testing.T) {
	assert.True(t, HasMigrationSuffix("GDPR saglasnost - migracija"))
	assert.True(t, HasMigrationSuffix("Okvirni ugovor – migracija"), "en-dash variant must match")
	assert.True(t, HasMigrationSuffix("Neki dokument - migracija   "), "trailing spaces are ignored")
	assert.False(t, HasMigrationSuffix("GDPR saglasnost"))
	assert.False(t, HasMigrationSuffix("migracija u toku"))
}

func TestDetermineStatus(t *testing.T) {
	table := testTable()

	t.Run("retention rule disabled", func(t *testing.T) {
		d := NewStatusDeterminer(table, false)

		// Permanent-active sentinel wins over the retention policy.
		assert.Equal(t, StatusActive, d.DetermineStatus("Signature Card"))
		// Migration suffix marks the document inactive.
		assert.Equal(t, StatusInactive, d.DetermineStatus("GDPR saglasnost"))
		assert.Equal(t, StatusInactive, d.DetermineStatus("Framework Agreement"))
		// No mapping row means the document stays active.
		assert.Equal(t, StatusActive, d.DetermineStatus("Unknown Document"))
	})

	t.Run("retention rule enabled", func(t *testing.T) {
		d := NewStatusDeterminer(table, true)

		// Sentinel still outranks the retention policy.
		assert.Equal(t, StatusActive, d.DetermineStatus("Signature Card"))
		// "Novi dokument" retention policy now marks the document inactive
		// before the suffix rule is even consulted.
		assert.Equal(t, StatusInactive, d.DetermineStatus("Framework Agreement"))
	})
}

func TestDetermineDestinationDossierType(t *testing.T) {
	cases := []struct {
		name          string
		tipDokumenta  string
		tipDosijea    string
		clientSegment string
		want          DossierType
	}{
		{"deposit phrase wins", "00834", "Dosije depozita", "PI", DossierDeposit},
		{"account package by code", "00834", "Dosije klijenta FL", "PI", DossierAccountPackage},
		{"account package by phrase", "00001", "Paket račun dosije", "LE", DossierAccountPackage},
		{"segment FL", "00001", "", "RETAIL", DossierClientFL},
		{"segment PL", "00001", "", "CORPORATE", DossierClientPL},
		{"description FL", "00001", "Dosije klijenta FL", "", DossierClientFL},
		{"description PL", "00001", "Dosije klijenta PL", "", DossierClientPL},
		{"ambiguous description", "00001", "Dosije klijenta FL / PL", "", DossierClientFLorPL},
		{"nothing matches", "00001", "", "", DossierUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetermineDestinationDossierType(tc.tipDokumenta, tc.tipDosijea, tc.clientSegment)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDetectClientTypeFromDescriptionIgnoresSegment(t *testing.T) {
	// The raw description classifier reports the ambiguity even when the
	// segment could resolve it.
	assert.Equal(t, DossierClientFLorPL, DetectClientTypeFromDescription("Dosije klijenta FL / PL"))
	assert.Equal(t, DossierClientPL, ResolveFLorPL("LE"))
	assert.Equal(t, DossierClientPL, DetermineAndResolve("00001", "Dosije klijenta FL / PL", "LE"))
	assert.Equal(t, DossierUnknown, DetermineAndResolve("00001", "Dosije klijenta FL / PL", "???"))
}

func TestSourceFor(t *testing.T) {
	assert.Equal(t, "DUT", SourceFor(DossierDeposit))
	assert.Equal(t, "Heimdall", SourceFor(DossierClientFL))
	assert.Equal(t, "Heimdall", SourceFor(DossierAccountPackage))
}

func TestConvertToNewFormat(t *testing.T) {
	assert.Equal(t, "PI-102206", ConvertToNewFormat("PI102206"))
	assert.Equal(t, "LE-55001", ConvertToNewFormat("LE55001"))

	// Idempotent: converting twice gives the same result.
	once := ConvertToNewFormat("PI102206")
	assert.Equal(t, once, ConvertToNewFormat(once))

	// Ids without a letter prefix pass through untouched.
	assert.Equal(t, "102206", ConvertToNewFormat("102206"))
	assert.Equal(t, "", ConvertToNewFormat(""))
}

func TestConvertForTargetType(t *testing.T) {
	assert.Equal(t, "ACC-102206", ConvertForTargetType("PI102206", DossierAccountPackage))
	assert.Equal(t, "ACC-102206", ConvertForTargetType("PI-102206", DossierAccountPackage))
	// Matching prefix only gains the hyphen.
	assert.Equal(t, "PI-102206", ConvertForTargetType("PI102206", DossierClientFL))
	// Unknown target keeps the original prefix.
	assert.Equal(t, "PI-102206", ConvertForTargetType("PI102206", DossierUnknown))
}

func TestDepositDossierIdRoundTrip(t *testing.T) {
	id, err := CreateDepositDossierId("102206", "TD01", "35-420-0001")
	require.NoError(t, err)
	assert.Equal(t, "DE-102206-TD01_35-420-0001", id)

	coreID, productType, contractNumber, err := ParseDepositDossierId(id)
	require.NoError(t, err)
	assert.Equal(t, "102206", coreID)
	assert.Equal(t, "TD01", productType)
	assert.Equal(t, "35-420-0001", contractNumber)
}

func TestDepositDossierIdValidation(t *testing.T) {
	_, err := CreateDepositDossierId("10-2206", "TD01", "35")
	assert.Error(t, err, "coreId with a hyphen would break parsing")

	_, err = CreateDepositDossierId("102206", "TD_01", "35")
	assert.Error(t, err, "productType with an underscore would break parsing")

	_, err = CreateDepositDossierId("", "TD01", "35")
	assert.Error(t, err)

	_, _, _, err = ParseDepositDossierId("PI-102206")
	assert.Error(t, err)
	_, _, _, err = ParseDepositDossierId("DE-102206")
	assert.Error(t, err)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Djordje Saric", NormalizeName("Đorđe Šarić"))
	assert.Equal(t, "Zivkovic Cedomir", NormalizeName("Živković  Čedomir"))
	assert.Equal(t, "Plain Name", NormalizeName("  Plain   Name  "))
}

func TestSanitizePathSegment(t *testing.T) {
	assert.Equal(t, "Saric_Petrovic", SanitizePathSegment("Šarić/Petrović"))
	assert.Equal(t, "Dosije_ 2024", SanitizePathSegment("Dosije: 2024"))
}
