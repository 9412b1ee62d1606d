// dossier.go: destination dossier-type determination and source-system tagging
package mapping

import "strings"

// DossierType is the coded destination classification of a document or folder.
// The numeric values are the destination system's dossier type codes.
type DossierType int

const (
	DossierUnknown        DossierType = 0
	DossierAccountPackage DossierType = 300
	DossierClientPL       DossierType = 400
	DossierClientFL       DossierType = 500
	DossierDeposit        DossierType = 700

	// DossierClientFLorPL marks an ambiguous "FL / PL" dossier description
	// whose resolution is deferred to the client segment.
	DossierClientFLorPL DossierType = 999
)

func (d DossierType) String() string {
	switch d {
	case DossierAccountPackage:
		return "AccountPackage"
	case DossierClientPL:
		return "ClientPL"
	case DossierClientFL:
		return "ClientFL"
	case DossierDeposit:
		return "Deposit"
	case DossierClientFLorPL:
		return "ClientFLorPL"
	default:
		return "Unknown"
	}
}

// Prefix returns the dossier id prefix for the destination type.
func (d DossierType) Prefix() string {
	switch d {
	case DossierAccountPackage:
		return "ACC"
	case DossierClientPL:
		return "LE"
	case DossierClientFL:
		return "PI"
	case DossierDeposit:
		return "DE"
	default:
		return ""
	}
}

// TypeForPrefix maps a dossier id prefix back to its destination type.
func TypeForPrefix(prefix string) DossierType {
	switch strings.ToUpper(prefix) {
	case "ACC":
		return DossierAccountPackage
	case "LE", "PL":
		return DossierClientPL
	case "PI", "FL":
		return DossierClientFL
	case "DE", "D":
		return DossierDeposit
	default:
		return DossierUnknown
	}
}

// accountPackageCodes are the document type codes always routed to the
// account package dossier, regardless of dossier description.
var accountPackageCodes = map[string]bool{
	"00834": true,
	"00835": true,
	"00868": true,
}

// Dossier description phrases, matched case-insensitively.
const (
	depositPhrase        = "depozit"
	accountPackagePhrase = "paket račun"
	flOrPLPhrase         = "fl / pl"
)

// flSegments and plSegments map client segment codes to a client dossier type.
var (
	flSegments = map[string]bool{"PI": true, "FL": true, "RETAIL": true}
	plSegments = map[string]bool{"LE": true, "PL": true, "SME": true, "CORPORATE": true}
)

// DetermineDestinationDossierType evaluates the destination rules in priority
// order, first match wins:
//  1. deposit dossier description -> Deposit
//  2. account-package document code, or account-package phrase in the dossier
//     description -> AccountPackage
//  3. client segment code -> ClientFL / ClientPL
//  4. dossier description heuristics -> ClientFL / ClientPL / ClientFLorPL
//  5. Unknown
//
// A ClientFLorPL result still needs ResolveFLorPL with the client segment.
func DetermineDestinationDossierType(tipDokumenta, tipDosijea, clientSegment string) DossierType {
	desc := strings.ToLower(tipDosijea)

	if strings.Contains(desc, depositPhrase) {
		return DossierDeposit
	}

	if accountPackageCodes[tipDokumenta] || strings.Contains(desc, accountPackagePhrase) {
		return DossierAccountPackage
	}

	if t := typeForSegment(clientSegment); t != DossierUnknown {
		return t
	}

	return DetectClientTypeFromDescription(tipDosijea)
}

// DetectClientTypeFromDescription classifies a dossier description as FL, PL
// or the ambiguous FL-or-PL, without consulting the client segment.
func DetectClientTypeFromDescription(tipDosijea string) DossierType {
	desc := strings.ToLower(tipDosijea)
	switch {
	case strings.Contains(desc, flOrPLPhrase):
		return DossierClientFLorPL
	case strings.Contains(desc, " fl"):
		return DossierClientFL
	case strings.Contains(desc, " pl"):
		return DossierClientPL
	default:
		return DossierUnknown
	}
}

// ResolveFLorPL resolves the ambiguous FL-or-PL classification using the
// client segment. An unrecognized segment stays Unknown.
func ResolveFLorPL(clientSegment string) DossierType {
	return typeForSegment(clientSegment)
}

// DetermineAndResolve runs the full determination and resolves any ambiguous
// FL-or-PL result through the client segment.
func DetermineAndResolve(tipDokumenta, tipDosijea, clientSegment string) DossierType {
	t := DetermineDestinationDossierType(tipDokumenta, tipDosijea, clientSegment)
	if t == DossierClientFLorPL {
		return ResolveFLorPL(clientSegment)
	}
	return t
}

// SourceFor derives the source-system tag from the destination dossier type.
func SourceFor(t DossierType) string {
	if t == DossierDeposit {
		return "DUT"
	}
	return "Heimdall"
}

func typeForSegment(clientSegment string) DossierType {
	segment := strings.ToUpper(strings.TrimSpace(clientSegment))
	switch {
	case flSegments[segment]:
		return DossierClientFL
	case plSegments[segment]:
		return DossierClientPL
	default:
		return DossierUnknown
	}
}
