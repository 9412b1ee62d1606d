// id.go: dossier id reformatting between the legacy and destination systems
package mapping

import (
	"fmt"
	"strings"
	"unicode"
)

// splitDossierID separates a dossier id into its letter prefix and the rest.
// Handles both the legacy compact form ("PI102206") and the hyphenated
// destination form ("PI-102206").
func splitDossierID(id string) (prefix, rest string, ok bool) {
	i := 0
	for i < len(id) && unicode.IsLetter(rune(id[i])) {
		i++
	}
	if i == 0 || i == len(id) {
		return "", "", false
	}
	prefix = id[:i]
	rest = strings.TrimPrefix(id[i:], "-")
	if rest == "" {
		return "", "", false
	}
	return prefix, rest, true
}

// ConvertToNewFormat rewrites a legacy dossier id into the hyphenated
// destination form: "PI102206" -> "PI-102206". Already-hyphenated ids pass
// through unchanged, so the conversion is idempotent. Ids without a letter
// prefix are returned as-is.
func ConvertToNewFormat(id string) string {
	prefix, rest, ok := splitDossierID(id)
	if !ok {
		return id
	}
	return prefix + "-" + rest
}

// ConvertForTargetType rewrites a dossier id for the destination dossier
// type, remapping the prefix when the target differs from the source prefix:
// "PI102206" with target AccountPackage -> "ACC-102206".
func ConvertForTargetType(id string, target DossierType) string {
	prefix, rest, ok := splitDossierID(id)
	if !ok {
		return id
	}
	if targetPrefix := target.Prefix(); targetPrefix != "" && !strings.EqualFold(prefix, targetPrefix) {
		prefix = targetPrefix
	}
	return prefix + "-" + rest
}

// CreateDepositDossierId builds the extended deposit dossier id
// "DE-{coreId}-{productType}_{contractNumber}". The coreId must not contain a
// hyphen and the productType must not contain an underscore, otherwise the id
// could not be parsed back.
func CreateDepositDossierId(coreID, productType, contractNumber string) (string, error) {
	if coreID == "" || productType == "" || contractNumber == "" {
		return "", fmt.Errorf("deposit dossier id requires coreId, productType and contractNumber")
	}
	if strings.Contains(coreID, "-") {
		return "", fmt.Errorf("coreId %q must not contain a hyphen", coreID)
	}
	if strings.Contains(productType, "_") {
		return "", fmt.Errorf("productType %q must not contain an underscore", productType)
	}
	return fmt.Sprintf("DE-%s-%s_%s", coreID, productType, contractNumber), nil
}

// ParseDepositDossierId recovers the (coreId, productType, contractNumber)
// triple from an extended deposit dossier id.
func ParseDepositDossierId(id string) (coreID, productType, contractNumber string, err error) {
	rest, found := strings.CutPrefix(id, "DE-")
	if !found {
		return "", "", "", fmt.Errorf("dossier id %q is not a deposit id", id)
	}
	coreID, rest, found = strings.Cut(rest, "-")
	if !found || coreID == "" {
		return "", "", "", fmt.Errorf("deposit dossier id %q is missing the product part", id)
	}
	productType, contractNumber, found = strings.Cut(rest, "_")
	if !found || productType == "" || contractNumber == "" {
		return "", "", "", fmt.Errorf("deposit dossier id %q is missing the contract part", id)
	}
	return coreID, productType, contractNumber, nil
}
