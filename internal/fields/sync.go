package fields

import (
	"strings"

	"github.com/svcops/intake-pipeline/internal/model"
)

// Canonical field names looked up off a normalized extraction bundle
// when syncing Case placeholder columns.
const (
	FieldBeneficiaryName = "Beneficiary Name"
	FieldBeneficiaryMBI  = "Beneficiary MBI"
	FieldProviderName    = "Provider Name"
	FieldProviderNPI     = "Provider NPI"
	FieldSubmissionType  = "Submission Type"
)

// beneficiaryFirstNameAliases/beneficiaryLastNameAliases cover the
// forms different intake channels label split name fields with; the
// first alias that resolves to a non-empty string wins.
var (
	beneficiaryFirstNameAliases = []string{"Beneficiary First Name", "Patient First Name", "Member First Name", "First Name"}
	beneficiaryLastNameAliases  = []string{"Beneficiary Last Name", "Patient Last Name", "Member Last Name", "Last Name"}
)

// firstFieldText returns the first alias in names that resolves to a
// non-empty string value on the bundle.
func firstFieldText(normalized map[string]model.FieldValue, names []string) (string, bool) {
	for _, name := range names {
		if v, ok := fieldText(normalized, name); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// SyncInputs is the set of values the Document Processor hands to
// casestore.Store.SyncPlaceholderFields after Stage D's extraction.
type SyncInputs struct {
	BeneficiaryName *string
	BeneficiaryMBI  *string
	ProviderName    *string
	ProviderNPI     *string
	SubmissionType  *model.SubmissionType
}

// BuildSyncInputs reads the canonical fields off a normalized bundle
// and applies the NPI and submission-type transforms, producing the
// exact arguments casestore.SyncPlaceholderFields expects. A field
// absent or non-string on the bundle leaves its corresponding output
// nil, which SyncPlaceholderFields treats as "no update."
func BuildSyncInputs(normalized map[string]model.FieldValue) SyncInputs {
	var in SyncInputs

	if first, ok := firstFieldText(normalized, beneficiaryFirstNameAliases); ok {
		if last, ok := firstFieldText(normalized, beneficiaryLastNameAliases); ok {
			full := strings.TrimSpace(first + " " + last)
			in.BeneficiaryName = &full
		}
	}
	if in.BeneficiaryName == nil {
		if v, ok := fieldText(normalized, FieldBeneficiaryName); ok && v != "" {
			in.BeneficiaryName = &v
		}
	}
	if v, ok := fieldText(normalized, FieldBeneficiaryMBI); ok && v != "" {
		in.BeneficiaryMBI = &v
	}
	if v, ok := fieldText(normalized, FieldProviderName); ok && v != "" {
		in.ProviderName = &v
	}
	if v, ok := fieldText(normalized, FieldProviderNPI); ok && v != "" {
		npi := NormalizeNPI(v)
		in.ProviderNPI = &npi
	}
	if v, ok := fieldText(normalized, FieldSubmissionType); ok {
		in.SubmissionType = ClassifySubmissionType(v)
	}

	return in
}
