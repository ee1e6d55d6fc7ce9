package fields

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/svcops/intake-pipeline/internal/model"
)

func TestBuildSyncInputs(t *testing.T) {
	bundle := map[string]model.FieldValue{
		FieldBeneficiaryName: {Value: "Jane Doe"},
		FieldProviderNPI:     {Value: "123456789"},
		FieldSubmissionType:  {Value: "expedited review"},
	}
	in := BuildSyncInputs(bundle)

	require.NotNil(t, in.BeneficiaryName)
	require.Equal(t, "Jane Doe", *in.BeneficiaryName)
	require.NotNil(t, in.ProviderNPI)
	require.Equal(t, "0123456789", *in.ProviderNPI)
	require.NotNil(t, in.SubmissionType)
	require.Equal(t, model.SubmissionExpedited, *in.SubmissionType)
	require.Nil(t, in.BeneficiaryMBI)
	require.Nil(t, in.ProviderName)
}

func TestBuildSyncInputs_JoinsSplitFirstAndLastName(t *testing.T) {
	bundle := map[string]model.FieldValue{
		"Beneficiary First Name": {Value: "ALICE"},
		"Beneficiary Last Name":  {Value: "SMITH"},
	}
	in := BuildSyncInputs(bundle)

	require.NotNil(t, in.BeneficiaryName)
	require.Equal(t, "ALICE SMITH", *in.BeneficiaryName)
}

func TestBuildSyncInputs_SplitNamePreferredOverDirectField(t *testing.T) {
	bundle := map[string]model.FieldValue{
		"Beneficiary First Name": {Value: "ALICE"},
		"Beneficiary Last Name":  {Value: "SMITH"},
		FieldBeneficiaryName:     {Value: "Someone Else"},
	}
	in := BuildSyncInputs(bundle)

	require.Equal(t, "ALICE SMITH", *in.BeneficiaryName)
}

func TestBuildSyncInputs_EmptyBundleYieldsAllNil(t *testing.T) {
	in := BuildSyncInputs(map[string]model.FieldValue{})
	require.Nil(t, in.BeneficiaryName)
	require.Nil(t, in.BeneficiaryMBI)
	require.Nil(t, in.ProviderName)
	require.Nil(t, in.ProviderNPI)
	require.Nil(t, in.SubmissionType)
}
