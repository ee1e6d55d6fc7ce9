package pathbuilder_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/svcops/intake-pipeline/internal/pathbuilder"
)

func TestConsolidatedPDF_MatchesDeterministicLayout(t *testing.T) {
	got := pathbuilder.ConsolidatedPDF("D1", 42, 2026, 3, 5)
	require.Equal(t, "service_ops_processing/2026/03-05/D1/packet_42.pdf", got)
}

func TestPagePath_ZeroPadsPageNumberToFourDigits(t *testing.T) {
	got := pathbuilder.PagePath("D1", 42, 2026, 3, 5, 7)
	require.Equal(t, "service_ops_processing/2026/03-05/D1/packet_42_pages/packet_42_page_0007.pdf", got)
}

func TestPagePath_DoesNotTruncateBeyondFourDigits(t *testing.T) {
	got := pathbuilder.PagePath("D1", 42, 2026, 3, 5, 12345)
	require.Equal(t, "service_ops_processing/2026/03-05/D1/packet_42_pages/packet_42_page_12345.pdf", got)
}
