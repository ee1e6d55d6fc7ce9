// Package pathbuilder derives the deterministic destination blob
// paths used by Stage B/C. Every path is a pure function of
// (decision_tracking_id, case_id, a UTC instant) so re-running a stage
// after a crash uploads to the exact same key instead of producing a
// new artifact (overwrite=true everywhere).
package pathbuilder

import "fmt"

const root = "service_ops_processing"

// ProcessingRoot is <root>/<YYYY>/<MM>-<DD>/<decision_tracking_id>.
func ProcessingRoot(decisionTrackingID string, year, month, day int) string {
	return fmt.Sprintf("%s/%04d/%02d-%02d/%s", root, year, month, day, decisionTrackingID)
}

// ConsolidatedPDF is <root>/packet_<case_id>.pdf.
func ConsolidatedPDF(decisionTrackingID string, caseID int64, year, month, day int) string {
	return fmt.Sprintf("%s/packet_%d.pdf", ProcessingRoot(decisionTrackingID, year, month, day), caseID)
}

// PagesPrefix is <root>/packet_<case_id>_pages.
func PagesPrefix(decisionTrackingID string, caseID int64, year, month, day int) string {
	return fmt.Sprintf("%s/packet_%d_pages", ProcessingRoot(decisionTrackingID, year, month, day), caseID)
}

// PagePath is <pages prefix>/packet_<case_id>_page_<page:04d>.pdf.
// pageNumber is 1-indexed, matching the pages_metadata convention.
func PagePath(decisionTrackingID string, caseID int64, year, month, day, pageNumber int) string {
	return fmt.Sprintf("%s/packet_%d_page_%04d.pdf", PagesPrefix(decisionTrackingID, caseID, year, month, day), caseID, pageNumber)
}
