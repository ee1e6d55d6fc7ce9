// Package resume implements the Resume Planner: given
// a Case and its Document, decide the exact stage the Document
// Processor should (re)enter at.
package resume

import "github.com/svcops/intake-pipeline/internal/model"

// Point is one of the pipeline's entry points.
type Point string

const (
	PointAlreadyDone Point = "already_done"
	PointOCR         Point = "ocr"
	PointSplit       Point = "split"
	PointMerge       Point = "merge"
	PointBeginning   Point = "beginning"
)

// Plan implements the exact resume decision tree. documentExists
// must be false when no Document row has been created yet for this
// Case (the "beginning" branch); doc may be the zero value in that case.
//
//	if ocr_status == DONE:                                  -> already_done
//	elif split_status == DONE and pages_metadata well-formed:
//	    (any non-DONE ocr_status, including the defensive
//	     "else" arm in spec's pseudocode which only covers the
//	     same {NOT_STARTED,IN_PROGRESS,FAILED} set)           -> ocr
//	elif split_status == DONE but pages_metadata malformed:   -> split
//	elif consolidated_blob_path is non-null:                  -> split
//	elif documentExists:                                      -> merge
//	else:                                                      -> beginning
func Plan(documentExists bool, doc model.Document) Point {
	if !documentExists {
		return PointBeginning
	}

	if doc.OCRStatus == model.StageDone {
		return PointAlreadyDone
	}

	if doc.SplitStatus == model.StageDone {
		if doc.PagesMetadata.WellFormed() {
			return PointOCR
		}
		return PointSplit
	}

	if doc.ConsolidatedBlobPath != nil {
		return PointSplit
	}

	return PointMerge
}
